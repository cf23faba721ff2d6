package moderation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/botlabs-gg/bulkmod/common"
)

// Config is everything the engine needs to know about its environment besides the collaborators
type Config struct {
	// AppOwnerID may target anyone the bot can target, 0 to disable
	AppOwnerID int64
	// BotID is the user ID of the bot, used for the bot side of the hierarchy checks
	BotID int64

	ConfirmTimeout   time.Duration
	BulkDeleteMaxAge time.Duration
}

// Deps are the collaborators of the engine
type Deps struct {
	Messages MessageLookup
	Members  MemberLookup
	Resolver Resolver
	Actions  Actions
	Limiter  RateLimiter
	Prompter Prompter

	// Now defaults to time.Now
	Now func() time.Time
}

// Engine runs the bulk moderation pipelines: parse, compile, scan, authorize, confirm, execute, report.
// An Engine is safe for concurrent use, every invocation owns its own state.
type Engine struct {
	conf     Config
	deps     Deps
	limiter  RateLimiter
	compiler *Compiler
	executor *Executor
}

func NewEngine(conf Config, deps Deps) *Engine {
	if conf.ConfirmTimeout <= 0 {
		conf.ConfirmTimeout = DefaultConfirmTimeout
	}

	if deps.Now == nil {
		deps.Now = time.Now
	}

	limiter := countingLimiter{inner: deps.Limiter}

	compiler := NewCompiler(deps.Resolver)
	compiler.Now = deps.Now

	return &Engine{
		conf:     conf,
		deps:     deps,
		limiter:  limiter,
		compiler: compiler,
		executor: &Executor{
			Actions:          deps.Actions,
			Limiter:          limiter,
			BulkDeleteMaxAge: conf.BulkDeleteMaxAge,
			Now:              deps.Now,
		},
	}
}

// Invocation identifies a single command invocation
type Invocation struct {
	GuildID   int64
	ChannelID int64
	// TriggerID is the message that invoked the command, message scans start above it
	TriggerID int64

	ActorID   int64
	ActorName string
}

// PurgeCustom runs "purge custom <args>"
func (e *Engine) PurgeCustom(ctx context.Context, inv *Invocation, raw string) (*Result, error) {
	spec, err := ParsePurgeArgs(raw)
	if err != nil {
		return nil, err
	}

	pred, err := e.compiler.CompilePurge(ctx, inv.GuildID, spec)
	if err != nil {
		return nil, err
	}

	before := inv.TriggerID
	if spec.Has("before") {
		before = spec.Before
	}

	return e.purge(ctx, inv, pred, MessageScan{
		ChannelID: inv.ChannelID,
		Limit:     spec.PurgeSearchBound(),
		Before:    before,
		After:     spec.After,
		SkipID:    inv.TriggerID,
	})
}

// Purge deletes the messages matching pred among the last search messages above the trigger
func (e *Engine) Purge(ctx context.Context, inv *Invocation, pred Predicate, search int) (*Result, error) {
	if search > MaxSearch {
		return nil, &ParseError{Msg: fmt.Sprintf("Too many messages to search given (%d/%d)", search, MaxSearch)}
	}

	return e.purge(ctx, inv, pred, MessageScan{
		ChannelID: inv.ChannelID,
		Limit:     ClampSearch(int64(search), 0),
		Before:    inv.TriggerID,
		SkipID:    inv.TriggerID,
	})
}

func (e *Engine) purge(ctx context.Context, inv *Invocation, pred Predicate, scan MessageScan) (*Result, error) {
	summary := NewSummary(OpPurge)

	msgs, err := ScanMessages(ctx, e.deps.Messages, e.limiter, scan)
	if err != nil {
		summary.Abort = err
		return &Result{Text: AbortReason(err), Summary: summary}, nil
	}

	matched := Filter(pred, msgs)
	if len(matched) == 0 {
		return &Result{Text: PurgeReport(summary), Summary: summary}, nil
	}

	authz, err := e.authorizer(ctx, inv, false)
	if err != nil {
		return nil, err
	}
	authz.AllowSelf = true

	authors := make(map[int64]*MemberCandidate)
	allowed := make([]*MessageCandidate, 0, len(matched))
	for _, m := range matched {
		author, ok := authors[m.AuthorID]
		if !ok {
			author, err = e.lookupAuthor(ctx, inv.GuildID, m)
			if err != nil {
				return nil, err
			}
			authors[m.AuthorID] = author
		}

		if authz.Allowed(author) {
			allowed = append(allowed, m)
		} else {
			summary.Record(Unauthorized(), "")
		}
	}

	e.executor.DeleteMessages(detach(ctx), inv.ChannelID, allowed, summary)
	return &Result{Text: PurgeReport(summary), Summary: summary}, nil
}

// lookupAuthor returns the author as a member, authors that left and webhooks have no roles
func (e *Engine) lookupAuthor(ctx context.Context, guildID int64, m *MessageCandidate) (*MemberCandidate, error) {
	if m.WebhookID != 0 {
		return &MemberCandidate{UserID: m.AuthorID, Username: m.AuthorName, Bot: true}, nil
	}

	member, err := e.deps.Members.Member(ctx, guildID, m.AuthorID)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return &MemberCandidate{UserID: m.AuthorID, Username: m.AuthorName, Bot: m.AuthorBot}, nil
		}

		return nil, err
	}

	return member, nil
}

// ClearReactions removes the reactions from the last search messages that have any
func (e *Engine) ClearReactions(ctx context.Context, inv *Invocation, search int) (*Result, error) {
	if search > MaxSearch {
		return nil, &ParseError{Msg: fmt.Sprintf("Too many messages to search for (%d/%d)", search, MaxSearch)}
	}

	summary := NewSummary(OpReactions)
	msgs, err := ScanMessages(ctx, e.deps.Messages, e.limiter, MessageScan{
		ChannelID: inv.ChannelID,
		Limit:     ClampSearch(int64(search), 0),
		Before:    inv.TriggerID,
		SkipID:    inv.TriggerID,
	})
	if err != nil {
		return nil, err
	}

	matched := Filter(FlagCheck{Flag: FlagReactions}, msgs)
	e.executor.ClearReactions(detach(ctx), inv.ChannelID, matched, summary)

	return &Result{Text: ReactionsReport(summary), Summary: summary}, nil
}

var ErrReasonRequired = &ParseError{Msg: "--reason flag is required."}

// MassBan runs "massban <args>"
func (e *Engine) MassBan(ctx context.Context, inv *Invocation, raw string) (*Result, error) {
	spec, err := ParseMassbanArgs(raw)
	if err != nil {
		return nil, err
	}

	if !spec.Show && !spec.Has("reason") {
		return nil, ErrReasonRequired
	}

	filter, err := e.compiler.CompileMassban(ctx, inv.GuildID, spec)
	if err != nil {
		return nil, err
	}

	authz, err := e.authorizer(ctx, inv, true)
	if err != nil {
		return nil, err
	}

	var members []*MemberCandidate
	if filter.ChannelID != 0 {
		msgs, err := ScanMessages(ctx, e.deps.Messages, e.limiter, MessageScan{
			ChannelID: filter.ChannelID,
			Limit:     spec.MassbanSearchBound(),
			Before:    spec.Before,
			After:     spec.After,
			SkipID:    inv.TriggerID,
		})
		if err != nil {
			return nil, err
		}

		members, err = MessageAuthors(ctx, e.deps.Members, inv.GuildID, Filter(filter.Messages, msgs))
		if err != nil {
			return nil, err
		}
	} else {
		members, err = ScanMembers(ctx, e.deps.Members, inv.GuildID)
		if err != nil {
			return nil, err
		}
	}

	summary := NewSummary(OpMassban)

	matched := Filter(filter.Members, members)
	allowed := make([]*MemberCandidate, 0, len(matched))
	for _, m := range matched {
		if authz.Allowed(m) {
			allowed = append(allowed, m)
		} else {
			summary.Record(Unauthorized(), "")
		}
	}

	if len(allowed) == 0 {
		return &Result{Text: "No members found matching criteria.", Summary: summary}, nil
	}

	if spec.Show {
		return &Result{
			Text:    fmt.Sprintf("%d member(s) matched.", len(allowed)),
			File:    MemberListing(allowed, e.deps.Now()),
			Summary: summary,
		}, nil
	}

	g := &gate{prompter: e.deps.Prompter}
	state, err := g.confirm(ctx, PromptRequest{
		GuildID:   inv.GuildID,
		ChannelID: inv.ChannelID,
		UserID:    inv.ActorID,
		Text:      fmt.Sprintf("This will ban **%d member(s)**. Are you sure?", len(allowed)),
		Timeout:   e.conf.ConfirmTimeout,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "confirm")
	}

	if !state.Proceed() {
		for range allowed {
			summary.Record(Skipped("cancelled"), "")
		}
		return &Result{Text: "Aborting.", Summary: summary}, nil
	}

	reason := BanReason(inv.ActorName, inv.ActorID, spec.Reason)
	e.executor.BanMembers(detach(ctx), inv.GuildID, allowed, reason, summary)

	return &Result{Text: BanReport(summary), Summary: summary}, nil
}

// MaxReasonLength is the length limit of the audit log reason
const MaxReasonLength = 512

// BanReason formats the audit log reason of a ban done on behalf of the actor
func BanReason(actorName string, actorID int64, reason string) string {
	if reason == "" {
		reason = "Action done by " + actorName + " (ID: " + strconv.FormatInt(actorID, 10) + ")"
		return common.CutStringShort(reason, MaxReasonLength)
	}

	return common.CutStringShort(fmt.Sprintf("%s (ID: %d): %s", actorName, actorID, reason), MaxReasonLength)
}

// Unban asks for a confirmation, then unbans the user
func (e *Engine) Unban(ctx context.Context, inv *Invocation, userID int64, userName string) (*Result, error) {
	g := &gate{prompter: e.deps.Prompter}
	state, err := g.confirm(ctx, PromptRequest{
		GuildID:   inv.GuildID,
		ChannelID: inv.ChannelID,
		UserID:    inv.ActorID,
		Text:      fmt.Sprintf("Are you sure you want to unban %s?", userName),
		Timeout:   e.conf.ConfirmTimeout,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "confirm")
	}

	if !state.Proceed() {
		return &Result{Text: "Cancelled!"}, nil
	}

	ctx = detach(ctx)
	err = e.limiter.Acquire(ctx, "ban:"+strconv.FormatInt(inv.GuildID, 10))
	if err != nil {
		return nil, err
	}

	err = e.deps.Actions.Unban(ctx, inv.GuildID, userID)
	if err != nil {
		return nil, err
	}

	return &Result{Text: fmt.Sprintf("Unbanned %s.", userName)}, nil
}

// Softban bans and immediately unbans the member, removing a day of their messages.
// Unlike the mass operations a hierarchy violation is returned as an error.
func (e *Engine) Softban(ctx context.Context, inv *Invocation, userID int64, reason string) (*Result, error) {
	authz, err := e.authorizer(ctx, inv, true)
	if err != nil {
		return nil, err
	}

	target, err := e.deps.Members.Member(ctx, inv.GuildID, userID)
	if err != nil {
		return nil, err
	}

	err = authz.Check(target)
	if err != nil {
		return nil, err
	}

	reason = BanReason(inv.ActorName, inv.ActorID, reason)
	route := "ban:" + strconv.FormatInt(inv.GuildID, 10)

	ctx = detach(ctx)
	err = e.limiter.Acquire(ctx, route)
	if err != nil {
		return nil, err
	}

	err = e.deps.Actions.Ban(ctx, inv.GuildID, userID, reason, 1)
	if err != nil {
		return nil, err
	}

	err = e.limiter.Acquire(ctx, route)
	if err != nil {
		return nil, err
	}

	err = e.deps.Actions.Unban(ctx, inv.GuildID, userID)
	if err != nil {
		return nil, err
	}

	return &Result{Text: "👌"}, nil
}

func (e *Engine) authorizer(ctx context.Context, inv *Invocation, checkBot bool) (*Authorizer, error) {
	guild, err := e.deps.Members.Guild(ctx, inv.GuildID)
	if err != nil {
		return nil, errors.WithMessage(err, "Guild")
	}

	actor, err := e.deps.Members.Member(ctx, inv.GuildID, inv.ActorID)
	if err != nil {
		return nil, errors.WithMessage(err, "actor")
	}

	authz := &Authorizer{
		Guild:      guild,
		AppOwnerID: e.conf.AppOwnerID,
		Actor:      actor,
	}

	if checkBot {
		bot, err := e.deps.Members.Member(ctx, inv.GuildID, e.conf.BotID)
		if err != nil {
			return nil, errors.WithMessage(err, "bot member")
		}
		authz.Bot = bot
	}

	return authz, nil
}
