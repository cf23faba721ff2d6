package moderation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/karlseguin/ccache"
)

// Resolver turns user supplied references (mentions, ID's, names) into entities
type Resolver interface {
	ResolveMember(ctx context.Context, guildID int64, ref string) (*MemberCandidate, error)
	// ResolveChannel returns the ID of a text channel in the guild
	ResolveChannel(ctx context.Context, guildID int64, ref string) (int64, error)
}

// ResolutionError is returned when a reference or pattern in the options could not be resolved,
// it is always returned before anything is scanned
type ResolutionError struct {
	Flag  string
	Value string
	Err   error
}

func (r *ResolutionError) Error() string {
	if r.Flag == "regex" || r.Flag == "match" {
		return fmt.Sprintf("Invalid regex passed to `--%s`: %s", r.Flag, r.Err)
	}

	return fmt.Sprintf("Could not resolve --%s %q: %s", r.Flag, r.Value, r.Err)
}

func (r *ResolutionError) Unwrap() error {
	return r.Err
}

func (r *ResolutionError) IsUserError() bool {
	return true
}

var (
	ErrMemberNotFound  = errors.NewPlain("member not found")
	ErrChannelNotFound = errors.NewPlain("channel not found")
)

const (
	purgeEmojiPattern = `<:(\w+):(\d+)>`
	// EmojiPattern matches any custom emoji, animated ones included
	EmojiPattern = `<a?:[a-zA-Z0-9_]+:([0-9]+)>`
)

// Compiler builds predicate trees out of parsed options
type Compiler struct {
	Resolver Resolver
	Now      func() time.Time

	regexCache *ccache.Cache
}

func NewCompiler(resolver Resolver) *Compiler {
	return &Compiler{
		Resolver:   resolver,
		Now:        time.Now,
		regexCache: ccache.New(ccache.Configure().MaxSize(1000)),
	}
}

// Pattern compiles src, caching the result. Anchored patterns only match at the start of the input.
func (c *Compiler) Pattern(src string, anchored bool) (*regexp.Regexp, error) {
	key := src
	if anchored {
		key = "^(?:" + src + ")"
	}

	item, err := c.regexCache.Fetch(key, time.Minute*10, func() (interface{}, error) {
		re, err := regexp.Compile(key)
		if err != nil {
			return nil, err
		}

		return re, nil
	})
	if err != nil {
		return nil, err
	}

	return item.Value().(*regexp.Regexp), nil
}

// CompilePurge compiles the options of "purge custom" into a single predicate over messages
func (c *Compiler) CompilePurge(ctx context.Context, guildID int64, spec FilterSpec) (Predicate, error) {
	// resolve everything first so a bad reference never leaves us with a partial filter
	var userIDs []int64
	for _, ref := range spec.Users {
		member, err := c.Resolver.ResolveMember(ctx, guildID, ref)
		if err != nil {
			return nil, &ResolutionError{Flag: "user", Value: ref, Err: err}
		}
		userIDs = append(userIDs, member.UserID)
	}

	var emoji *regexp.Regexp
	if spec.Emoji {
		var err error
		emoji, err = c.Pattern(purgeEmojiPattern, false)
		if err != nil {
			return nil, errors.WithStackIf(err)
		}
	}

	var preds []Predicate
	if spec.Bot {
		preds = append(preds, FlagCheck{Flag: FlagBot})
	}
	if spec.Embeds {
		preds = append(preds, FlagCheck{Flag: FlagHasEmbeds})
	}
	if spec.Files {
		preds = append(preds, FlagCheck{Flag: FlagHasFiles})
	}
	if spec.Reactions {
		preds = append(preds, FlagCheck{Flag: FlagReactions})
	}
	if emoji != nil {
		preds = append(preds, FieldMatch{Field: FieldContent, Op: OpRegex, Pattern: emoji})
	}
	if len(userIDs) > 0 {
		preds = append(preds, FieldMatch{Field: FieldAuthor, Op: OpIDIn, IDs: userIDs})
	}
	preds = appendTextMatches(preds, spec)

	return Combine(preds, spec.Or, spec.Not), nil
}

func appendTextMatches(preds []Predicate, spec FilterSpec) []Predicate {
	if len(spec.Contains) > 0 {
		preds = append(preds, FieldMatch{Field: FieldContent, Op: OpContains, Values: spec.Contains})
	}
	if len(spec.Starts) > 0 {
		preds = append(preds, FieldMatch{Field: FieldContent, Op: OpPrefix, Values: spec.Starts})
	}
	if len(spec.Ends) > 0 {
		preds = append(preds, FieldMatch{Field: FieldContent, Op: OpSuffix, Values: spec.Ends})
	}

	return preds
}

// MassbanFilter is the compiled form of the massban options
type MassbanFilter struct {
	// ChannelID is set if members are collected from a channel's message authors
	ChannelID int64
	// Messages selects the messages whose authors are collected, nil without a channel
	Messages Predicate
	Members  Predicate
}

// CompileMassban compiles the massban options, all the member predicates are always combined with AND
func (c *Compiler) CompileMassban(ctx context.Context, guildID int64, spec FilterSpec) (*MassbanFilter, error) {
	filter := &MassbanFilter{}

	if spec.Has("channel") {
		channelID, err := c.Resolver.ResolveChannel(ctx, guildID, spec.Channel)
		if err != nil {
			return nil, &ResolutionError{Flag: "channel", Value: spec.Channel, Err: err}
		}
		filter.ChannelID = channelID
	}

	var joinedBefore, joinedAfter *MemberCandidate
	if spec.Has("joined-before") {
		ref := strconv.FormatInt(spec.JoinedBefore, 10)
		m, err := c.Resolver.ResolveMember(ctx, guildID, ref)
		if err != nil {
			return nil, &ResolutionError{Flag: "joined-before", Value: ref, Err: err}
		}
		joinedBefore = m
	}

	if spec.Has("joined-after") {
		ref := strconv.FormatInt(spec.JoinedAfter, 10)
		m, err := c.Resolver.ResolveMember(ctx, guildID, ref)
		if err != nil {
			return nil, &ResolutionError{Flag: "joined-after", Value: ref, Err: err}
		}
		joinedAfter = m
	}

	var nameRegex, matchRegex *regexp.Regexp
	if spec.Has("regex") {
		re, err := c.Pattern(spec.Regex, true)
		if err != nil {
			return nil, &ResolutionError{Flag: "regex", Value: spec.Regex, Err: err}
		}
		nameRegex = re
	}

	if filter.ChannelID != 0 && spec.Has("match") {
		re, err := c.Pattern(spec.Match, true)
		if err != nil {
			return nil, &ResolutionError{Flag: "match", Value: spec.Match, Err: err}
		}
		matchRegex = re
	}

	if filter.ChannelID != 0 {
		msgPreds := appendTextMatches(nil, spec)
		if matchRegex != nil {
			msgPreds = append(msgPreds, FieldMatch{Field: FieldContent, Op: OpRegex, Pattern: matchRegex})
		}
		if spec.Embeds {
			msgPreds = append(msgPreds, FlagCheck{Flag: FlagHasEmbeds})
		}
		if spec.Files {
			msgPreds = append(msgPreds, FlagCheck{Flag: FlagHasFiles})
		}
		filter.Messages = All(msgPreds)
	}

	now := c.Now()
	preds := []Predicate{
		Not{Inner: FlagCheck{Flag: FlagBot}},
		Not{Inner: FlagCheck{Flag: FlagDeletedUser}},
	}

	if nameRegex != nil {
		preds = append(preds, FieldMatch{Field: FieldUsername, Op: OpRegex, Pattern: nameRegex})
	}
	if spec.NoAvatar {
		preds = append(preds, FlagCheck{Flag: FlagNoAvatar})
	}
	if spec.NoRoles {
		preds = append(preds, FlagCheck{Flag: FlagNoRoles})
	}
	// a zero minute count disables the filter
	if spec.Created != 0 {
		preds = append(preds, FieldMatch{Field: FieldCreated, Op: OpAfter, Time: now.Add(-time.Duration(spec.Created) * time.Minute)})
	}
	if spec.Joined != 0 {
		preds = append(preds, FieldMatch{Field: FieldJoined, Op: OpAfter, Time: now.Add(-time.Duration(spec.Joined) * time.Minute)})
	}
	// an unknown join time of the reference member matches nobody
	if joinedAfter != nil {
		preds = append(preds, joinedRelative(OpAfter, joinedAfter.JoinedAt))
	}
	if joinedBefore != nil {
		preds = append(preds, joinedRelative(OpBefore, joinedBefore.JoinedAt))
	}

	filter.Members = All(preds)
	return filter, nil
}

func joinedRelative(op MatchOp, t time.Time) Predicate {
	if t.IsZero() {
		return Any{}
	}

	return FieldMatch{Field: FieldJoined, Op: op, Time: t}
}
