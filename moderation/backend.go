package moderation

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/botlabs-gg/bulkmod/bot"
	"github.com/botlabs-gg/bulkmod/bot/confirm"
	"github.com/botlabs-gg/bulkmod/common"
	"github.com/jonas747/dcmd/v4"
	"github.com/jonas747/discordgo/v2"
	"github.com/jonas747/dstate/v4"
	"github.com/patrickmn/go-cache"
)

var (
	ErrGuildNotFound = errors.NewPlain("guild not found")
	ErrUnknownBan    = errors.NewPlain("unknown ban")
)

const errCodeUnknownBan = 10026

// DiscordBackend implements the engine's collaborators over the bot's state and the REST session
type DiscordBackend struct {
	Session *discordgo.Session

	// members fetched over REST, so repeated lookups of uncached members don't hit the api
	memberCache *cache.Cache
}

func NewDiscordBackend(session *discordgo.Session) *DiscordBackend {
	return &DiscordBackend{
		Session:     session,
		memberCache: cache.New(time.Minute*5, time.Minute),
	}
}

var (
	_ MessageLookup = (*DiscordBackend)(nil)
	_ MemberLookup  = (*DiscordBackend)(nil)
	_ Resolver      = (*DiscordBackend)(nil)
	_ Actions       = (*DiscordBackend)(nil)
)

func (b *DiscordBackend) ChannelMessages(ctx context.Context, channelID int64, limit int, before int64) ([]*MessageCandidate, error) {
	msgs, err := b.Session.ChannelMessages(channelID, limit, before, 0, 0)
	if err != nil {
		return nil, mapDiscordErr(err)
	}

	result := make([]*MessageCandidate, 0, len(msgs))
	for _, m := range msgs {
		result = append(result, messageCandidate(m))
	}

	return result, nil
}

func messageCandidate(m *discordgo.Message) *MessageCandidate {
	c := &MessageCandidate{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		WebhookID:   m.WebhookID,
		Content:     m.Content,
		Embeds:      len(m.Embeds),
		Attachments: len(m.Attachments),
		Reactions:   len(m.Reactions),
		Pinned:      m.Pinned,
		CreatedAt:   common.SnowflakeTime(m.ID),
	}

	for _, r := range m.Reactions {
		c.ReactionCount += r.Count
	}

	if m.Author != nil {
		c.AuthorID = m.Author.ID
		c.AuthorName = m.Author.Username
		c.AuthorBot = m.Author.Bot
	}

	return c
}

func (b *DiscordBackend) Guild(ctx context.Context, guildID int64) (*GuildInfo, error) {
	gs := bot.State.GetGuild(guildID)
	if gs == nil {
		return nil, ErrGuildNotFound
	}

	return guildInfo(gs), nil
}

// guildInfo ranks the roles by their order in the role list, equal positions are ordered by ID
func guildInfo(gs *dstate.GuildSet) *GuildInfo {
	roles := make([]discordgo.Role, len(gs.Roles))
	copy(roles, gs.Roles)
	sort.Sort(dstate.Roles(roles))

	info := &GuildInfo{
		ID:      gs.ID,
		OwnerID: gs.OwnerID,
		Roles:   make(map[int64]int, len(roles)),
	}

	// highest first
	for i, r := range roles {
		info.Roles[r.ID] = len(roles) - i
	}

	// @everyone is the bottom, same as having no roles
	info.Roles[gs.ID] = 0

	return info
}

func (b *DiscordBackend) Member(ctx context.Context, guildID, userID int64) (*MemberCandidate, error) {
	if ms := bot.State.GetMember(guildID, userID); ms != nil && ms.Member != nil {
		return memberCandidate(ms), nil
	}

	key := cacheKey(guildID, userID)
	if v, ok := b.memberCache.Get(key); ok {
		return v.(*MemberCandidate), nil
	}

	ms, err := bot.GetMember(guildID, userID)
	if err != nil {
		return nil, mapDiscordErr(err)
	}

	m := memberCandidate(ms)
	b.memberCache.SetDefault(key, m)
	return m, nil
}

func cacheKey(guildID, userID int64) string {
	return strconv.FormatInt(guildID, 10) + ":" + strconv.FormatInt(userID, 10)
}

func memberCandidate(ms *dstate.MemberState) *MemberCandidate {
	m := &MemberCandidate{
		UserID:        ms.User.ID,
		Username:      ms.User.Username,
		Discriminator: ms.User.Discriminator,
		Bot:           ms.User.Bot,
		Avatar:        ms.User.Avatar,
		CreatedAt:     common.SnowflakeTime(ms.User.ID),
	}

	if ms.Member != nil {
		m.Roles = ms.Member.Roles
		if t, err := ms.Member.JoinedAt.Parse(); err == nil {
			m.JoinedAt = t
		}
	}

	return m
}

func (b *DiscordBackend) MembersComplete(guildID int64) bool {
	return bot.State.MembersComplete(guildID)
}

func (b *DiscordBackend) RequestMembers(ctx context.Context, guildID int64) error {
	return bot.RequestGuildMembers(ctx, guildID)
}

func (b *DiscordBackend) Members(guildID int64) []*MemberCandidate {
	states := bot.State.Members(guildID)

	result := make([]*MemberCandidate, 0, len(states))
	for _, ms := range states {
		if ms.Member == nil {
			continue
		}
		result = append(result, memberCandidate(ms))
	}

	return result
}

// ResolveMember accepts a mention, an ID, or a username/nickname
func (b *DiscordBackend) ResolveMember(ctx context.Context, guildID int64, ref string) (*MemberCandidate, error) {
	if id, ok := parseMention(ref, "<@!", "<@"); ok {
		return b.Member(ctx, guildID, id)
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return b.Member(ctx, guildID, id)
	}

	gs := bot.State.GetGuild(guildID)
	if gs == nil {
		return nil, ErrGuildNotFound
	}

	ms, err := dcmd.FindDiscordMemberByName(bot.State, gs, ref)
	if err != nil || ms == nil {
		return nil, ErrMemberNotFound
	}

	return memberCandidate(ms), nil
}

// ResolveChannel accepts a mention, an ID or a channel name, only text channels match
func (b *DiscordBackend) ResolveChannel(ctx context.Context, guildID int64, ref string) (int64, error) {
	gs := bot.State.GetGuild(guildID)
	if gs == nil {
		return 0, ErrGuildNotFound
	}

	id, ok := parseMention(ref, "<#")
	if !ok {
		id, _ = strconv.ParseInt(ref, 10, 64)
	}

	name := strings.TrimPrefix(ref, "#")
	for _, c := range gs.Channels {
		if !isTextChannel(c.Type) {
			continue
		}

		if (id != 0 && c.ID == id) || strings.EqualFold(c.Name, name) {
			return c.ID, nil
		}
	}

	return 0, ErrChannelNotFound
}

func isTextChannel(t discordgo.ChannelType) bool {
	return t == discordgo.ChannelTypeGuildText || t == discordgo.ChannelTypeGuildNews
}

func parseMention(ref string, prefixes ...string) (int64, bool) {
	if !strings.HasSuffix(ref, ">") {
		return 0, false
	}

	for _, p := range prefixes {
		if strings.HasPrefix(ref, p) {
			id, err := strconv.ParseInt(ref[len(p):len(ref)-1], 10, 64)
			return id, err == nil
		}
	}

	return 0, false
}

func (b *DiscordBackend) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	return mapDiscordErr(b.Session.ChannelMessageDelete(channelID, messageID))
}

func (b *DiscordBackend) BulkDeleteMessages(ctx context.Context, channelID int64, messageIDs []int64) error {
	return mapDiscordErr(b.Session.ChannelMessagesBulkDelete(channelID, messageIDs))
}

func (b *DiscordBackend) Ban(ctx context.Context, guildID, userID int64, reason string, deleteMessageDays int) error {
	return mapDiscordErr(b.Session.GuildBanCreateWithReason(guildID, userID, reason, deleteMessageDays))
}

func (b *DiscordBackend) Unban(ctx context.Context, guildID, userID int64) error {
	return mapDiscordErr(b.Session.GuildBanDelete(guildID, userID))
}

func (b *DiscordBackend) ClearReactions(ctx context.Context, channelID, messageID int64) error {
	return mapDiscordErr(b.Session.MessageReactionsRemoveAll(channelID, messageID))
}

// mapDiscordErr turns the discord errors the engine cares about into its own
func mapDiscordErr(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case common.IsDiscordErr(err, discordgo.ErrCodeUnknownMessage):
		return errors.WithMessage(ErrUnknownMessage, err.Error())
	case common.IsDiscordErr(err, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser):
		return errors.WithMessage(ErrMemberNotFound, err.Error())
	case common.IsDiscordErr(err, errCodeUnknownBan):
		return errors.WithMessage(ErrUnknownBan, err.Error())
	case common.IsDiscordPermissionErr(err):
		return &PermissionError{Err: err}
	}

	return err
}

// ReactionPrompter asks for confirmations through the bot's reaction menus
type ReactionPrompter struct {
	Menus *confirm.Menus
}

func (r *ReactionPrompter) Confirm(ctx context.Context, req PromptRequest) (ConfirmationState, error) {
	answer, err := r.Menus.Ask(ctx, req.ChannelID, req.UserID, req.Text, req.Timeout)
	if err != nil {
		return ConfirmationDenied, err
	}

	switch answer {
	case confirm.AnswerConfirmed:
		return ConfirmationConfirmed, nil
	case confirm.AnswerTimedOut:
		return ConfirmationTimedOut, nil
	}

	return ConfirmationDenied, nil
}
