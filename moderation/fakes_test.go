package moderation

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
)

var testNow = time.Date(2022, 6, 1, 12, 0, 0, 0, time.UTC)

const (
	testGuildID   = 1000
	testChannelID = 2000
	testOwnerID   = 1
	testBotID     = 2
	testModID     = 3
	testTriggerID = 1 << 40
)

// fakeGuild is an in memory guild that implements every collaborator of the engine
type fakeGuild struct {
	mu sync.Mutex

	info     *GuildInfo
	members  map[int64]*MemberCandidate
	complete bool
	channels map[int64][]*MessageCandidate

	requests int
	pages    int

	bulkDeletes   [][]int64
	singleDeletes []int64
	bans          []int64
	banReasons    []string
	unbans        []int64
	cleared       []int64

	// errors injected into the actions
	deleteErr    error
	failBulkAt   int
	banErrs      map[int64]error
	clearErrs    map[int64]error
	historyCalls int
}

func newFakeGuild() *fakeGuild {
	return &fakeGuild{
		info: &GuildInfo{
			ID:      testGuildID,
			OwnerID: testOwnerID,
			Roles: map[int64]int{
				100: 10, // bot role
				101: 5,  // mod role
				102: 1,  // member role
			},
		},
		members:    make(map[int64]*MemberCandidate),
		channels:   make(map[int64][]*MessageCandidate),
		complete:   true,
		failBulkAt: -1,
		banErrs:    make(map[int64]error),
	}
}

func (f *fakeGuild) addMember(id int64, name string, roles ...int64) *MemberCandidate {
	m := &MemberCandidate{
		UserID:        id,
		Username:      name,
		Discriminator: "1234",
		Avatar:        "avatar",
		Roles:         roles,
		JoinedAt:      testNow.Add(-time.Duration(id) * time.Hour),
		CreatedAt:     testNow.Add(-time.Duration(id) * 24 * time.Hour),
	}
	f.members[id] = m
	return m
}

// withStaff adds the owner, the bot and a moderator
func (f *fakeGuild) withStaff() *fakeGuild {
	f.addMember(testOwnerID, "owner")
	f.addMember(testBotID, "bulkbot", 100).Bot = true
	f.addMember(testModID, "mod", 101)
	return f
}

var nextMessageID int64 = 10000

func (f *fakeGuild) addMessage(channelID int64, author *MemberCandidate, content string, age time.Duration) *MessageCandidate {
	nextMessageID++
	m := &MessageCandidate{
		ID:         nextMessageID,
		ChannelID:  channelID,
		AuthorID:   author.UserID,
		AuthorName: author.Username,
		AuthorBot:  author.Bot,
		Content:    content,
		CreatedAt:  testNow.Add(-age),
	}
	f.channels[channelID] = append(f.channels[channelID], m)
	return m
}

func (f *fakeGuild) messageCount(channelID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels[channelID])
}

func (f *fakeGuild) ChannelMessages(ctx context.Context, channelID int64, limit int, before int64) ([]*MessageCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.historyCalls++
	msgs := f.channels[channelID]

	var result []*MessageCandidate
	for i := len(msgs) - 1; i >= 0 && len(result) < limit; i-- {
		if before != 0 && msgs[i].ID >= before {
			continue
		}
		result = append(result, msgs[i])
	}

	return result, nil
}

func (f *fakeGuild) Guild(ctx context.Context, guildID int64) (*GuildInfo, error) {
	return f.info, nil
}

func (f *fakeGuild) Member(ctx context.Context, guildID, userID int64) (*MemberCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok := f.members[userID]; ok {
		return m, nil
	}

	return nil, ErrMemberNotFound
}

func (f *fakeGuild) MembersComplete(guildID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete
}

func (f *fakeGuild) RequestMembers(ctx context.Context, guildID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	f.complete = true
	return nil
}

func (f *fakeGuild) Members(guildID int64) []*MemberCandidate {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]*MemberCandidate, 0, len(f.members))
	for _, v := range f.members {
		result = append(result, v)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result
}

func (f *fakeGuild) ResolveMember(ctx context.Context, guildID int64, ref string) (*MemberCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ref = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(ref, "<@"), "!"), ">")
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if m, ok := f.members[id]; ok {
			return m, nil
		}
	}

	for _, v := range f.members {
		if v.Username == ref {
			return v, nil
		}
	}

	return nil, ErrMemberNotFound
}

func (f *fakeGuild) ResolveChannel(ctx context.Context, guildID int64, ref string) (int64, error) {
	ref = strings.TrimSuffix(strings.TrimPrefix(ref, "<#"), ">")
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0, ErrChannelNotFound
	}

	if _, ok := f.channels[id]; !ok {
		return 0, ErrChannelNotFound
	}

	return id, nil
}

func (f *fakeGuild) removeMessages(channelID int64, ids ...int64) {
	msgs := f.channels[channelID]
	filtered := msgs[:0]
	for _, m := range msgs {
		remove := false
		for _, id := range ids {
			if m.ID == id {
				remove = true
				break
			}
		}
		if !remove {
			filtered = append(filtered, m)
		}
	}
	f.channels[channelID] = filtered
}

func (f *fakeGuild) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}

	f.singleDeletes = append(f.singleDeletes, messageID)
	f.removeMessages(channelID, messageID)
	return nil
}

func (f *fakeGuild) BulkDeleteMessages(ctx context.Context, channelID int64, messageIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failBulkAt == len(f.bulkDeletes) {
		return f.deleteErr
	}

	f.bulkDeletes = append(f.bulkDeletes, messageIDs)
	f.removeMessages(channelID, messageIDs...)
	return nil
}

func (f *fakeGuild) Ban(ctx context.Context, guildID, userID int64, reason string, deleteMessageDays int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.banErrs[userID]; err != nil {
		return err
	}

	f.bans = append(f.bans, userID)
	f.banReasons = append(f.banReasons, reason)
	delete(f.members, userID)
	return nil
}

func (f *fakeGuild) Unban(ctx context.Context, guildID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.unbans = append(f.unbans, userID)
	return nil
}

func (f *fakeGuild) ClearReactions(ctx context.Context, channelID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.clearErrs[messageID]; err != nil {
		return err
	}

	f.cleared = append(f.cleared, messageID)
	for _, m := range f.channels[channelID] {
		if m.ID == messageID {
			m.Reactions = 0
			m.ReactionCount = 0
		}
	}
	return nil
}

// recordingLimiter allows everything and records the routes
type recordingLimiter struct {
	mu     sync.Mutex
	routes []string
	err    error
}

func (r *recordingLimiter) Acquire(ctx context.Context, route string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}

	r.routes = append(r.routes, route)
	return nil
}

func (r *recordingLimiter) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, v := range r.routes {
		if strings.HasPrefix(v, prefix) {
			n++
		}
	}
	return n
}

// staticPrompter answers every prompt with the same state
type staticPrompter struct {
	state    ConfirmationState
	requests []PromptRequest
}

func (s *staticPrompter) Confirm(ctx context.Context, req PromptRequest) (ConfirmationState, error) {
	s.requests = append(s.requests, req)
	return s.state, nil
}

// silentPrompter never gets an answer and times out
type silentPrompter struct{}

func (silentPrompter) Confirm(ctx context.Context, req PromptRequest) (ConfirmationState, error) {
	select {
	case <-time.After(req.Timeout):
		return ConfirmationTimedOut, nil
	case <-ctx.Done():
		return ConfirmationDenied, ctx.Err()
	}
}

func newTestEngine(g *fakeGuild, limiter RateLimiter, prompter Prompter) *Engine {
	return NewEngine(Config{
		BotID:          testBotID,
		ConfirmTimeout: 20 * time.Millisecond,
	}, Deps{
		Messages: g,
		Members:  g,
		Resolver: g,
		Actions:  g,
		Limiter:  limiter,
		Prompter: prompter,
		Now:      func() time.Time { return testNow },
	})
}

func testInvocation(actorID int64) *Invocation {
	return &Invocation{
		GuildID:   testGuildID,
		ChannelID: testChannelID,
		TriggerID: testTriggerID,
		ActorID:   actorID,
		ActorName: "mod#0001",
	}
}

var errForbidden = &PermissionError{Err: errors.NewPlain("403 Forbidden")}
