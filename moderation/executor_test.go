package moderation

import (
	"context"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExecutor(g *fakeGuild, limiter RateLimiter) *Executor {
	return &Executor{
		Actions: g,
		Limiter: limiter,
		Now:     func() time.Time { return testNow },
	}
}

func TestDeleteMessagesSplitsByAge(t *testing.T) {
	g := newFakeGuild()
	alice := g.addMember(10, "alice")
	bob := g.addMember(11, "bob")

	var msgs []*MessageCandidate
	for i := 0; i < 150; i++ {
		msgs = append(msgs, g.addMessage(testChannelID, alice, "young", time.Hour))
	}
	for i := 0; i < 3; i++ {
		msgs = append(msgs, g.addMessage(testChannelID, bob, "old", 15*24*time.Hour))
	}

	limiter := &recordingLimiter{}
	summary := NewSummary(OpPurge)
	testExecutor(g, limiter).DeleteMessages(context.Background(), testChannelID, msgs, summary)

	require.Len(t, g.bulkDeletes, 2)
	assert.Len(t, g.bulkDeletes[0], 100)
	assert.Len(t, g.bulkDeletes[1], 50)
	assert.Len(t, g.singleDeletes, 3)
	assert.Equal(t, 2, limiter.count("bulkdelete:"))
	assert.Equal(t, 3, limiter.count("delete:"))

	assert.Equal(t, 153, summary.Success)
	assert.Nil(t, summary.Abort)
	assert.Equal(t, []AuthorCount{{Name: "alice", Count: 150}, {Name: "bob", Count: 3}}, summary.AuthorCounts())
	assert.Zero(t, g.messageCount(testChannelID))
}

func TestDeleteMessagesSingleChunk(t *testing.T) {
	g := newFakeGuild()
	alice := g.addMember(10, "alice")
	msgs := []*MessageCandidate{g.addMessage(testChannelID, alice, "x", time.Minute)}

	summary := NewSummary(OpPurge)
	testExecutor(g, &recordingLimiter{}).DeleteMessages(context.Background(), testChannelID, msgs, summary)

	assert.Empty(t, g.bulkDeletes)
	assert.Equal(t, []int64{msgs[0].ID}, g.singleDeletes)
	assert.Equal(t, 1, summary.Success)
}

func TestDeleteMessagesAbort(t *testing.T) {
	g := newFakeGuild()
	alice := g.addMember(10, "alice")

	var msgs []*MessageCandidate
	for i := 0; i < 250; i++ {
		msgs = append(msgs, g.addMessage(testChannelID, alice, "x", time.Hour))
	}

	g.deleteErr = errForbidden
	g.failBulkAt = 1

	summary := NewSummary(OpPurge)
	testExecutor(g, &recordingLimiter{}).DeleteMessages(context.Background(), testChannelID, msgs, summary)

	assert.Equal(t, 100, summary.Success)
	assert.Equal(t, 100, summary.Failed)
	assert.Equal(t, 50, summary.Skipped)
	assert.Equal(t, 250, summary.Total())
	assert.ErrorIs(t, summary.Abort, errForbidden)
	assert.Len(t, g.bulkDeletes, 1)
	assert.Equal(t, 150, g.messageCount(testChannelID))
}

type unknownDeleter struct {
	*fakeGuild
}

func (u unknownDeleter) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	return errors.WithMessage(ErrUnknownMessage, "DeleteMessage")
}

func TestDeleteMessagesUnknownIsSuccess(t *testing.T) {
	g := newFakeGuild()
	alice := g.addMember(10, "alice")
	msgs := []*MessageCandidate{g.addMessage(testChannelID, alice, "x", 20*24*time.Hour)}

	summary := NewSummary(OpPurge)
	e := &Executor{Actions: unknownDeleter{g}, Limiter: &recordingLimiter{}, Now: func() time.Time { return testNow }}
	e.DeleteMessages(context.Background(), testChannelID, msgs, summary)

	assert.Equal(t, 1, summary.Success)
	assert.Nil(t, summary.Abort)
}

func TestBanMembersContinuesOnFailure(t *testing.T) {
	g := newFakeGuild()
	a := g.addMember(10, "a")
	b := g.addMember(11, "b")
	c := g.addMember(12, "c")
	g.banErrs[b.UserID] = errForbidden

	limiter := &recordingLimiter{}
	summary := NewSummary(OpMassban)
	testExecutor(g, limiter).BanMembers(context.Background(), testGuildID, []*MemberCandidate{a, b, c}, "raid", summary)

	assert.Equal(t, []int64{a.UserID, c.UserID}, g.bans)
	assert.Equal(t, 2, summary.Success)
	assert.Equal(t, 1, summary.Failed)
	assert.Nil(t, summary.Abort)
	assert.Equal(t, 3, limiter.count("ban:1000"))
}

func TestBanMembersLimiterAbort(t *testing.T) {
	g := newFakeGuild()
	members := []*MemberCandidate{g.addMember(10, "a"), g.addMember(11, "b")}

	summary := NewSummary(OpMassban)
	testExecutor(g, &recordingLimiter{err: context.Canceled}).BanMembers(context.Background(), testGuildID, members, "raid", summary)

	assert.Empty(t, g.bans)
	assert.Equal(t, 2, summary.Skipped)
	assert.ErrorIs(t, summary.Abort, context.Canceled)
}

func TestClearReactions(t *testing.T) {
	g := newFakeGuild()
	alice := g.addMember(10, "alice")
	m1 := g.addMessage(testChannelID, alice, "x", time.Minute)
	m1.Reactions, m1.ReactionCount = 2, 5
	m2 := g.addMessage(testChannelID, alice, "y", time.Minute)
	m2.Reactions, m2.ReactionCount = 1, 1

	summary := NewSummary(OpReactions)
	testExecutor(g, &recordingLimiter{}).ClearReactions(context.Background(), testChannelID, []*MessageCandidate{m1, m2}, summary)

	assert.Equal(t, 6, summary.Reactions)
	assert.Equal(t, []int64{m1.ID, m2.ID}, g.cleared)
	assert.Equal(t, "Successfully removed 6 reactions.", ReactionsReport(summary))
}

func TestClearReactionsFailureNotCounted(t *testing.T) {
	g := newFakeGuild()
	alice := g.addMember(10, "alice")
	m1 := g.addMessage(testChannelID, alice, "x", time.Minute)
	m1.Reactions, m1.ReactionCount = 1, 3
	m2 := g.addMessage(testChannelID, alice, "y", time.Minute)
	m2.Reactions, m2.ReactionCount = 1, 4
	m3 := g.addMessage(testChannelID, alice, "z", time.Minute)
	m3.Reactions, m3.ReactionCount = 1, 2

	g.clearErrs = map[int64]error{m2.ID: errors.New("boom")}

	summary := NewSummary(OpReactions)
	testExecutor(g, &recordingLimiter{}).ClearReactions(context.Background(), testChannelID, []*MessageCandidate{m1, m2, m3}, summary)

	assert.Equal(t, 3, summary.Reactions)
	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Error(t, summary.Abort)
	assert.Equal(t, 4, m2.ReactionCount)
}

func TestDetachedContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
	cancel()

	d := detach(ctx)
	assert.NoError(t, d.Err())
	assert.Nil(t, d.Done())
	assert.Equal(t, "v", d.Value(ctxKey{}))
}

type ctxKey struct{}
