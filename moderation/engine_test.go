package moderation

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmAll() *staticPrompter {
	return &staticPrompter{state: ConfirmationConfirmed}
}

func TestPurgeCustom(t *testing.T) {
	g := newFakeGuild().withStaff()
	alice := g.addMember(10, "alice", 102)
	bob := g.addMember(11, "bob", 102)

	g.addMessage(testChannelID, alice, "spam 1", 5*time.Minute)
	g.addMessage(testChannelID, bob, "hello", 4*time.Minute)
	g.addMessage(testChannelID, alice, "spam 2", 3*time.Minute)
	g.addMessage(testChannelID, bob, "more spam", 2*time.Minute)
	g.addMessage(testChannelID, alice, "bye", time.Minute)

	e := newTestEngine(g, &recordingLimiter{}, confirmAll())
	result, err := e.PurgeCustom(context.Background(), testInvocation(testModID), "--contains spam")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.Success)
	assert.Equal(t, "3 messages were removed.\n\n**alice**: 2\n**bob**: 1", result.Text)

	sum := 0
	for _, v := range result.Summary.AuthorCounts() {
		sum += v.Count
	}
	assert.Equal(t, 3, sum)
	assert.Equal(t, 2, g.messageCount(testChannelID))

	// nothing left to match the second time
	result, err = e.PurgeCustom(context.Background(), testInvocation(testModID), "--contains spam")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Summary.Success)
	assert.Equal(t, "0 messages were removed.", result.Text)
	assert.Equal(t, 2, g.messageCount(testChannelID))
}

func TestPurgeCustomHierarchy(t *testing.T) {
	g := newFakeGuild().withStaff()
	alice := g.addMember(10, "alice", 102)
	owner := g.members[testOwnerID]
	mod := g.members[testModID]
	gone := &MemberCandidate{UserID: 50, Username: "gone"}

	g.addMessage(testChannelID, alice, "spam", time.Minute)
	g.addMessage(testChannelID, owner, "spam", time.Minute)
	g.addMessage(testChannelID, mod, "spam", time.Minute)
	g.addMessage(testChannelID, gone, "spam", time.Minute)

	e := newTestEngine(g, &recordingLimiter{}, confirmAll())
	result, err := e.PurgeCustom(context.Background(), testInvocation(testModID), "--contains spam")
	require.NoError(t, err)

	// the owner's message stays, the mod may remove their own
	assert.Equal(t, 3, result.Summary.Success)
	assert.Equal(t, 1, result.Summary.Unauthorized)
	assert.Contains(t, result.Text, "(1 message(s) skipped: not permitted)")
	assert.Equal(t, 1, g.messageCount(testChannelID))
}

func TestPurgeCustomErrors(t *testing.T) {
	g := newFakeGuild().withStaff()
	e := newTestEngine(g, &recordingLimiter{}, confirmAll())

	_, err := e.PurgeCustom(context.Background(), testInvocation(testModID), "--user nobody")
	assert.ErrorIs(t, err, ErrMemberNotFound)
	assert.Zero(t, g.historyCalls, "resolution errors abort before scanning")

	_, err = e.PurgeCustom(context.Background(), testInvocation(testModID), "--bogus")
	assert.IsType(t, &ParseError{}, err)

	_, err = e.Purge(context.Background(), testInvocation(testModID), FlagCheck{Flag: FlagBot}, 2001)
	assert.EqualError(t, err, "Too many messages to search given (2001/2000)")
}

func TestPurgeCustomBefore(t *testing.T) {
	g := newFakeGuild().withStaff()
	alice := g.addMember(10, "alice", 102)
	first := g.addMessage(testChannelID, alice, "a", 3*time.Minute)
	anchor := g.addMessage(testChannelID, alice, "b", 2*time.Minute)
	g.addMessage(testChannelID, alice, "c", time.Minute)

	e := newTestEngine(g, &recordingLimiter{}, confirmAll())
	result, err := e.PurgeCustom(context.Background(), testInvocation(testModID), "--before "+strconv.FormatInt(anchor.ID, 10))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Summary.Success)
	assert.Equal(t, []int64{first.ID}, g.singleDeletes)
}

func TestPurgeScanError(t *testing.T) {
	g := newFakeGuild().withStaff()
	e := newTestEngine(g, &recordingLimiter{err: errForbidden}, confirmAll())

	result, err := e.PurgeCustom(context.Background(), testInvocation(testModID), "--bot")
	require.NoError(t, err)
	assert.Equal(t, "I do not have permissions to delete messages.", result.Text)
}

func raidGuild() *fakeGuild {
	g := newFakeGuild().withStaff()
	g.members[testOwnerID].Roles = []int64{102}

	g.addMember(10, "raider_a")
	g.addMember(11, "raider_b")
	g.addMember(12, "raider_c")
	g.addMember(13, "lurker")
	g.addMember(14, "otherbot").Bot = true
	g.addMember(15, "regular_a", 102)
	g.addMember(16, "regular_b", 102)
	return g
}

func TestMassBanShow(t *testing.T) {
	g := raidGuild()
	require.Len(t, g.members, 10)

	e := newTestEngine(g, &recordingLimiter{}, confirmAll())
	result, err := e.MassBan(context.Background(), testInvocation(testModID), "--no-roles --show")
	require.NoError(t, err)

	assert.Equal(t, "4 member(s) matched.", result.Text)
	require.NotNil(t, result.File)
	assert.Contains(t, string(result.File.Content), "Total members: 4\n")
	assert.Empty(t, g.bans)
}

func TestMassBan(t *testing.T) {
	g := raidGuild()
	prompter := confirmAll()
	e := newTestEngine(g, &recordingLimiter{}, prompter)

	result, err := e.MassBan(context.Background(), testInvocation(testModID), `--regex raider --reason "raid"`)
	require.NoError(t, err)

	assert.Equal(t, "Banned 3/3", result.Text)
	assert.ElementsMatch(t, []int64{10, 11, 12}, g.bans)
	assert.Equal(t, "mod#0001 (ID: 3): raid", g.banReasons[0])

	require.Len(t, prompter.requests, 1)
	assert.Equal(t, "This will ban **3 member(s)**. Are you sure?", prompter.requests[0].Text)
	assert.EqualValues(t, testModID, prompter.requests[0].UserID)
}

func TestMassBanHierarchy(t *testing.T) {
	g := raidGuild()
	// above the mod, below the bot
	g.info.Roles[103] = 7
	g.members[10].Roles = []int64{103}

	e := newTestEngine(g, &recordingLimiter{}, confirmAll())
	result, err := e.MassBan(context.Background(), testInvocation(testModID), `--regex raider -r raid`)
	require.NoError(t, err)

	assert.Equal(t, "Banned 2/2 (1 member(s) skipped: not permitted)", result.Text)
	assert.NotContains(t, g.bans, int64(10))
}

func TestMassBanTimeout(t *testing.T) {
	g := raidGuild()
	e := newTestEngine(g, &recordingLimiter{}, silentPrompter{})

	result, err := e.MassBan(context.Background(), testInvocation(testModID), `--no-roles -r raid`)
	require.NoError(t, err)

	assert.Equal(t, "Aborting.", result.Text)
	assert.Empty(t, g.bans)
	assert.Equal(t, 4, result.Summary.Skipped)
}

func TestMassBanDenied(t *testing.T) {
	g := raidGuild()
	e := newTestEngine(g, &recordingLimiter{}, &staticPrompter{state: ConfirmationDenied})

	result, err := e.MassBan(context.Background(), testInvocation(testModID), `--no-roles -r raid`)
	require.NoError(t, err)
	assert.Equal(t, "Aborting.", result.Text)
	assert.Empty(t, g.bans)
}

func TestMassBanReasonRequired(t *testing.T) {
	g := raidGuild()
	e := newTestEngine(g, &recordingLimiter{}, confirmAll())

	_, err := e.MassBan(context.Background(), testInvocation(testModID), `--no-roles`)
	assert.Equal(t, ErrReasonRequired, err)
	assert.Empty(t, g.bans)
}

func TestMassBanNoMatches(t *testing.T) {
	g := raidGuild()
	prompter := confirmAll()
	e := newTestEngine(g, &recordingLimiter{}, prompter)

	result, err := e.MassBan(context.Background(), testInvocation(testModID), `--regex nobody -r raid`)
	require.NoError(t, err)
	assert.Equal(t, "No members found matching criteria.", result.Text)
	assert.Empty(t, prompter.requests)
}

func TestMassBanChannel(t *testing.T) {
	g := raidGuild()
	const raidChannel = 555
	g.addMessage(raidChannel, g.members[10], "free nitro at example", time.Minute)
	g.addMessage(raidChannel, g.members[15], "hello", time.Minute)
	g.addMessage(raidChannel, g.members[11], "free nitro again", time.Minute)
	g.addMessage(raidChannel, g.members[10], "free nitro again", time.Minute)

	e := newTestEngine(g, &recordingLimiter{}, confirmAll())
	result, err := e.MassBan(context.Background(), testInvocation(testModID), `-c 555 --contains "free nitro" -r spam`)
	require.NoError(t, err)

	assert.Equal(t, "Banned 2/2", result.Text)
	assert.Equal(t, []int64{10, 11}, g.bans)
}

func TestMassBanFetchesMembers(t *testing.T) {
	g := raidGuild()
	g.complete = false

	e := newTestEngine(g, &recordingLimiter{}, confirmAll())
	_, err := e.MassBan(context.Background(), testInvocation(testModID), `--no-roles --show`)
	require.NoError(t, err)
	assert.Equal(t, 1, g.requests)
}

func TestClearReactionsEngine(t *testing.T) {
	g := newFakeGuild().withStaff()
	alice := g.addMember(10, "alice", 102)
	m := g.addMessage(testChannelID, alice, "x", time.Minute)
	m.Reactions, m.ReactionCount = 1, 4
	g.addMessage(testChannelID, alice, "y", time.Minute)

	e := newTestEngine(g, &recordingLimiter{}, confirmAll())
	result, err := e.ClearReactions(context.Background(), testInvocation(testModID), 100)
	require.NoError(t, err)
	assert.Equal(t, "Successfully removed 4 reactions.", result.Text)
	assert.Equal(t, []int64{m.ID}, g.cleared)

	_, err = e.ClearReactions(context.Background(), testInvocation(testModID), 3000)
	assert.EqualError(t, err, "Too many messages to search for (3000/2000)")
}

func TestUnban(t *testing.T) {
	g := newFakeGuild().withStaff()

	e := newTestEngine(g, &recordingLimiter{}, confirmAll())
	result, err := e.Unban(context.Background(), testInvocation(testModID), 77, "someone#0001")
	require.NoError(t, err)
	assert.Equal(t, "Unbanned someone#0001.", result.Text)
	assert.Equal(t, []int64{77}, g.unbans)

	e = newTestEngine(g, &recordingLimiter{}, &staticPrompter{state: ConfirmationDenied})
	result, err = e.Unban(context.Background(), testInvocation(testModID), 78, "other#0001")
	require.NoError(t, err)
	assert.Equal(t, "Cancelled!", result.Text)
	assert.Equal(t, []int64{77}, g.unbans)
}

func TestSoftban(t *testing.T) {
	g := newFakeGuild().withStaff()
	g.addMember(10, "alice", 102)

	limiter := &recordingLimiter{}
	e := newTestEngine(g, limiter, confirmAll())

	result, err := e.Softban(context.Background(), testInvocation(testModID), 10, "")
	require.NoError(t, err)
	assert.Equal(t, "👌", result.Text)
	assert.Equal(t, []int64{10}, g.bans)
	assert.Equal(t, []int64{10}, g.unbans)
	assert.Equal(t, "Action done by mod#0001 (ID: 3)", g.banReasons[0])
	assert.Equal(t, 2, limiter.count("ban:"))

	_, err = e.Softban(context.Background(), testInvocation(testModID), testOwnerID, "")
	assert.Equal(t, ErrTargetOwner, err)

	_, err = e.Softban(context.Background(), testInvocation(testModID), 404, "")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestBanReasonLength(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}

	reason := BanReason("mod", 3, string(long))
	assert.LessOrEqual(t, len([]rune(reason)), MaxReasonLength)
}
