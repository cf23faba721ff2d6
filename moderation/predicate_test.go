package moderation

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCombineTruthTable(t *testing.T) {
	atoms := []Predicate{
		FlagCheck{Flag: FlagBot},
		FlagCheck{Flag: FlagHasEmbeds},
		FlagCheck{Flag: FlagHasFiles},
	}

	for n := 0; n <= len(atoms); n++ {
		preds := atoms[:n]
		for bits := 0; bits < 8; bits++ {
			msg := &MessageCandidate{AuthorBot: bits&1 != 0}
			if bits&2 != 0 {
				msg.Embeds = 1
			}
			if bits&4 != 0 {
				msg.Attachments = 1
			}

			and, or := true, false
			for i := range preds {
				v := bits&(1<<i) != 0
				and = and && v
				or = or || v
			}

			assert.Equal(t, and, Eval(Combine(preds, false, false), msg), "and n=%d bits=%03b", n, bits)
			assert.Equal(t, or, Eval(Combine(preds, true, false), msg), "or n=%d bits=%03b", n, bits)
			assert.Equal(t, !and, Eval(Combine(preds, false, true), msg), "not and n=%d bits=%03b", n, bits)
			assert.Equal(t, !or, Eval(Combine(preds, true, true), msg), "not or n=%d bits=%03b", n, bits)
		}
	}
}

func TestFieldMatchText(t *testing.T) {
	msg := &MessageCandidate{Content: "buy cheap nitro now"}

	assert.True(t, Eval(FieldMatch{Field: FieldContent, Op: OpContains, Values: []string{"x", "nitro"}}, msg))
	assert.False(t, Eval(FieldMatch{Field: FieldContent, Op: OpContains, Values: []string{"x"}}, msg))
	assert.True(t, Eval(FieldMatch{Field: FieldContent, Op: OpPrefix, Values: []string{"buy"}}, msg))
	assert.False(t, Eval(FieldMatch{Field: FieldContent, Op: OpPrefix, Values: []string{"now"}}, msg))
	assert.True(t, Eval(FieldMatch{Field: FieldContent, Op: OpSuffix, Values: []string{"now"}}, msg))
	assert.True(t, Eval(FieldMatch{Field: FieldContent, Op: OpRegex, Pattern: regexp.MustCompile(`ch[e]+ap`)}, msg))

	// messages have no username
	assert.False(t, Eval(FieldMatch{Field: FieldUsername, Op: OpContains, Values: []string{""}}, msg))
}

func TestFieldMatchIDsAndTimes(t *testing.T) {
	member := &MemberCandidate{UserID: 5, JoinedAt: testNow.Add(-time.Hour)}

	assert.True(t, Eval(FieldMatch{Field: FieldUser, Op: OpIDIn, IDs: []int64{4, 5}}, member))
	assert.False(t, Eval(FieldMatch{Field: FieldUser, Op: OpIDIn, IDs: []int64{4}}, member))

	assert.True(t, Eval(FieldMatch{Field: FieldJoined, Op: OpAfter, Time: testNow.Add(-2 * time.Hour)}, member))
	assert.False(t, Eval(FieldMatch{Field: FieldJoined, Op: OpBefore, Time: testNow.Add(-2 * time.Hour)}, member))

	// unknown times never match
	assert.False(t, Eval(FieldMatch{Field: FieldCreated, Op: OpBefore, Time: testNow}, member))
}

func TestMemberFlags(t *testing.T) {
	member := &MemberCandidate{Discriminator: "0000"}

	assert.True(t, Eval(FlagCheck{Flag: FlagNoAvatar}, member))
	assert.True(t, Eval(FlagCheck{Flag: FlagNoRoles}, member))
	assert.True(t, Eval(FlagCheck{Flag: FlagDeletedUser}, member))
	assert.False(t, Eval(FlagCheck{Flag: FlagHasEmbeds}, member))

	member.Roles = []int64{1}
	assert.False(t, Eval(FlagCheck{Flag: FlagNoRoles}, member))
}

func TestFilterKeepsOrder(t *testing.T) {
	msgs := []*MessageCandidate{
		{ID: 1, Content: "spam"},
		{ID: 2, Content: "ham"},
		{ID: 3, Content: "more spam"},
	}

	result := Filter(FieldMatch{Field: FieldContent, Op: OpContains, Values: []string{"spam"}}, msgs)
	if assert.Len(t, result, 2) {
		assert.EqualValues(t, 1, result[0].ID)
		assert.EqualValues(t, 3, result[1].ID)
	}
}

func TestRefID(t *testing.T) {
	msg := &MessageCandidate{ID: 77, AuthorID: 5}

	id, ok := msg.RefID(FieldAuthor)
	assert.True(t, ok)
	assert.EqualValues(t, 5, id)

	_, ok = msg.RefID(FieldUser)
	assert.False(t, ok)

	// the message's own ID is not an author match
	assert.False(t, Eval(FieldMatch{Field: FieldAuthor, Op: OpIDIn, IDs: []int64{77}}, msg))
	assert.True(t, Eval(FieldMatch{Field: FieldAuthor, Op: OpIDIn, IDs: []int64{5}}, msg))

	member := &MemberCandidate{UserID: 9}
	id, ok = member.RefID(FieldUser)
	assert.True(t, ok)
	assert.EqualValues(t, 9, id)
}
