package moderation

import (
	"regexp"
	"strings"
	"time"
)

// Candidate is a single entity a bulk action may target, a message or a member
type Candidate interface {
	// Text returns the value of a text field and whether the candidate has it
	Text(field Field) (string, bool)
	// RefID returns the value of an ID field
	RefID(field Field) (int64, bool)
	// Time returns the value of a time field, zero times are treated as missing
	Time(field Field) (time.Time, bool)
	// Flag returns the state of a boolean property
	Flag(flag Flag) bool
}

type Field string

const (
	FieldContent  Field = "content"
	FieldAuthor   Field = "author"
	FieldUser     Field = "user"
	FieldUsername Field = "username"
	FieldCreated  Field = "created"
	FieldJoined   Field = "joined"
)

type Flag string

const (
	FlagBot         Flag = "bot"
	FlagHasEmbeds   Flag = "embeds"
	FlagHasFiles    Flag = "files"
	FlagReactions   Flag = "reactions"
	FlagPinned      Flag = "pinned"
	FlagWebhook     Flag = "webhook"
	FlagNoAvatar    Flag = "no-avatar"
	FlagNoRoles     Flag = "no-roles"
	FlagDeletedUser Flag = "deleted-user"
)

type MatchOp int

const (
	OpContains MatchOp = iota
	OpPrefix
	OpSuffix
	OpRegex
	OpIDIn
	OpAfter
	OpBefore
)

func (o MatchOp) String() string {
	switch o {
	case OpContains:
		return "contains"
	case OpPrefix:
		return "starts"
	case OpSuffix:
		return "ends"
	case OpRegex:
		return "regex"
	case OpIDIn:
		return "in"
	case OpAfter:
		return "after"
	case OpBefore:
		return "before"
	}

	return "unknown"
}

// Predicate is a pure test over one candidate, the set of implementations is closed
type Predicate interface {
	predicateNode()
}

// FieldMatch compares a single field of the candidate.
// Text ops match if any of Values match, OpIDIn matches if the ID is in IDs,
// OpAfter/OpBefore compare against Time (exclusive).
type FieldMatch struct {
	Field   Field
	Op      MatchOp
	Values  []string
	IDs     []int64
	Pattern *regexp.Regexp
	Time    time.Time
}

// FlagCheck is true if the candidate has the flag set
type FlagCheck struct {
	Flag Flag
}

// All is true if every inner predicate is true, and for no predicates
type All []Predicate

// Any is true if at least one inner predicate is true, false for no predicates
type Any []Predicate

type Not struct {
	Inner Predicate
}

func (FieldMatch) predicateNode() {}
func (FlagCheck) predicateNode()  {}
func (All) predicateNode()        {}
func (Any) predicateNode()        {}
func (Not) predicateNode()        {}

// Eval walks the predicate tree against c
func Eval(p Predicate, c Candidate) bool {
	switch t := p.(type) {
	case All:
		for _, v := range t {
			if !Eval(v, c) {
				return false
			}
		}
		return true
	case Any:
		for _, v := range t {
			if Eval(v, c) {
				return true
			}
		}
		return false
	case Not:
		return !Eval(t.Inner, c)
	case FlagCheck:
		return c.Flag(t.Flag)
	case FieldMatch:
		return t.eval(c)
	}

	panic("moderation: unknown predicate type")
}

func (f FieldMatch) eval(c Candidate) bool {
	switch f.Op {
	case OpIDIn:
		id, ok := c.RefID(f.Field)
		if !ok {
			return false
		}
		for _, v := range f.IDs {
			if v == id {
				return true
			}
		}
		return false

	case OpAfter, OpBefore:
		t, ok := c.Time(f.Field)
		if !ok || t.IsZero() {
			return false
		}
		if f.Op == OpAfter {
			return t.After(f.Time)
		}
		return t.Before(f.Time)

	case OpRegex:
		s, ok := c.Text(f.Field)
		if !ok || f.Pattern == nil {
			return false
		}
		return f.Pattern.MatchString(s)
	}

	s, ok := c.Text(f.Field)
	if !ok {
		return false
	}

	for _, v := range f.Values {
		var matched bool
		switch f.Op {
		case OpContains:
			matched = strings.Contains(s, v)
		case OpPrefix:
			matched = strings.HasPrefix(s, v)
		case OpSuffix:
			matched = strings.HasSuffix(s, v)
		}

		if matched {
			return true
		}
	}

	return false
}

// Combine joins the predicates with AND, or OR if or is set, and inverts the result if not is set
func Combine(preds []Predicate, or, not bool) Predicate {
	var combined Predicate = All(preds)
	if or {
		combined = Any(preds)
	}

	if not {
		return Not{Inner: combined}
	}

	return combined
}

// Filter returns the candidates matching p, in order
func Filter[T Candidate](p Predicate, candidates []T) []T {
	result := make([]T, 0, len(candidates))
	for _, v := range candidates {
		if Eval(p, v) {
			result = append(result, v)
		}
	}

	return result
}

// MessageCandidate is a message found in a channel's history
type MessageCandidate struct {
	ID         int64
	ChannelID  int64
	AuthorID   int64
	AuthorName string
	AuthorBot  bool
	WebhookID  int64
	Content    string
	CreatedAt  time.Time

	Embeds        int
	Attachments   int
	Reactions     int
	ReactionCount int
	Pinned        bool
}

func (m *MessageCandidate) Text(field Field) (string, bool) {
	if field == FieldContent {
		return m.Content, true
	}

	return "", false
}

func (m *MessageCandidate) RefID(field Field) (int64, bool) {
	if field == FieldAuthor {
		return m.AuthorID, true
	}

	return 0, false
}

func (m *MessageCandidate) Time(field Field) (time.Time, bool) {
	if field == FieldCreated {
		return m.CreatedAt, !m.CreatedAt.IsZero()
	}

	return time.Time{}, false
}

func (m *MessageCandidate) Flag(flag Flag) bool {
	switch flag {
	case FlagBot:
		return m.AuthorBot
	case FlagHasEmbeds:
		return m.Embeds > 0
	case FlagHasFiles:
		return m.Attachments > 0
	case FlagReactions:
		return m.Reactions > 0
	case FlagPinned:
		return m.Pinned
	case FlagWebhook:
		return m.WebhookID != 0
	}

	return false
}

// MemberCandidate is a guild member
type MemberCandidate struct {
	UserID        int64
	Username      string
	Discriminator string
	Bot           bool
	Avatar        string
	// Roles excludes @everyone
	Roles     []int64
	JoinedAt  time.Time
	CreatedAt time.Time
}

// String formats the member the way discord shows users, name#discrim
func (m *MemberCandidate) String() string {
	if m.Discriminator == "" || m.Discriminator == "0" {
		return m.Username
	}

	return m.Username + "#" + m.Discriminator
}

func (m *MemberCandidate) Text(field Field) (string, bool) {
	if field == FieldUsername {
		return m.Username, true
	}

	return "", false
}

func (m *MemberCandidate) RefID(field Field) (int64, bool) {
	if field == FieldUser {
		return m.UserID, true
	}

	return 0, false
}

func (m *MemberCandidate) Time(field Field) (time.Time, bool) {
	switch field {
	case FieldJoined:
		return m.JoinedAt, !m.JoinedAt.IsZero()
	case FieldCreated:
		return m.CreatedAt, !m.CreatedAt.IsZero()
	}

	return time.Time{}, false
}

func (m *MemberCandidate) Flag(flag Flag) bool {
	switch flag {
	case FlagBot:
		return m.Bot
	case FlagNoAvatar:
		return m.Avatar == ""
	case FlagNoRoles:
		return len(m.Roles) == 0
	case FlagDeletedUser:
		return m.Discriminator == "0000"
	}

	return false
}
