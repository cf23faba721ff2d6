package moderation

import (
	"sort"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeUnauthorized
	OutcomeSkipped
	OutcomeFailed
)

func (o OutcomeKind) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}

	return "unknown"
}

// Outcome is what happened to a single candidate
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

func Success() Outcome              { return Outcome{Kind: OutcomeSuccess} }
func Unauthorized() Outcome         { return Outcome{Kind: OutcomeUnauthorized} }
func Skipped(reason string) Outcome { return Outcome{Kind: OutcomeSkipped, Reason: reason} }
func Failed(err error) Outcome      { return Outcome{Kind: OutcomeFailed, Err: err} }

// Operation names the bulk operation in summaries and metrics
type Operation string

const (
	OpPurge     Operation = "purge"
	OpMassban   Operation = "massban"
	OpReactions Operation = "reactions"
)

// ExecutionSummary aggregates the outcomes of one invocation
type ExecutionSummary struct {
	Op Operation

	Success      int
	Unauthorized int
	Skipped      int
	Failed       int

	// Authors counts successes per author display name, message operations only
	Authors map[string]int

	// Reactions is the number of reactions removed, reaction clearing only
	Reactions int

	// Abort is set if the batch was stopped early
	Abort error
}

func NewSummary(op Operation) *ExecutionSummary {
	return &ExecutionSummary{
		Op:      op,
		Authors: make(map[string]int),
	}
}

// Record adds an outcome, author is only used for successes
func (s *ExecutionSummary) Record(o Outcome, author string) {
	switch o.Kind {
	case OutcomeSuccess:
		s.Success++
		if author != "" {
			s.Authors[author]++
		}
	case OutcomeUnauthorized:
		s.Unauthorized++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}

	metricCandidates.WithLabelValues(string(s.Op), o.Kind.String()).Inc()
}

// Total is the number of candidates with a recorded outcome
func (s *ExecutionSummary) Total() int {
	return s.Success + s.Unauthorized + s.Skipped + s.Failed
}

// Attempted is the number of candidates the action was actually meant to run on
func (s *ExecutionSummary) Attempted() int {
	return s.Total() - s.Unauthorized
}

type AuthorCount struct {
	Name  string
	Count int
}

// AuthorCounts returns the author table sorted by count, highest first, ties by name
func (s *ExecutionSummary) AuthorCounts() []AuthorCount {
	result := make([]AuthorCount, 0, len(s.Authors))
	for k, v := range s.Authors {
		result = append(result, AuthorCount{Name: k, Count: v})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}

		return result[i].Name < result[j].Name
	})

	return result
}
