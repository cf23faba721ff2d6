package moderation

import (
	"context"
	"time"
)

type ConfirmationState int

const (
	ConfirmationPending ConfirmationState = iota
	ConfirmationConfirmed
	ConfirmationDenied
	ConfirmationTimedOut
)

func (c ConfirmationState) String() string {
	switch c {
	case ConfirmationPending:
		return "pending"
	case ConfirmationConfirmed:
		return "confirmed"
	case ConfirmationDenied:
		return "denied"
	case ConfirmationTimedOut:
		return "timed_out"
	}

	return "unknown"
}

// Proceed returns true only for an explicit confirmation, a timeout counts as a denial
func (c ConfirmationState) Proceed() bool {
	return c == ConfirmationConfirmed
}

const DefaultConfirmTimeout = 30 * time.Second

// PromptRequest is a yes/no question to the user that invoked the command
type PromptRequest struct {
	GuildID   int64
	ChannelID int64
	// UserID is the only user whose answer counts
	UserID  int64
	Text    string
	Timeout time.Duration
}

// Prompter asks the invoking user for a confirmation and blocks until it is answered or times out
type Prompter interface {
	Confirm(ctx context.Context, req PromptRequest) (ConfirmationState, error)
}

// gate makes sure an invocation prompts at most once
type gate struct {
	prompter Prompter
	used     bool
}

func (g *gate) confirm(ctx context.Context, req PromptRequest) (ConfirmationState, error) {
	if g.used {
		return ConfirmationDenied, nil
	}
	g.used = true

	state, err := g.prompter.Confirm(ctx, req)
	if err != nil {
		return ConfirmationDenied, err
	}

	metricConfirmations.WithLabelValues(state.String()).Inc()
	return state, nil
}
