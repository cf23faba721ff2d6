package moderation

import (
	"context"
	"strconv"
	"time"

	"emperror.dev/errors"
)

// Actions performs the destructive calls, every call either fully succeeds or returns an error
type Actions interface {
	DeleteMessage(ctx context.Context, channelID, messageID int64) error
	BulkDeleteMessages(ctx context.Context, channelID int64, messageIDs []int64) error
	Ban(ctx context.Context, guildID, userID int64, reason string, deleteMessageDays int) error
	Unban(ctx context.Context, guildID, userID int64) error
	ClearReactions(ctx context.Context, channelID, messageID int64) error
}

// ErrUnknownMessage is returned by Actions.DeleteMessage if the message was already gone
var ErrUnknownMessage = errors.NewPlain("unknown message")

// PermissionError is returned by Actions when the bot lacks the permissions for the call
type PermissionError struct {
	Err error
}

func (p *PermissionError) Error() string {
	return "missing permissions: " + p.Err.Error()
}

func (p *PermissionError) Unwrap() error {
	return p.Err
}

const (
	bulkDeleteChunk = 100
	// messages older than this can't be bulk deleted, with a minute of leeway
	DefaultBulkDeleteMaxAge = 14*24*time.Hour - time.Minute

	abortedReason = "aborted"
)

// Executor runs the destructive part of the bulk operations
type Executor struct {
	Actions          Actions
	Limiter          RateLimiter
	BulkDeleteMaxAge time.Duration
	Now              func() time.Time
}

// DeleteMessages deletes msgs, bulk deleting the ones young enough and deleting the rest one by one.
// The first error stops the whole batch, the rest of the messages are recorded as skipped.
func (e *Executor) DeleteMessages(ctx context.Context, channelID int64, msgs []*MessageCandidate, summary *ExecutionSummary) {
	maxAge := e.BulkDeleteMaxAge
	if maxAge <= 0 {
		maxAge = DefaultBulkDeleteMaxAge
	}

	cutoff := e.Now().Add(-maxAge)

	var young, old []*MessageCandidate
	for _, m := range msgs {
		if m.CreatedAt.After(cutoff) {
			young = append(young, m)
		} else {
			old = append(old, m)
		}
	}

	strCh := strconv.FormatInt(channelID, 10)

	var pending []*MessageCandidate
	pending = append(pending, young...)
	pending = append(pending, old...)

	for i := 0; i < len(pending); {
		var chunk []*MessageCandidate
		var err error

		if i < len(young) {
			end := i + bulkDeleteChunk
			if end > len(young) {
				end = len(young)
			}
			chunk = young[i:end]
			err = e.deleteChunk(ctx, strCh, channelID, chunk)
		} else {
			chunk = pending[i : i+1]
			err = e.deleteSingle(ctx, strCh, channelID, chunk[0])
		}

		if err != nil {
			for range chunk {
				summary.Record(Failed(err), "")
			}
			skipRemaining(summary, len(pending)-i-len(chunk))
			summary.Abort = err
			return
		}

		for _, m := range chunk {
			summary.Record(Success(), m.AuthorName)
		}

		i += len(chunk)
	}
}

func (e *Executor) deleteChunk(ctx context.Context, strCh string, channelID int64, chunk []*MessageCandidate) error {
	if len(chunk) == 1 {
		return e.deleteSingle(ctx, strCh, channelID, chunk[0])
	}

	err := e.Limiter.Acquire(ctx, "bulkdelete:"+strCh)
	if err != nil {
		return err
	}

	ids := make([]int64, len(chunk))
	for i, m := range chunk {
		ids[i] = m.ID
	}

	return e.Actions.BulkDeleteMessages(ctx, channelID, ids)
}

func (e *Executor) deleteSingle(ctx context.Context, strCh string, channelID int64, m *MessageCandidate) error {
	err := e.Limiter.Acquire(ctx, "delete:"+strCh)
	if err != nil {
		return err
	}

	err = e.Actions.DeleteMessage(ctx, channelID, m.ID)
	if errors.Is(err, ErrUnknownMessage) {
		// already gone
		return nil
	}

	return err
}

// BanMembers bans every member, a failed ban is recorded and the rest still runs.
// Only a rate limiter error stops the batch.
func (e *Executor) BanMembers(ctx context.Context, guildID int64, members []*MemberCandidate, reason string, summary *ExecutionSummary) {
	route := "ban:" + strconv.FormatInt(guildID, 10)

	for i, m := range members {
		err := e.Limiter.Acquire(ctx, route)
		if err != nil {
			skipRemaining(summary, len(members)-i)
			summary.Abort = err
			return
		}

		err = e.Actions.Ban(ctx, guildID, m.UserID, reason, 0)
		if err != nil {
			summary.Record(Failed(err), "")
			continue
		}

		summary.Record(Success(), m.String())
	}
}

// ClearReactions removes all reactions from the messages, stopping on the first error
func (e *Executor) ClearReactions(ctx context.Context, channelID int64, msgs []*MessageCandidate, summary *ExecutionSummary) {
	route := "reactions:" + strconv.FormatInt(channelID, 10)

	for i, m := range msgs {
		count := m.ReactionCount

		err := e.Limiter.Acquire(ctx, route)
		if err == nil {
			err = e.Actions.ClearReactions(ctx, channelID, m.ID)
		}

		if err != nil {
			summary.Record(Failed(err), "")
			skipRemaining(summary, len(msgs)-i-1)
			summary.Abort = err
			return
		}

		summary.Reactions += count
		summary.Record(Success(), m.AuthorName)
	}
}

func skipRemaining(summary *ExecutionSummary, n int) {
	for i := 0; i < n; i++ {
		summary.Record(Skipped(abortedReason), "")
	}
}

// detachedContext keeps the values of the parent but never expires,
// mutation calls that already started are not interrupted by the command timeout
type detachedContext struct {
	context.Context
}

func (detachedContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detachedContext) Done() <-chan struct{}       { return nil }
func (detachedContext) Err() error                  { return nil }

func detach(ctx context.Context) context.Context {
	return detachedContext{ctx}
}
