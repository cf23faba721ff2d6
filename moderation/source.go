package moderation

import (
	"context"
	"strconv"

	"emperror.dev/errors"
	"github.com/botlabs-gg/bulkmod/common"
)

// MessageLookup reads channel history
type MessageLookup interface {
	// ChannelMessages returns up to limit messages older than before, newest first
	ChannelMessages(ctx context.Context, channelID int64, limit int, before int64) ([]*MessageCandidate, error)
}

// GuildInfo is what the hierarchy checks need to know about a guild
type GuildInfo struct {
	ID      int64
	OwnerID int64
	// role id -> position
	Roles map[int64]int
}

// MemberLookup reads the guild's member list
type MemberLookup interface {
	Guild(ctx context.Context, guildID int64) (*GuildInfo, error)
	// Member returns ErrMemberNotFound if the user is not in the guild
	Member(ctx context.Context, guildID, userID int64) (*MemberCandidate, error)
	// MembersComplete returns true if every member of the guild is cached
	MembersComplete(guildID int64) bool
	// RequestMembers fetches the full member list and blocks until it has arrived
	RequestMembers(ctx context.Context, guildID int64) error
	Members(guildID int64) []*MemberCandidate
}

// RateLimiter paces calls per route, Acquire blocks until the call is allowed
type RateLimiter interface {
	Acquire(ctx context.Context, route string) error
}

const historyPageSize = 100

// MessageScan describes a backwards history scan
type MessageScan struct {
	ChannelID int64
	// Limit is the max number of messages looked at
	Limit int
	// Before is the anchor, only messages older than it are scanned
	Before int64
	// After stops the scan, 0 for no lower bound
	After int64
	// SkipID is never returned, usually the message that triggered the command
	SkipID int64
}

// ScanMessages pages backwards through the history and returns the messages in chronological order.
// The result never has more than Limit entries.
func ScanMessages(ctx context.Context, lookup MessageLookup, limiter RateLimiter, scan MessageScan) ([]*MessageCandidate, error) {
	result := make([]*MessageCandidate, 0, scan.Limit)
	route := "history:" + strconv.FormatInt(scan.ChannelID, 10)

	before := scan.Before
	remaining := scan.Limit

OUTER:
	for remaining > 0 {
		n := remaining
		if n > historyPageSize {
			n = historyPageSize
		}

		err := limiter.Acquire(ctx, route)
		if err != nil {
			return nil, err
		}

		page, err := lookup.ChannelMessages(ctx, scan.ChannelID, n, before)
		if err != nil {
			return nil, errors.WithMessage(err, "ChannelMessages")
		}

		if len(page) > n {
			page = page[:n]
		}

		for _, m := range page {
			if scan.After != 0 && m.ID <= scan.After {
				break OUTER
			}

			if m.ID != scan.SkipID {
				result = append(result, m)
			}
		}

		remaining -= len(page)
		if len(page) < n {
			// reached the start of the channel
			break
		}

		before = page[len(page)-1].ID
	}

	common.ReverseSlice(result)
	return result, nil
}

// ScanMembers returns every member of the guild, fetching the member list first if the cache is incomplete
func ScanMembers(ctx context.Context, lookup MemberLookup, guildID int64) ([]*MemberCandidate, error) {
	if !lookup.MembersComplete(guildID) {
		err := lookup.RequestMembers(ctx, guildID)
		if err != nil {
			return nil, errors.WithMessage(err, "RequestMembers")
		}
	}

	return lookup.Members(guildID), nil
}

// MessageAuthors returns the distinct authors of msgs that are still members of the guild, in order of first appearance
func MessageAuthors(ctx context.Context, lookup MemberLookup, guildID int64, msgs []*MessageCandidate) ([]*MemberCandidate, error) {
	seen := make(map[int64]bool)
	var result []*MemberCandidate

	for _, m := range msgs {
		if seen[m.AuthorID] || m.WebhookID != 0 {
			continue
		}
		seen[m.AuthorID] = true

		member, err := lookup.Member(ctx, guildID, m.AuthorID)
		if err != nil {
			if errors.Is(err, ErrMemberNotFound) {
				continue
			}

			return nil, err
		}

		result = append(result, member)
	}

	return result, nil
}
