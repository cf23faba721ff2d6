package state

import (
	"sort"

	"github.com/jonas747/dstate/v4"
)

var _ dstate.StateTracker = (*Tracker)(nil)

func (t *Tracker) GetGuild(guildID int64) *dstate.GuildSet {
	shard := t.getShard(guildID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	return shard.guilds[guildID]
}

func (t *Tracker) GetShardGuilds(shardID int64) []*dstate.GuildSet {
	shard := t.shards[shardID]
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	result := make([]*dstate.GuildSet, 0, len(shard.guilds))
	for _, v := range shard.guilds {
		result = append(result, v)
	}

	return result
}

func (t *Tracker) GetMember(guildID int64, memberID int64) *dstate.MemberState {
	shard := t.getShard(guildID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	if members, ok := shard.members[guildID]; ok {
		return members[memberID]
	}

	return nil
}

// GetMessages always returns nil, messages are not tracked
func (t *Tracker) GetMessages(guildID int64, channelID int64, query *dstate.MessagesQuery) []*dstate.MessageState {
	return nil
}

func (t *Tracker) IterateMembers(guildID int64, f func(chunk []*dstate.MemberState) bool) {
	members := t.Members(guildID)

	const chunkSize = 1000
	for len(members) > 0 {
		n := chunkSize
		if n > len(members) {
			n = len(members)
		}

		if !f(members[:n]) {
			return
		}
		members = members[n:]
	}
}

// Members returns a snapshot of the cached members of the guild, sorted by user ID
func (t *Tracker) Members(guildID int64) []*dstate.MemberState {
	shard := t.getShard(guildID)
	shard.mu.RLock()
	members := shard.members[guildID]
	result := make([]*dstate.MemberState, 0, len(members))
	for _, v := range members {
		result = append(result, v)
	}
	shard.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].User.ID < result[j].User.ID
	})

	return result
}

// GuildCounts returns the number of guilds per shard
func (t *Tracker) GuildCounts() []int {
	result := make([]int, len(t.shards))
	for i, shard := range t.shards {
		shard.mu.RLock()
		result[i] = len(shard.guilds)
		shard.mu.RUnlock()
	}

	return result
}
