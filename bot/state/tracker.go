// Package state is an in memory dstate.StateTracker tracking guilds, channels, roles and members.
// Messages are not tracked, history is always read over REST.
package state

import (
	"context"
	"sync"

	"github.com/jonas747/discordgo/v2"
	"github.com/jonas747/dstate/v4"
)

type Tracker struct {
	totalShards int64
	shards      []*trackerShard
}

func NewTracker(totalShards int64) *Tracker {
	if totalShards < 1 {
		totalShards = 1
	}

	shards := make([]*trackerShard, totalShards)
	for i := range shards {
		shards[i] = newShard(i)
	}

	return &Tracker{
		totalShards: totalShards,
		shards:      shards,
	}
}

// guild sets are never modified in place, every update swaps in a copy
// so a returned *dstate.GuildSet can be read without holding the lock
type trackerShard struct {
	mu sync.RWMutex

	shardID int

	// Key is GuildID
	guilds  map[int64]*dstate.GuildSet
	members map[int64]map[int64]*dstate.MemberState

	// member list completion, see RequestMembers
	complete map[int64]bool
	waiters  map[int64][]chan struct{}
}

func newShard(id int) *trackerShard {
	return &trackerShard{
		shardID:  id,
		guilds:   make(map[int64]*dstate.GuildSet),
		members:  make(map[int64]map[int64]*dstate.MemberState),
		complete: make(map[int64]bool),
		waiters:  make(map[int64][]chan struct{}),
	}
}

func (t *Tracker) getShard(guildID int64) *trackerShard {
	shardID := (guildID >> 22) % t.totalShards
	return t.shards[shardID]
}

func guildIDFromEvent(i interface{}) int64 {
	switch evt := i.(type) {
	case *discordgo.GuildCreate:
		return evt.ID
	case *discordgo.GuildUpdate:
		return evt.ID
	case *discordgo.GuildDelete:
		return evt.ID
	case *discordgo.GuildMemberAdd:
		return evt.GuildID
	case *discordgo.GuildMemberUpdate:
		return evt.GuildID
	case *discordgo.GuildMemberRemove:
		return evt.GuildID
	case *discordgo.GuildMembersChunk:
		return evt.GuildID
	case *discordgo.ChannelCreate:
		return evt.GuildID
	case *discordgo.ChannelUpdate:
		return evt.GuildID
	case *discordgo.ChannelDelete:
		return evt.GuildID
	case *discordgo.GuildRoleCreate:
		return evt.GuildID
	case *discordgo.GuildRoleUpdate:
		return evt.GuildID
	case *discordgo.GuildRoleDelete:
		return evt.GuildID
	}

	return 0
}

// HandleEvent updates the state, it's meant to be added as a handler to every session
func (t *Tracker) HandleEvent(s *discordgo.Session, i interface{}) {
	guildID := guildIDFromEvent(i)
	if guildID == 0 {
		return
	}

	t.getShard(guildID).handleEvent(i)
}

func (shard *trackerShard) handleEvent(i interface{}) {
	shard.mu.Lock()
	defer shard.mu.Unlock()

	switch evt := i.(type) {
	// Guild events
	case *discordgo.GuildCreate:
		shard.handleGuildCreate(evt.Guild)
	case *discordgo.GuildUpdate:
		shard.handleGuildUpdate(evt.Guild)
	case *discordgo.GuildDelete:
		shard.handleGuildDelete(evt.Guild)

	// Member events
	case *discordgo.GuildMemberAdd:
		shard.handleMemberAdd(evt.Member)
	case *discordgo.GuildMemberUpdate:
		shard.putMember(evt.Member)
	case *discordgo.GuildMemberRemove:
		shard.handleMemberRemove(evt.Member)
	case *discordgo.GuildMembersChunk:
		shard.handleMembersChunk(evt)

	// Channel events
	case *discordgo.ChannelCreate:
		shard.handleChannelCreateUpdate(evt.Channel)
	case *discordgo.ChannelUpdate:
		shard.handleChannelCreateUpdate(evt.Channel)
	case *discordgo.ChannelDelete:
		shard.handleChannelDelete(evt.Channel)

	// Role events
	case *discordgo.GuildRoleCreate:
		shard.handleRoleCreateUpdate(evt.GuildID, evt.Role)
	case *discordgo.GuildRoleUpdate:
		shard.handleRoleCreateUpdate(evt.GuildID, evt.Role)
	case *discordgo.GuildRoleDelete:
		shard.handleRoleDelete(evt.GuildID, evt.RoleID)
	}
}

///////////////////
// Guild events
///////////////////

func (shard *trackerShard) handleGuildCreate(g *discordgo.Guild) {
	shard.guilds[g.ID] = dstate.GuildSetFromGuild(g)

	members := make(map[int64]*dstate.MemberState, len(g.Members))
	for _, v := range g.Members {
		v.GuildID = g.ID
		ms := dstate.MemberStateFromMember(v)
		members[ms.User.ID] = ms
	}
	shard.members[g.ID] = members

	// small guilds come with every member
	if g.MemberCount > 0 && len(members) >= g.MemberCount {
		shard.markComplete(g.ID)
	}
}

func (shard *trackerShard) handleGuildUpdate(g *discordgo.Guild) {
	existing, ok := shard.guilds[g.ID]
	if !ok {
		shard.guilds[g.ID] = dstate.GuildSetFromGuild(g)
		return
	}

	updated := *existing
	updated.GuildState = *dstate.GuildStateFromDgo(g)
	// not sent on updates
	updated.MemberCount = existing.MemberCount

	if len(g.Roles) > 0 {
		updated.Roles = make([]discordgo.Role, len(g.Roles))
		for i, r := range g.Roles {
			updated.Roles[i] = *r
		}
	}

	shard.guilds[g.ID] = &updated
}

func (shard *trackerShard) handleGuildDelete(g *discordgo.Guild) {
	if g.Unavailable {
		if existing, ok := shard.guilds[g.ID]; ok {
			updated := *existing
			updated.Available = false
			shard.guilds[g.ID] = &updated
		}
		return
	}

	delete(shard.guilds, g.ID)
	delete(shard.members, g.ID)
	delete(shard.complete, g.ID)
}

///////////////////
// Member events
///////////////////

func (shard *trackerShard) putMember(m *discordgo.Member) {
	if m.User == nil {
		return
	}

	members, ok := shard.members[m.GuildID]
	if !ok {
		members = make(map[int64]*dstate.MemberState)
		shard.members[m.GuildID] = members
	}

	members[m.User.ID] = dstate.MemberStateFromMember(m)
}

func (shard *trackerShard) handleMemberAdd(m *discordgo.Member) {
	shard.putMember(m)

	if gs, ok := shard.guilds[m.GuildID]; ok {
		updated := *gs
		updated.MemberCount++
		shard.guilds[m.GuildID] = &updated
	}
}

func (shard *trackerShard) handleMemberRemove(m *discordgo.Member) {
	if m.User != nil {
		delete(shard.members[m.GuildID], m.User.ID)
	}

	if gs, ok := shard.guilds[m.GuildID]; ok {
		updated := *gs
		updated.MemberCount--
		shard.guilds[m.GuildID] = &updated
	}
}

func (shard *trackerShard) handleMembersChunk(chunk *discordgo.GuildMembersChunk) {
	for _, v := range chunk.Members {
		v.GuildID = chunk.GuildID
		shard.putMember(v)
	}

	if chunk.ChunkIndex >= chunk.ChunkCount-1 {
		shard.markComplete(chunk.GuildID)
	}
}

func (shard *trackerShard) markComplete(guildID int64) {
	shard.complete[guildID] = true

	for _, w := range shard.waiters[guildID] {
		close(w)
	}
	delete(shard.waiters, guildID)
}

///////////////////
// Channel events
///////////////////

func (shard *trackerShard) handleChannelCreateUpdate(c *discordgo.Channel) {
	gs, ok := shard.guilds[c.GuildID]
	if !ok {
		return
	}

	updated := *gs
	updated.Channels = make([]dstate.ChannelState, len(gs.Channels), len(gs.Channels)+1)
	copy(updated.Channels, gs.Channels)

	replaced := false
	for i, v := range updated.Channels {
		if v.ID == c.ID {
			updated.Channels[i] = dstate.ChannelStateFromDgo(c)
			replaced = true
			break
		}
	}

	if !replaced {
		updated.Channels = append(updated.Channels, dstate.ChannelStateFromDgo(c))
	}

	shard.guilds[c.GuildID] = &updated
}

func (shard *trackerShard) handleChannelDelete(c *discordgo.Channel) {
	gs, ok := shard.guilds[c.GuildID]
	if !ok {
		return
	}

	updated := *gs
	updated.Channels = make([]dstate.ChannelState, 0, len(gs.Channels))
	for _, v := range gs.Channels {
		if v.ID != c.ID {
			updated.Channels = append(updated.Channels, v)
		}
	}

	shard.guilds[c.GuildID] = &updated
}

///////////////////
// Role events
///////////////////

func (shard *trackerShard) handleRoleCreateUpdate(guildID int64, r *discordgo.Role) {
	gs, ok := shard.guilds[guildID]
	if !ok {
		return
	}

	updated := *gs
	updated.Roles = make([]discordgo.Role, len(gs.Roles), len(gs.Roles)+1)
	copy(updated.Roles, gs.Roles)

	replaced := false
	for i, v := range updated.Roles {
		if v.ID == r.ID {
			updated.Roles[i] = *r
			replaced = true
			break
		}
	}

	if !replaced {
		updated.Roles = append(updated.Roles, *r)
	}

	shard.guilds[guildID] = &updated
}

func (shard *trackerShard) handleRoleDelete(guildID, roleID int64) {
	gs, ok := shard.guilds[guildID]
	if !ok {
		return
	}

	updated := *gs
	updated.Roles = make([]discordgo.Role, 0, len(gs.Roles))
	for _, v := range gs.Roles {
		if v.ID != roleID {
			updated.Roles = append(updated.Roles, v)
		}
	}

	shard.guilds[guildID] = &updated
}

// MembersComplete returns true if every member of the guild has been received
func (t *Tracker) MembersComplete(guildID int64) bool {
	shard := t.getShard(guildID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	return shard.complete[guildID]
}

// WaitMembers blocks until the member list of the guild is complete or ctx is done
func (t *Tracker) WaitMembers(ctx context.Context, guildID int64) error {
	shard := t.getShard(guildID)

	shard.mu.Lock()
	if shard.complete[guildID] {
		shard.mu.Unlock()
		return nil
	}

	w := make(chan struct{})
	shard.waiters[guildID] = append(shard.waiters[guildID], w)
	shard.mu.Unlock()

	select {
	case <-w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
