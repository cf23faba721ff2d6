package bot

import (
	"testing"

	"github.com/jonas747/discordgo/v2"
	"github.com/jonas747/dstate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermissions(t *testing.T) {
	gs := &dstate.GuildSet{
		GuildState: dstate.GuildState{ID: 1, OwnerID: 99},
		Channels: []dstate.ChannelState{
			{ID: 10, GuildID: 1},
			{ID: 11, GuildID: 1, PermissionOverwrites: []discordgo.PermissionOverwrite{
				{ID: 1, Deny: discordgo.PermissionManageMessages},
			}},
		},
		Roles: []discordgo.Role{
			{ID: 1, Permissions: discordgo.PermissionSendMessages},
			{ID: 5, Position: 2, Permissions: discordgo.PermissionManageMessages | discordgo.PermissionBanMembers},
			{ID: 6, Position: 3, Permissions: discordgo.PermissionAdministrator},
		},
	}

	member := func(id int64, roles ...int64) *dstate.MemberState {
		return &dstate.MemberState{
			User:   discordgo.User{ID: id},
			Member: &dstate.MemberFields{Roles: roles},
		}
	}

	cases := []struct {
		name    string
		ms      *dstate.MemberState
		channel int64
		perms   int64
		has     bool
	}{
		{name: "no roles", ms: member(2), channel: 10, perms: discordgo.PermissionManageMessages, has: false},
		{name: "role", ms: member(2, 5), channel: 10, perms: discordgo.PermissionManageMessages, has: true},
		{name: "both", ms: member(2, 5), channel: 10, perms: discordgo.PermissionManageMessages | discordgo.PermissionBanMembers, has: true},
		{name: "overwrite", ms: member(2, 5), channel: 11, perms: discordgo.PermissionManageMessages, has: false},
		{name: "admin", ms: member(2, 6), channel: 11, perms: discordgo.PermissionBanMembers, has: true},
		{name: "owner", ms: member(99), channel: 11, perms: discordgo.PermissionBanMembers, has: true},
		{name: "not a member", ms: &dstate.MemberState{User: discordgo.User{ID: 3}}, channel: 10, perms: discordgo.PermissionSendMessages, has: false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			has, err := HasPermissions(gs, c.ms, c.channel, c.perms)
			require.NoError(t, err)
			assert.Equal(t, c.has, has)
		})
	}
}
