package bot

import (
	"github.com/botlabs-gg/bulkmod/common"
	"github.com/jonas747/dstate/v4"
)

// HasPermissions returns true if the member has every permission in perms in the channel,
// taking ownership, administrator and overwrites into account
func HasPermissions(gs *dstate.GuildSet, ms *dstate.MemberState, channelID int64, perms int64) (bool, error) {
	if ms == nil || ms.Member == nil {
		return false, nil
	}

	memberPerms, err := gs.GetMemberPermissions(channelID, ms.User.ID, ms.Member.Roles)
	if err != nil {
		return false, err
	}

	return memberPerms&perms == perms, nil
}

// BotHasPermissions is HasPermissions for the bot itself
func BotHasPermissions(gs *dstate.GuildSet, channelID int64, perms int64) (bool, error) {
	ms, err := GetMember(gs.ID, common.BotUser.ID)
	if err != nil {
		return false, err
	}

	return HasPermissions(gs, ms, channelID, perms)
}
