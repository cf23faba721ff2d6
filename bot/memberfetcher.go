package bot

import (
	"context"

	"emperror.dev/errors"
	"github.com/botlabs-gg/bulkmod/common"
	"github.com/jonas747/dstate/v4"
)

// GetMember returns the member from state, or fetches it over REST if it isn't cached
func GetMember(guildID, userID int64) (*dstate.MemberState, error) {
	ms := State.GetMember(guildID, userID)
	if ms != nil && ms.Member != nil {
		return ms, nil
	}

	member, err := common.BotSession.GuildMember(guildID, userID)
	if err != nil {
		return nil, err
	}

	member.GuildID = guildID
	return dstate.MemberStateFromMember(member), nil
}

// RequestGuildMembers asks the gateway for every member of the guild and waits until the last chunk has arrived
func RequestGuildMembers(ctx context.Context, guildID int64) error {
	if State.MembersComplete(guildID) {
		return nil
	}

	session := ShardManager.SessionForGuild(guildID)
	if session == nil || session.GatewayManager == nil {
		return errors.NewPlain("no gateway session for guild")
	}

	session.GatewayManager.RequestGuildMembers(guildID, "", 0)
	return State.WaitMembers(ctx, guildID)
}
