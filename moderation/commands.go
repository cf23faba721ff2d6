package moderation

import (
	"bytes"
	"regexp"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/botlabs-gg/bulkmod/commands"
	"github.com/jonas747/dcmd/v4"
	"github.com/jonas747/discordgo/v2"
)

// purge reports are removed after this
const purgeReportDelay = 10 * time.Second

var emojiRegex = regexp.MustCompile(EmojiPattern)

func invocation(data *dcmd.Data) *Invocation {
	msg := data.TraditionalTriggerData.Message
	return &Invocation{
		GuildID:   data.GuildData.GS.ID,
		ChannelID: data.ChannelID,
		TriggerID: msg.ID,
		ActorID:   data.Author.ID,
		ActorName: data.Author.Username + "#" + data.Author.Discriminator,
	}
}

var searchArg = &dcmd.ArgDef{Name: "Search", Help: "How many messages to search through", Type: &dcmd.IntArg{Min: 1, Max: MaxSearch}, Default: 100}

func (p *Plugin) AddCommands() {
	purgeDefault := &commands.YAGCommand{
		CmdCategory:         commands.CategoryModeration,
		Name:                "purge",
		Description:         "Removes messages that meet a criteria, without a sub command every message that isn't pinned is removed",
		RequireDiscordPerms: []int64{discordgo.PermissionManageMessages},
		RequireBotPerms:     []int64{discordgo.PermissionManageMessages, discordgo.PermissionReadMessageHistory},
		DeleteTrigger:       true,
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			search := 100
			if raw := commands.RawArgs(data); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n < 1 {
					return nil, dcmd.NewSimpleUserError("Invalid search amount, expected a number")
				}
				search = n
			}

			return p.runPurge(data, Not{Inner: FlagCheck{Flag: FlagPinned}}, search)
		},
	}

	purgeCmd := func(name, desc string, pred Predicate) *commands.YAGCommand {
		return &commands.YAGCommand{
			CmdCategory:         commands.CategoryModeration,
			Name:                name,
			Description:         desc,
			Arguments:           []*dcmd.ArgDef{searchArg},
			RequireDiscordPerms: purgeDefault.RequireDiscordPerms,
			RequireBotPerms:     purgeDefault.RequireBotPerms,
			DeleteTrigger:       true,
			RunFunc: func(data *dcmd.Data) (interface{}, error) {
				return p.runPurge(data, pred, data.Args[0].Int())
			},
		}
	}

	cmdCustom := &commands.YAGCommand{
		CmdCategory: commands.CategoryModeration,
		Name:        "custom",
		Description: "A more advanced purge command, that allows for multiple filters to be combined",
		LongDescription: "Filters: `--user` `--contains` `--starts` `--ends` `--search` `--after` `--before` " +
			"`--bot` `--embeds` `--files` `--emoji` `--reactions`\n" +
			"Every filter has to match unless `--or` is given, `--not` inverts the result.",
		RequireDiscordPerms: purgeDefault.RequireDiscordPerms,
		RequireBotPerms:     purgeDefault.RequireBotPerms,
		DeleteTrigger:       true,
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			res, err := p.engine.PurgeCustom(data.Context(), invocation(data), commands.RawArgs(data))
			if err != nil {
				return nil, err
			}

			return commands.NewEphemeralResponse(purgeReportDelay, res.Text), nil
		},
	}

	cmdUser := &commands.YAGCommand{
		CmdCategory:         commands.CategoryModeration,
		Name:                "user",
		Description:         "Removes the messages of a member",
		RequiredArgs:        1,
		Arguments:           []*dcmd.ArgDef{{Name: "Member", Type: dcmd.String}, searchArg},
		ArgumentCombos:      [][]int{{0, 1}, {0}},
		RequireDiscordPerms: purgeDefault.RequireDiscordPerms,
		RequireBotPerms:     purgeDefault.RequireBotPerms,
		DeleteTrigger:       true,
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			target, err := p.backend.ResolveMember(data.Context(), data.GuildData.GS.ID, data.Args[0].Str())
			if err != nil {
				return nil, &ResolutionError{Flag: "user", Value: data.Args[0].Str(), Err: err}
			}

			pred := FieldMatch{Field: FieldAuthor, Op: OpIDIn, IDs: []int64{target.UserID}}
			return p.runPurge(data, pred, data.Args[1].Int())
		},
	}

	cmdContains := &commands.YAGCommand{
		CmdCategory:         commands.CategoryModeration,
		Name:                "contains",
		Description:         "Removes messages containing the text, it has to be at least 3 characters long",
		RequiredArgs:        1,
		Arguments:           []*dcmd.ArgDef{{Name: "Text", Type: dcmd.String}, searchArg},
		ArgumentCombos:      [][]int{{0, 1}, {0}},
		RequireDiscordPerms: purgeDefault.RequireDiscordPerms,
		RequireBotPerms:     purgeDefault.RequireBotPerms,
		DeleteTrigger:       true,
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			substr := data.Args[0].Str()
			if len(substr) < 3 {
				return nil, dcmd.NewSimpleUserError("The substring length must be at least 3 characters.")
			}

			pred := FieldMatch{Field: FieldContent, Op: OpContains, Values: []string{substr}}
			return p.runPurge(data, pred, data.Args[1].Int())
		},
	}

	cmdBot := &commands.YAGCommand{
		CmdCategory:         commands.CategoryModeration,
		Name:                "bot",
		Description:         "Removes messages from bots, or messages starting with the prefix",
		Arguments:           []*dcmd.ArgDef{{Name: "Prefix", Type: dcmd.String}, searchArg},
		ArgumentCombos:      [][]int{{1}, {0, 1}, {0}, {}},
		RequireDiscordPerms: purgeDefault.RequireDiscordPerms,
		RequireBotPerms:     purgeDefault.RequireBotPerms,
		DeleteTrigger:       true,
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			return p.runPurge(data, botMessages(data.Args[0].Str()), data.Args[1].Int())
		},
	}

	cmdReactions := &commands.YAGCommand{
		CmdCategory:         commands.CategoryModeration,
		Name:                "reactions",
		Description:         "Removes all reactions from messages that have them",
		Arguments:           []*dcmd.ArgDef{searchArg},
		RequireDiscordPerms: purgeDefault.RequireDiscordPerms,
		RequireBotPerms:     purgeDefault.RequireBotPerms,
		DeleteTrigger:       true,
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			res, err := p.engine.ClearReactions(data.Context(), invocation(data), data.Args[0].Int())
			if err != nil {
				return nil, err
			}

			return commands.NewEphemeralResponse(purgeReportDelay, res.Text), nil
		},
	}

	commands.AddContainer(p, "purge", []string{"remove", "clear", "delete", "clean"}, purgeDefault,
		cmdCustom,
		purgeCmd("embeds", "Removes messages that have embeds in them", FlagCheck{Flag: FlagHasEmbeds}),
		purgeCmd("files", "Removes messages that have attachments in them", FlagCheck{Flag: FlagHasFiles}),
		purgeCmd("images", "Removes messages that have embeds or attachments", Any{FlagCheck{Flag: FlagHasEmbeds}, FlagCheck{Flag: FlagHasFiles}}),
		purgeCmd("all", "Removes all messages", All{}),
		cmdUser,
		cmdContains,
		cmdBot,
		purgeCmd("emoji", "Removes all messages containing custom emoji", FieldMatch{Field: FieldContent, Op: OpRegex, Pattern: emojiRegex}),
		cmdReactions,
	)

	commands.AddRootCommands(p, cmdMassBan(p), cmdUnban(p), cmdSoftban(p))
}

// botMessages matches messages sent by bots that aren't webhooks, or starting with the prefix
func botMessages(prefix string) Predicate {
	fromBot := All{FlagCheck{Flag: FlagBot}, Not{Inner: FlagCheck{Flag: FlagWebhook}}}
	if prefix == "" {
		return fromBot
	}

	return Any{fromBot, FieldMatch{Field: FieldContent, Op: OpPrefix, Values: []string{prefix}}}
}

func (p *Plugin) runPurge(data *dcmd.Data, pred Predicate, search int) (interface{}, error) {
	res, err := p.engine.Purge(data.Context(), invocation(data), pred, search)
	if err != nil {
		return nil, err
	}

	return commands.NewEphemeralResponse(purgeReportDelay, res.Text), nil
}

func cmdMassBan(p *Plugin) *commands.YAGCommand {
	return &commands.YAGCommand{
		CmdCategory: commands.CategoryModeration,
		Name:        "massban",
		Description: "Mass bans multiple members from the server",
		LongDescription: "Members are picked from the member list, or from the authors of the messages in `--channel`.\n" +
			"Filters: `--channel` `--reason` `--search` `--regex` `--no-avatar` `--no-roles` `--created` `--joined` " +
			"`--joined-before` `--joined-after` `--after` `--before` `--contains` `--starts` `--ends` `--match` " +
			"`--show` `--embeds` `--files`\n`--reason` is required unless `--show` is given.",
		RequireDiscordPerms: []int64{discordgo.PermissionBanMembers},
		RequireBotPerms:     []int64{discordgo.PermissionBanMembers, discordgo.PermissionAddReactions},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			res, err := p.engine.MassBan(data.Context(), invocation(data), commands.RawArgs(data))
			if err != nil {
				return nil, err
			}

			if res.File != nil {
				return &fileResponse{content: res.Text, file: res.File}, nil
			}

			return res.Text, nil
		},
	}
}

func cmdUnban(p *Plugin) *commands.YAGCommand {
	return &commands.YAGCommand{
		CmdCategory:         commands.CategoryModeration,
		Name:                "unban",
		Description:         "Unbans a user, asking for a confirmation first",
		RequiredArgs:        1,
		Arguments:           []*dcmd.ArgDef{{Name: "User", Type: dcmd.UserID}},
		RequireDiscordPerms: []int64{discordgo.PermissionBanMembers},
		RequireBotPerms:     []int64{discordgo.PermissionBanMembers, discordgo.PermissionAddReactions},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			userID := data.Args[0].Int64()
			guildID := data.GuildData.GS.ID

			ban, err := p.backend.Session.GuildBan(guildID, userID)
			if err != nil {
				if errors.Is(mapDiscordErr(err), ErrUnknownBan) {
					return "That user is not banned.", nil
				}
				return nil, err
			}

			name := strconv.FormatInt(userID, 10)
			if ban.User != nil {
				name = ban.User.Username + "#" + ban.User.Discriminator
			}

			res, err := p.engine.Unban(data.Context(), invocation(data), userID, name)
			if err != nil {
				return nil, err
			}

			return res.Text, nil
		},
	}
}

func cmdSoftban(p *Plugin) *commands.YAGCommand {
	return &commands.YAGCommand{
		CmdCategory:         commands.CategoryModeration,
		Name:                "softban",
		Description:         "Bans and immediately unbans a member, removing their messages from the last day",
		RequiredArgs:        1,
		Arguments:           []*dcmd.ArgDef{{Name: "Member", Type: dcmd.UserID}, {Name: "Reason", Type: dcmd.String}},
		RequireDiscordPerms: []int64{discordgo.PermissionBanMembers},
		RequireBotPerms:     []int64{discordgo.PermissionBanMembers},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			res, err := p.engine.Softban(data.Context(), invocation(data), data.Args[0].Int64(), data.Args[1].Str())
			if err != nil {
				if errors.Is(err, ErrMemberNotFound) {
					return "That member is not in the server.", nil
				}
				return nil, err
			}

			return res.Text, nil
		},
	}
}

// fileResponse sends the text with the file attached
type fileResponse struct {
	content string
	file    *File
}

var _ dcmd.Response = (*fileResponse)(nil)

func (f *fileResponse) Send(data *dcmd.Data) ([]*discordgo.Message, error) {
	msg, err := data.Session.ChannelMessageSendComplex(data.ChannelID, &discordgo.MessageSend{
		Content: f.content,
		Files: []*discordgo.File{{
			Name:        f.file.Name,
			ContentType: "text/plain",
			Reader:      bytes.NewReader(f.file.Content),
		}},
	})
	if err != nil {
		return nil, err
	}

	return []*discordgo.Message{msg}, nil
}
