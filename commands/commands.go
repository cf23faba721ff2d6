package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/botlabs-gg/bulkmod/bot"
	"github.com/botlabs-gg/bulkmod/common"
	"github.com/jonas747/dcmd/v4"
	"github.com/jonas747/discordgo/v2"
)

var logger = common.GetPluginLogger(&Plugin{})

var CommandSystem *dcmd.System

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Commands",
		SysName:  "commands",
		Category: common.PluginCategoryCore,
	}
}

func RegisterPlugin() {
	common.RegisterPlugin(&Plugin{})
}

type CommandProvider interface {
	// This is where you should register your commands
	AddCommands()
}

var _ bot.BotInitHandler = (*Plugin)(nil)

// InitCommands sets up the command system and lets every plugin add its commands
func InitCommands() {
	CommandSystem = dcmd.NewStandardSystem(common.ConfPrefix.GetString())
	CommandSystem.State = bot.State
	CommandSystem.Root.IgnoreBots = true
	CommandSystem.Root.RunInDM = false

	for _, v := range common.Plugins {
		if adder, ok := v.(CommandProvider); ok {
			adder.AddCommands()
		}
	}
}

func (p *Plugin) BotInit() {
	InitCommands()
	bot.AddHandler(handleMessageCreate)
}

func handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == 0 {
		return
	}

	CommandSystem.HandleMessageCreate(s, m)
}

// AddRootCommands adds the commands to the root container
func AddRootCommands(p common.Plugin, cmds ...*YAGCommand) {
	for _, v := range cmds {
		v.Plugin = p
		CommandSystem.Root.AddCommand(v, v.GetTrigger())
	}
}

// AddContainer adds a sub container to the root container, def runs when no sub command matched
func AddContainer(p common.Plugin, name string, aliases []string, def *YAGCommand, cmds ...*YAGCommand) *dcmd.Container {
	container := CommandSystem.Root.Sub(name, aliases...)
	container.Description = def.Description
	container.IgnoreBots = true

	def.Plugin = p
	container.NotFound = def.Run

	for _, v := range cmds {
		v.Plugin = p
		container.AddCommand(v, v.GetTrigger())
	}

	return container
}

// RawArgs returns everything after the command name, for commands doing their own parsing
func RawArgs(data *dcmd.Data) string {
	if data.TraditionalTriggerData == nil {
		return ""
	}

	return strings.TrimSpace(data.TraditionalTriggerData.MessageStrippedPrefix)
}

type PublicError string

func (p PublicError) Error() string {
	return string(p)
}

func NewPublicError(a ...interface{}) PublicError {
	return PublicError(fmt.Sprint(a...))
}

// EphemeralResponse is a response that is deleted through the bot's delete queue after Delay
type EphemeralResponse struct {
	Response interface{}
	Delay    time.Duration
}

var _ dcmd.Response = (*EphemeralResponse)(nil)

func NewEphemeralResponse(d time.Duration, inner interface{}) *EphemeralResponse {
	return &EphemeralResponse{Response: inner, Delay: d}
}

func (e *EphemeralResponse) Send(data *dcmd.Data) ([]*discordgo.Message, error) {
	msgs, err := dcmd.SendResponseInterface(data, e.Response, true)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(msgs))
	for _, v := range msgs {
		if v != nil {
			ids = append(ids, v.ID)
		}
	}

	if len(ids) > 0 {
		bot.MessageDeleteQueue.DeleteAfter(e.Delay, data.ChannelID, ids...)
	}

	return msgs, nil
}
