package commands

import (
	"context"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/botlabs-gg/bulkmod/bot"
	"github.com/botlabs-gg/bulkmod/common"
	"github.com/jonas747/dcmd/v4"
	"github.com/jonas747/discordgo/v2"
	"github.com/mediocregopher/radix/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var (
	CategoryModeration = &dcmd.Category{
		Name:        "Moderation",
		Description: "Moderation commands",
		HelpEmoji:   "👮",
		EmbedColor:  0xdb0606,
	}
)

var (
	RKeyCommandCooldown = func(uID int64, cmd string) string { return "cmd_cd:" + strconv.FormatInt(uID, 10) + ":" + cmd }

	CommandExecTimeout = time.Minute
)

// YAGCommand wraps a dcmd command with the permission, cooldown and error handling shared by every command
type YAGCommand struct {
	Name            string   // Name of command, what its called from
	Aliases         []string // Aliases which it can also be called from
	Description     string   // Description shown in non targetted help
	LongDescription string   // Longer description when this command was targetted

	Arguments      []*dcmd.ArgDef // Slice of argument definitions, ctx.Args will always be the same size as this slice (although the data may be nil)
	RequiredArgs   int            // Number of reuquired arguments, ignored if combos is specified
	ArgumentCombos [][]int        // Slice of argument pairs, will override RequiredArgs if specified
	ArgSwitches    []*dcmd.ArgDef // Switches for the commadn to use

	Cooldown    int // Cooldown in seconds before user can use it again
	CmdCategory *dcmd.Category

	HideFromHelp bool // Set to hide from help

	RequireDiscordPerms []int64 // Require users to have one of these permission sets to run the command
	RequireBotPerms     []int64 // The bot needs every one of these in the channel

	// DeleteTrigger deletes the message that invoked the command once it has run
	DeleteTrigger bool

	Middlewares []dcmd.MiddleWareFunc

	// Run is ran the the command has sucessfully been parsed
	// It returns a reply and an error
	// the reply can have a type of string, *MessageEmbed or error
	RunFunc dcmd.RunFunc

	Plugin common.Plugin
}

// CmdWithCategory puts the command in a category, mostly used for the help generation
func (yc *YAGCommand) Category() *dcmd.Category {
	return yc.CmdCategory
}

func (yc *YAGCommand) Descriptions(data *dcmd.Data) (short, long string) {
	return yc.Description, yc.Description + "\n" + yc.LongDescription
}

func (yc *YAGCommand) ArgDefs(data *dcmd.Data) (args []*dcmd.ArgDef, required int, combos [][]int) {
	return yc.Arguments, yc.RequiredArgs, yc.ArgumentCombos
}

func (yc *YAGCommand) Switches() []*dcmd.ArgDef {
	return yc.ArgSwitches
}

var metricsExcecutedCommands = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bot_commands_total",
	Help: "Commands the bot executed",
}, []string{"name"})

func (yc *YAGCommand) Run(data *dcmd.Data) (interface{}, error) {
	if data.GuildData == nil || data.TraditionalTriggerData == nil {
		// guild only
		return nil, nil
	}

	logger := yc.Logger(data)
	msg := data.TraditionalTriggerData.Message

	// Track how long execution of a command took
	started := time.Now()
	defer func() {
		yc.logExecutionTime(time.Since(started), msg.Content, msg.Author.Username)
	}()

	cmdFullName := yc.FindNameFromContainerChain(data.ContainerChain)

	canExecute, resp, err := yc.checkCanExecuteCommand(data)
	if !canExecute {
		if err != nil {
			logger.WithError(err).Error("failed checking if command was executable")
		}
		return resp, nil
	}

	metricsExcecutedCommands.With(prometheus.Labels{"name": cmdFullName}).Inc()
	logger.Info("Handling command: " + msg.Content)

	runCtx, cancelExec := context.WithTimeout(data.Context(), CommandExecTimeout)
	defer cancelExec()

	// Run the command
	r, cmdErr := yc.RunFunc(data.WithContext(runCtx))
	if cmdErr != nil {
		if errors.Is(cmdErr, context.Canceled) || errors.Is(cmdErr, context.DeadlineExceeded) {
			r = "Took longer than " + CommandExecTimeout.String() + " to handle command: `" + msg.Content + "`, Cancelled the command."
		}
	}

	if (r == nil || r == "") && cmdErr != nil {
		r = yc.humanizeError(cmdErr)
	}

	if yc.DeleteTrigger {
		bot.MessageDeleteQueue.DeleteMessages(msg.ChannelID, msg.ID)
	}

	if cmdErr == nil {
		err := yc.SetCooldown(data.ContainerChain, msg.Author.ID)
		if err != nil {
			logger.WithError(err).Error("Failed setting cooldown")
		}
	}

	// set cmdErr to nil if this was a user error top stop it from being recorded and logged as an actual error
	if cmdErr != nil && asUserError(cmdErr) != nil {
		cmdErr = nil
	}

	if cmdErr != nil {
		logger.WithError(cmdErr).Error("Command returned error")
		cmdErr = nil
	}

	return r, cmdErr
}

func (yc *YAGCommand) humanizeError(err error) string {
	var public PublicError
	if errors.As(err, &public) {
		return "The command returned an error: " + public.Error()
	}

	if userErr := asUserError(err); userErr != nil {
		return userErr.Error()
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Message != "" {
		if restErr.Response != nil && restErr.Response.StatusCode == 403 {
			return "The bot permissions has been incorrectly set up on this server for it to run this command: " + restErr.Message.Message
		}

		return "The bot was not able to perform the action, discord responded with: " + restErr.Message.Message
	}

	return "Something went wrong when running this command, either discord or the bot may be having issues."
}

// asUserError returns the user error in err's chain, or nil
func asUserError(err error) error {
	var userErr dcmd.UserError
	if !errors.As(err, &userErr) || !userErr.IsUserError() {
		return nil
	}

	if e, ok := userErr.(error); ok {
		return e
	}

	return err
}

const (
	ReasonError            = "An error occured"
	ReasonUserMissingPerms = "User is missing one or more permissions to run this command"
	ReasonCooldown         = "This command is on cooldown"
)

// checks if the user can execute the command, resp is the reason if not
func (yc *YAGCommand) checkCanExecuteCommand(data *dcmd.Data) (canExecute bool, resp string, err error) {
	gs := data.GuildData.GS
	cs := data.GuildData.CS

	// This command has permission sets required, if the user has one of them then allow this command to be used
	if len(yc.RequireDiscordPerms) > 0 {
		foundMatch := false
		for _, permSet := range yc.RequireDiscordPerms {
			var ok bool
			ok, err = bot.HasPermissions(gs, data.GuildData.MS, cs.ID, permSet)
			if err != nil {
				resp = ReasonError
				return
			}

			if ok {
				foundMatch = true
				break
			}
		}

		if !foundMatch {
			resp = "You need " + yc.humanizedRequiredPerms() + " to use this command."
			return
		}
	}

	for _, perm := range yc.RequireBotPerms {
		var ok bool
		ok, err = bot.BotHasPermissions(gs, cs.ID, perm)
		if err != nil {
			resp = ReasonError
			return
		}

		if !ok {
			resp = "I need the `" + humanizePermissions(perm) + "` permission to do this."
			return
		}
	}

	cdLeft, err := yc.CooldownLeft(data.ContainerChain, data.Author.ID)
	if err != nil {
		// Just pretend the cooldown is off...
		yc.Logger(data).WithError(err).Error("Failed checking command cooldown")
		err = nil
	}

	if cdLeft > 0 {
		resp = ReasonCooldown + " (" + strconv.Itoa(cdLeft) + "s left)"
		return
	}

	canExecute = true
	return
}

func (yc *YAGCommand) humanizedRequiredPerms() string {
	res := ""
	for i, permSet := range yc.RequireDiscordPerms {
		if i != 0 {
			res += " or "
		}
		res += "`" + humanizePermissions(permSet) + "`"
	}

	return res
}

var permissionNames = []struct {
	perm int64
	name string
}{
	{discordgo.PermissionAdministrator, "Administrator"},
	{discordgo.PermissionBanMembers, "Ban Members"},
	{discordgo.PermissionManageMessages, "Manage Messages"},
	{discordgo.PermissionAddReactions, "Add Reactions"},
	{discordgo.PermissionReadMessageHistory, "Read Message History"},
	{discordgo.PermissionSendMessages, "Send Messages"},
	{discordgo.PermissionAttachFiles, "Attach Files"},
}

func humanizePermissions(perms int64) string {
	names := make([]string, 0, 1)
	for _, v := range permissionNames {
		if perms&v.perm == v.perm {
			names = append(names, v.name)
			perms &^= v.perm
		}
	}

	if perms != 0 {
		names = append(names, strconv.FormatInt(perms, 10))
	}

	return strings.Join(names, "+")
}

func (cs *YAGCommand) logExecutionTime(dur time.Duration, raw string, sender string) {
	logger.Infof("Handled Command [%4dms] %s: %s", int(dur.Seconds()*1000), sender, raw)
}

// CooldownLeft returns the number of seconds before the command can be used again by this user,
// cooldowns are only tracked with redis configured
func (cs *YAGCommand) CooldownLeft(cc []*dcmd.Container, userID int64) (int, error) {
	if cs.Cooldown < 1 || common.RedisPool == nil {
		return 0, nil
	}

	var ttl int
	err := common.RedisPool.Do(radix.Cmd(&ttl, "TTL", RKeyCommandCooldown(userID, cs.FindNameFromContainerChain(cc))))
	if err != nil {
		return 0, errors.WithStackIf(err)
	}

	return ttl, nil
}

// SetCooldown sets the user scoped cooldown of the command as it's defined in the struct
func (cs *YAGCommand) SetCooldown(cc []*dcmd.Container, userID int64) error {
	if cs.Cooldown < 1 || common.RedisPool == nil {
		return nil
	}

	now := time.Now().Unix()
	err := common.RedisPool.Do(radix.FlatCmd(nil, "SET", RKeyCommandCooldown(userID, cs.FindNameFromContainerChain(cc)), now, "EX", cs.Cooldown))
	return errors.WithStackIf(err)
}

func (yc *YAGCommand) Logger(data *dcmd.Data) *logrus.Entry {
	l := logger.WithField("cmd", yc.FindNameFromContainerChain(data.ContainerChain))
	if data.Author != nil {
		l = l.WithField("user_n", data.Author.Username)
		l = l.WithField("user_id", data.Author.ID)
	}

	if data.GuildData != nil {
		l = l.WithField("channel", data.GuildData.CS.ID)
		l = l.WithField("guild", data.GuildData.GS.ID)
	}

	return l
}

func (yc *YAGCommand) GetTrigger() *dcmd.Trigger {
	trigger := dcmd.NewTrigger(yc.Name, yc.Aliases...).SetEnableInDM(false)
	trigger = trigger.SetHideFromHelp(yc.HideFromHelp)
	if len(yc.Middlewares) > 0 {
		trigger = trigger.SetMiddlewares(yc.Middlewares...)
	}
	return trigger
}

// FindNameFromContainerChain returns the full name of the command, e.g "purge custom"
func (yc *YAGCommand) FindNameFromContainerChain(cc []*dcmd.Container) string {
	name := ""
	for _, v := range cc {
		if len(v.Names) < 1 {
			continue
		}

		name += v.Names[0] + " "
	}

	// default handlers of containers share the container's name
	if len(cc) > 0 && len(cc[len(cc)-1].Names) > 0 && cc[len(cc)-1].Names[0] == yc.Name {
		return strings.TrimSpace(name)
	}

	return strings.TrimSpace(name + yc.Name)
}
