package moderation

import (
	"sync"
	"time"

	"github.com/botlabs-gg/bulkmod/bot"
	"github.com/botlabs-gg/bulkmod/commands"
	"github.com/botlabs-gg/bulkmod/common"
	"github.com/botlabs-gg/bulkmod/common/config"
	"github.com/botlabs-gg/bulkmod/common/multiratelimit"
)

var (
	confConfirmTimeout   = config.RegisterOption("bulkmod.confirm_timeout_seconds", "Seconds to wait for a confirmation before giving up", 30)
	confRatelimitPerSec  = config.RegisterOption("bulkmod.ratelimit_per_second", "Discord calls per second allowed per route and guild or channel", 5)
	confRatelimitBurst   = config.RegisterOption("bulkmod.ratelimit_burst", "Burst of the per route ratelimit", 5)
	confRatelimitMaxWait = config.RegisterOption("bulkmod.ratelimit_max_wait_seconds", "Longest time a command waits on the ratelimit before giving up, 0 to wait forever", 30)
)

var logger = common.GetPluginLogger(&Plugin{})

type Plugin struct {
	engine  *Engine
	backend *DiscordBackend
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Moderation",
		SysName:  "moderation",
		Category: common.PluginCategoryModeration,
	}
}

func RegisterPlugin() {
	common.RegisterPlugin(&Plugin{})
}

var (
	_ bot.BotInitHandler       = (*Plugin)(nil)
	_ bot.BotStopperHandler    = (*Plugin)(nil)
	_ commands.CommandProvider = (*Plugin)(nil)
)

// engineConfig builds the engine's config out of the loaded options
func engineConfig() Config {
	return Config{
		AppOwnerID:     common.OwnerID(),
		BotID:          common.BotUser.ID,
		ConfirmTimeout: confConfirmTimeout.GetSeconds(),
	}
}

func newLimiter() *multiratelimit.MultiRatelimiter[string] {
	limiter := multiratelimit.NewMultiRatelimiter[string](confRatelimitPerSec.GetFloat(), confRatelimitBurst.GetInt())
	limiter.MaxWait = confRatelimitMaxWait.GetSeconds()
	return limiter
}

func (p *Plugin) BotInit() {
	p.backend = NewDiscordBackend(common.BotSession)

	p.engine = NewEngine(engineConfig(), Deps{
		Messages: p.backend,
		Members:  p.backend,
		Resolver: p.backend,
		Actions:  p.backend,
		Limiter:  newLimiter(),
		Prompter: &ReactionPrompter{Menus: bot.ConfirmMenus},
		Now:      time.Now,
	})

	logger.Info("Moderation engine ready, confirm timeout: ", confConfirmTimeout.GetSeconds())
}

// StopBot denies the confirmations still open so their commands return
func (p *Plugin) StopBot(wg *sync.WaitGroup) {
	bot.ConfirmMenus.Stop()
	wg.Done()
}
