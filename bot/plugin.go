package bot

import (
	"sync"

	"github.com/botlabs-gg/bulkmod/common"
)

// Fired when the bot it starting up, before the shards connect
type BotInitHandler interface {
	BotInit()
}

// BotStopperHandler runs when the bot is shuttdown down
// you need to call wg.Done when you have completed your plugin shutdown (stopped background workers)
type BotStopperHandler interface {
	StopBot(wg *sync.WaitGroup)
}

// bot plugin
var logger = common.GetPluginLogger(&botPlugin{})

type botPlugin struct {
}

func (p *botPlugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Bot Core",
		SysName:  "bot_core",
		Category: common.PluginCategoryCore,
	}
}
