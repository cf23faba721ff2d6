package common

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	Plugins     []Plugin
	pluginsLock sync.Mutex
)

type PluginCategory struct {
	Name string
}

var (
	PluginCategoryCore       = &PluginCategory{Name: "Core"}
	PluginCategoryModeration = &PluginCategory{Name: "Moderation"}
)

type PluginInfo struct {
	Name     string // Human readable name of the plugin
	SysName  string // snake_case version of the name in lower case
	Category *PluginCategory
}

// Plugin represents a plugin, all plugins needs to implement this at a bare minimum
type Plugin interface {
	PluginInfo() *PluginInfo
}

// RegisterPlugin registers a plugin, should be called when the bot is starting up
func RegisterPlugin(plugin Plugin) {
	pluginsLock.Lock()
	Plugins = append(Plugins, plugin)
	pluginsLock.Unlock()

	logrus.Info("Registered plugin: " + plugin.PluginInfo().Name)
}
