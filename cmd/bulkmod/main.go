package main

import (
	"github.com/botlabs-gg/bulkmod/common/run"
	"github.com/botlabs-gg/bulkmod/moderation"
)

func main() {
	run.Init()

	// commands has to be first, it collects the commands of the plugins registered after it
	run.RegisterPlugins()
	moderation.RegisterPlugin()

	run.Run()
}
