package config

import (
	"os"
	"strings"
)

// EnvSource reads options from the environment, "bulkmod.bot_token" becomes BULKMOD_BOT_TOKEN
type EnvSource struct {
	// Lookup defaults to os.LookupEnv
	Lookup func(key string) (string, bool)
}

func EnvKey(key string) string {
	properKey := strings.ToUpper(key)
	return strings.Replace(properKey, ".", "_", -1)
}

func (e *EnvSource) GetValue(key string) interface{} {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	v, ok := lookup(EnvKey(key))
	if !ok || v == "" {
		return nil
	}
	return v
}

func (e *EnvSource) Name() string {
	return "env"
}
