package config

import (
	"strings"

	"github.com/mediocregopher/radix/v3"
	"github.com/sirupsen/logrus"
)

const RedisConfigKey = "bulkmod_config"

// RedisConfigStore reads options from the bulkmod_config hash, keys are stored without the "bulkmod." prefix
type RedisConfigStore struct {
	Pool radix.Client
}

func (rs *RedisConfigStore) GetValue(key string) interface{} {
	prefixStripped := strings.TrimPrefix(key, "bulkmod.")

	var v string
	err := rs.Pool.Do(radix.Cmd(&v, "HGET", RedisConfigKey, prefixStripped))
	if err != nil {
		logrus.WithError(err).Error("[redis_config_source] failed retrieving value")
		return nil
	}

	if v == "" {
		return nil
	}

	return v
}

func (rs *RedisConfigStore) Name() string {
	return "redis"
}
