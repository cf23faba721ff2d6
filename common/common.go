package common

import (
	"os"
	"time"

	"emperror.dev/errors"
	"github.com/botlabs-gg/bulkmod/common/config"
	"github.com/jonas747/discordgo/v2"
	"github.com/mediocregopher/radix/v3"
)

const VERSION = "1.4.0"

var (
	ConfBotToken  = config.RegisterOption("bulkmod.bot_token", "Discord bot token", "")
	ConfOwner     = config.RegisterOption("bulkmod.owner", "ID of the application owner, allowed to target anyone below the bot", "")
	ConfPrefix    = config.RegisterOption("bulkmod.prefix", "Command prefix", "!")
	ConfRedis     = config.RegisterOption("bulkmod.redis", "Redis address, enables the redis config source and command cooldowns", "")
	ConfRedisPool = config.RegisterOption("bulkmod.redis_pool_size", "Max redis connections", 10)
	ConfLogFile   = config.RegisterOption("bulkmod.log_file", "Also write logs to this file, rotated by size", "")
)

var (
	BotSession *discordgo.Session
	BotUser    *discordgo.User

	// RedisPool is nil unless bulkmod.redis is set
	RedisPool *radix.Pool

	// Set in tests to disable some things
	Testing = os.Getenv("BULKMOD_TESTING") != ""

	logger = GetFixedPrefixLogger("common")
)

// CoreInit loads the configuration and connects to redis if configured,
// redis is then added as a second config source so the options are loaded twice
func CoreInit() error {
	config.AddSource(&config.EnvSource{})
	config.Load()

	if ConfBotToken.GetString() == "" {
		return errors.NewPlain("no bot token set, set BULKMOD_BOT_TOKEN")
	}

	if addr := ConfRedis.GetString(); addr != "" {
		err := connectRedis(addr)
		if err != nil {
			return err
		}

		config.AddSource(&config.RedisConfigStore{Pool: RedisPool})
		config.Load()
	}

	if path := ConfLogFile.GetString(); path != "" {
		AddLogFile(path)
	}

	return nil
}

// Init creates the REST session used outside of the gateway connections
func Init() error {
	session, err := discordgo.New(ConfBotToken.GetString())
	if err != nil {
		return errors.WithMessage(err, "discordgo.New")
	}

	session.MaxRestRetries = 3
	BotSession = session

	BotUser, err = BotSession.UserMe()
	if err != nil {
		return errors.WithMessage(err, "UserMe")
	}

	logger.Infof("Logged in as %s (%d)", BotUser.Username, BotUser.ID)
	return nil
}

func connectRedis(addr string) (err error) {
	RedisPool, err = radix.NewPool("tcp", addr, ConfRedisPool.GetInt(), radix.PoolOnEmptyWait(), radix.PoolRefillInterval(time.Minute))
	if err != nil {
		return errors.WithMessage(err, "failed initializing redis pool")
	}

	logger.Info("Connected to redis at ", addr)
	return nil
}

// OwnerID returns the configured application owner, or 0 if none is set
func OwnerID() int64 {
	return ConfOwner.GetInt64()
}
