package bot

import (
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/botlabs-gg/bulkmod/bot/confirm"
	"github.com/botlabs-gg/bulkmod/bot/state"
	"github.com/botlabs-gg/bulkmod/common"
	"github.com/jonas747/discordgo/v2"
	"github.com/jonas747/jdshardmanager/v2"
)

var (
	// When the bot was started
	Started      = time.Now()
	Running      bool
	State        *state.Tracker
	ShardManager *dshardmanager.Manager

	MessageDeleteQueue *DeleteQueue
	ConfirmMenus       *confirm.Menus
)

// not in every discordgo release
const intentMessageContent discordgo.GatewayIntent = 1 << 15

var intents = []discordgo.GatewayIntent{
	discordgo.GatewayIntentGuilds,
	discordgo.GatewayIntentGuildMembers,
	discordgo.GatewayIntentGuildMessages,
	discordgo.GatewayIntentGuildMessageReactions,
	intentMessageContent,
}

func setup() error {
	ShardManager = dshardmanager.New(common.ConfBotToken.GetString())
	ShardManager.Name = "bulkmod"
	ShardManager.GuildCountsFunc = GuildCountsFunc
	ShardManager.SessionFunc = func(token string) (session *discordgo.Session, err error) {
		session, err = discordgo.New(token)
		if err != nil {
			return
		}

		session.StateEnabled = false
		session.LogLevel = discordgo.LogInformational
		session.SyncEvents = true
		session.Intents = intents

		return
	}

	shardCount, err := ShardManager.GetRecommendedCount()
	if err != nil {
		return errors.WithMessage(err, "GetRecommendedCount")
	}

	State = state.NewTracker(int64(shardCount))
	MessageDeleteQueue = NewDeleteQueue(deleteMessages)
	ConfirmMenus = confirm.NewMenus(common.BotSession, common.BotUser.ID)

	// state has to be updated before anything else sees the event
	ShardManager.AddHandler(State.HandleEvent)
	ShardManager.AddHandler(ConfirmMenus.HandleReactionAdd)
	ShardManager.AddHandler(HandleReady)

	metricsTotalShards.Set(float64(shardCount))
	return nil
}

// AddHandler adds a discordgo event handler to every shard, it has to be called from BotInit
func AddHandler(handler interface{}) {
	ShardManager.AddHandler(handler)
}

func Run() error {
	err := setup()
	if err != nil {
		return err
	}

	logger.Info("Running bot")

	InitPlugins()

	go runUpdateMetrics()

	Running = true
	return ShardManager.Start()
}

func InitPlugins() {
	for _, plugin := range common.Plugins {
		if initBot, ok := plugin.(BotInitHandler); ok {
			initBot.BotInit()
		}
	}
}

var stopOnce sync.Once

func StopAllPlugins(wg *sync.WaitGroup) {
	stopOnce.Do(func() {
		for _, v := range common.Plugins {
			stopper, ok := v.(BotStopperHandler)
			if !ok {
				continue
			}
			wg.Add(1)
			logger.Debug("Calling bot stopper for: ", v.PluginInfo().Name)
			go stopper.StopBot(wg)
		}
	})
}

func Stop(wg *sync.WaitGroup) {
	StopAllPlugins(wg)

	if ShardManager != nil {
		err := ShardManager.StopAll()
		if err != nil {
			logger.WithError(err).Error("failed stopping shards")
		}
	}

	wg.Done()
}

func GuildCountsFunc() []int {
	if State == nil {
		return nil
	}

	return State.GuildCounts()
}

func HandleReady(s *discordgo.Session, r *discordgo.Ready) {
	logger.Infof("Shard %d ready with %d guilds", s.ShardID, len(r.Guilds))
}
