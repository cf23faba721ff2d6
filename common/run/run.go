package run

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/botlabs-gg/bulkmod/bot"
	"github.com/botlabs-gg/bulkmod/commands"
	"github.com/botlabs-gg/bulkmod/common"
	"github.com/botlabs-gg/bulkmod/common/config"
	"github.com/botlabs-gg/bulkmod/common/prom"
	"github.com/botlabs-gg/bulkmod/common/sentryhook"
	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

var (
	flagRunBot bool
	flagDryRun bool

	flagLogTimestamp bool

	flagSysLog        bool
	flagGenConfigDocs bool

	flagLogAppName string

	flagVersion bool
)

var confSentryDSN = config.RegisterOption("bulkmod.sentry_dsn", "Sentry credentials for sentry logging hook", "")

func init() {
	flag.BoolVar(&flagRunBot, "bot", false, "Set to run discord bot and bot related stuff")
	flag.BoolVar(&flagDryRun, "dry", false, "Do a dryrun, initialize all plugins but don't actually start anything")
	flag.BoolVar(&flagSysLog, "syslog", false, "Set to log to syslog (only linux)")
	flag.StringVar(&flagLogAppName, "logappname", "bulkmod", "When using syslog, the application name will be set to this")
	flag.BoolVar(&flagGenConfigDocs, "genconfigdocs", false, "Generate config docs and exit")

	flag.BoolVar(&flagLogTimestamp, "ts", false, "Set to include timestamps in log")
	flag.BoolVar(&flagVersion, "version", false, "Print the version and exit")
}

// Init parses the flags, sets up logging and loads the config
func Init() {
	if !flag.Parsed() {
		flag.Parse()
	}

	if flagVersion {
		fmt.Println(common.VERSION)
		os.Exit(0)
	}

	common.AddLogHook(common.ContextHook{})

	common.SetLogFormatter(&log.TextFormatter{
		DisableTimestamp: !flagLogTimestamp,
		ForceColors:      common.Testing,
		SortingFunc:      logrusSortingFunc,
	})

	if flagSysLog {
		AddSyslogHooks()
	}

	if flagGenConfigDocs {
		GenConfigDocs(os.Stdout)
		os.Exit(0)
	}

	if !flagRunBot && !flagDryRun {
		log.Error("Didnt specify what to run, see -h for more info")
		os.Exit(1)
	}

	log.Info("Starting bulkmod version " + common.VERSION)

	err := common.CoreInit()
	if err != nil {
		log.WithError(err).Fatal("Failed running core init")
	}

	if confSentryDSN.GetString() != "" {
		addSentryHook()
	}

	err = common.Init()
	if err != nil {
		log.WithError(err).Fatal("Failed intializing")
	}

	log.Info("Starting plugins")
}

// Run starts the bot and blocks until a shutdown signal is received
func Run() {
	if flagDryRun {
		log.Println("This is a dry run, exiting")
		return
	}

	err := prom.Run()
	if err != nil {
		log.WithError(err).Error("Failed starting prom server")
	}

	err = bot.Run()
	if err != nil {
		log.WithError(err).Fatal("Failed starting the bot")
	}

	listenSignal()
}

// RegisterPlugins registers the plugins every process runs
func RegisterPlugins() {
	commands.RegisterPlugin()
}

// Gracefull shutdown
func listenSignal() {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c
	shutdown()
}

func shutdown() {
	log.Info("SHUTTING DOWN... ")

	wg := new(sync.WaitGroup)
	wg.Add(1)
	go bot.Stop(wg)

	log.Info("Waiting for things to shut down...")
	wg.Wait()

	log.Info("Sleeping for a second to allow work to finish")
	time.Sleep(time.Second)

	log.Info("Bye..")
	os.Exit(0)
}

func addSentryHook() {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:     confSentryDSN.GetString(),
		Release: common.VERSION,
	})

	if err == nil {
		hook := &sentryhook.Hook{}
		common.AddLogHook(hook)
		log.Info("Added Sentry Hook")
	} else {
		log.WithError(err).Error("Failed adding sentry hook")
	}
}

var logSortPriority = []string{
	"time",
	"level",
	"p",
	"msg",
	"stck",
}

func logrusSortingFunc(fields []string) {
	sort.Slice(fields, func(i, j int) bool {

		iPriority := findStringIndex(logSortPriority, fields[i])
		jPriority := findStringIndex(logSortPriority, fields[j])

		if iPriority != -1 && jPriority == -1 {
			return true
		} else if jPriority != -1 && iPriority == -1 {
			return false
		} else if iPriority == -1 && jPriority == -1 {
			return strings.Compare(fields[i], fields[j]) < 0
		}

		// both has priority
		return iPriority < jPriority
	})
}

func findStringIndex(slice []string, s string) int {
	for i, v := range slice {
		if v == s {
			return i
		}
	}

	return -1
}
