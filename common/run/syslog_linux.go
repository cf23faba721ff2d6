package run

import (
	"log/syslog"

	"github.com/botlabs-gg/bulkmod/common"
	"github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"
)

func AddSyslogHooks() {
	hook, err := lsyslog.NewSyslogHook("", "", syslog.LOG_INFO|syslog.LOG_DAEMON, flagLogAppName)
	if err != nil {
		logrus.WithError(err).Error("failed initializing syslog hook")
		return
	}

	common.AddLogHook(hook)
	logrus.Info("Added syslog hook")
}
