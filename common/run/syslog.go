//go:build !linux
// +build !linux

package run

import (
	"github.com/sirupsen/logrus"
)

func AddSyslogHooks() {
	logrus.Warn("Syslog is only supported on linux, not adding hook")
}
