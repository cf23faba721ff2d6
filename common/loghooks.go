package common

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

// GetPluginLogger returns a logger tagged with the plugin's system name
func GetPluginLogger(plugin Plugin) *logrus.Entry {
	info := plugin.PluginInfo()
	return logrus.WithField("p", info.SysName)
}

func GetFixedPrefixLogger(prefix string) *logrus.Entry {
	return logrus.WithField("p", prefix)
}

func AddLogHook(hook logrus.Hook) {
	logrus.AddHook(hook)
}

func SetLogFormatter(formatter logrus.Formatter) {
	logrus.SetFormatter(formatter)
}

// AddLogFile tees the log output into a size rotated file
func AddLogFile(path string) {
	rotated := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
	}

	logrus.SetOutput(io.MultiWriter(os.Stderr, rotated))
}

// ContextHook adds the call site of the log statement as the "stck" field
type ContextHook struct{}

func (hook ContextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook ContextHook) Fire(entry *logrus.Entry) error {
	// Skip if already provided
	if _, ok := entry.Data["stck"]; ok {
		return nil
	}

	pc := make([]uintptr, 5)
	cnt := runtime.Callers(6, pc)

	for i := 0; i < cnt; i++ {
		fu := runtime.FuncForPC(pc[i] - 1)
		name := fu.Name()
		if !strings.Contains(name, "github.com/sirupsen/logrus") {
			file, line := fu.FileLine(pc[i] - 1)

			entry.Data["stck"] = filepath.Base(name) + ":" + filepath.Base(file) + ":" + strconv.Itoa(line)
			break
		}
	}
	return nil
}
