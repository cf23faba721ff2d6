package sentryhook

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// Hook forwards error level log entries to sentry
type Hook struct{}

func (hook Hook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}
}

func (hook Hook) Fire(entry *logrus.Entry) error {
	hub := sentry.CurrentHub().Clone()
	if hub == nil {
		return nil
	}

	hub.WithScope(func(s *sentry.Scope) {
		for k, v := range entry.Data {
			strV := fmt.Sprint(v)
			switch k {
			case "p":
				s.SetTag("plugin", strV)
			case "cmd":
				s.SetTag("command", strV)
			case "guild":
				s.SetExtra("guild_id", strV)
			case "error":
			default:
				s.SetExtra(k, strV)
			}
		}

		if err, ok := entry.Data["error"].(error); ok {
			s.SetExtra("message", entry.Message)
			hub.CaptureException(err)
		} else {
			hub.CaptureMessage(entry.Message)
		}
	})

	return nil
}
