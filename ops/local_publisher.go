package ops

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// LocalPublisher publishes Logs to the local process's logrus logger.
type LocalPublisher struct {
	labels Labeling
}

var _ Publisher = &LocalPublisher{}

// NewLocalPublisher returns a LocalPublisher for the given run. If
// labels.LogLevel is unset, it's taken from logrus's current level.
func NewLocalPublisher(labels Labeling) *LocalPublisher {
	if labels.LogLevel == LogLevelUndefined {
		labels.LogLevel = logrusLogLevel()
	}
	return &LocalPublisher{labels}
}

func (p *LocalPublisher) Labels() Labeling { return p.labels }

func (*LocalPublisher) PublishLog(log Log) {
	var fields logrus.Fields
	if len(log.Fields) > 0 {
		if err := json.Unmarshal(log.Fields, &fields); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"fields": string(log.Fields),
			}).Error("failed to unmarshal log fields")
		}
	}
	logrus.WithFields(fields).WithFields(logrus.Fields{
		"pipeline": log.Run.Pipeline,
		"runId":    log.Run.RunID,
	}).Log(logrusLevel(log.Level), log.Message)
}

func logrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelTrace:
		return logrus.TraceLevel
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelInfo:
		return logrus.InfoLevel
	case LogLevelWarn:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

func logrusLogLevel() LogLevel {
	switch logrus.StandardLogger().Level {
	case logrus.TraceLevel:
		return LogLevelTrace
	case logrus.DebugLevel:
		return LogLevelDebug
	case logrus.InfoLevel:
		return LogLevelInfo
	case logrus.WarnLevel:
		return LogLevelWarn
	default:
		return LogLevelError
	}
}
