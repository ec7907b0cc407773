package logging

import (
	"github.com/sirupsen/logrus"
)

// LogFormat selects the logrus formatter, set via LOG_FORMAT.
type LogFormat string

const (
	FormatText LogFormat = "text"
	FormatJSON LogFormat = "json"
)

func NewLogger(format LogFormat) *logrus.Logger {
	logger := logrus.New()
	switch format {
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}
