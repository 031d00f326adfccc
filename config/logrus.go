package config

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = NewLogger()
}

// NewLogger builds the JSON logger used across the service.
// LOG_LEVEL picks the level (default info); LOG_FILE adds a rotating file next to stdout.
func NewLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(parseLevel(os.Getenv("LOG_LEVEL")))

	var out io.Writer = os.Stdout
	if file := strings.TrimSpace(os.Getenv("LOG_FILE")); file != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    intFromEnv("LOG_FILE_MAX_MB", 50),
			MaxBackups: intFromEnv("LOG_FILE_MAX_BACKUPS", 5),
			MaxAge:     intFromEnv("LOG_FILE_MAX_AGE_DAYS", 14),
			Compress:   true,
		})
	}
	l.SetOutput(out)
	return l
}

func parseLevel(s string) logrus.Level {
	if strings.TrimSpace(s) == "" {
		return logrus.InfoLevel
	}
	lvl, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	if data != nil {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
			"data":     data,
		}).Error(err.Error())
	} else {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
		}).Error(err.Error())
	}
}
