// Package logger configures the process-wide structured logger
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/amirphl/callback-survey/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance
var Log = logrus.New()

// Init configures the global logger from the logging section of the configuration.
// The returned closer flushes and closes the rotating log file, if any.
func Init(cfg config.LoggingConfig, environment string) io.Closer {
	var rotator *lumberjack.Logger
	if cfg.Output == "file" || cfg.Output == "both" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	}

	switch {
	case rotator != nil && cfg.Output == "both":
		Log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	case rotator != nil:
		Log.SetOutput(rotator)
	default:
		Log.SetOutput(os.Stdout)
	}

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", cfg.Level, err)
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	if strings.ToLower(cfg.Format) == "json" {
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
		})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	Log.WithFields(logrus.Fields{
		"level":       Log.GetLevel().String(),
		"output":      cfg.Output,
		"environment": environment,
	}).Info("Logger initialized")

	if rotator == nil {
		return nopCloser{}
	}
	return rotator
}

// Get returns the configured global logger
func Get() *logrus.Logger {
	return Log
}

// Writer returns a writer that logs each line at the given level; used to route
// third-party loggers (access log, gorm) through logrus
func Writer(level logrus.Level) *io.PipeWriter {
	return Log.WriterLevel(level)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
