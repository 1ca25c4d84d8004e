// Package logging constructs the process-wide *logrus.Logger. Every
// caller receives the logger as a constructor argument (store,
// pipeline, channel, mcpserve) rather than reaching for a package-level
// global, per the ambient-globals redesign: a second spiralmem process
// embedding this module as a library must be able to run with its own
// logger without fighting shared state.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a *logrus.Logger from the given level ("debug", "info",
// "warn", "error") and format ("text" or "json"). An unrecognized
// level falls back to info rather than failing startup.
func New(level, format string, quiet bool) *logrus.Logger {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if quiet {
		logger.SetOutput(io.Discard)
	} else {
		logger.SetOutput(os.Stderr)
	}

	return logger
}

// Noop returns a logger with output discarded, for tests that don't
// want to assert on log lines but still need a non-nil *logrus.Logger.
func Noop() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
