// Package logging configures the logrus logger shared by the CLI and
// defines the minimal Logger interface the storage packages depend on.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger abstracts logging so callers can use logrus or any other logger
// that satisfies this interface.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

// Levels lists the level names ParseLevel accepts.
var Levels = []string{"debug", "info", "warn", "warning", "error", "fatal"}

// ParseLevel maps a level name to a logrus level.
// Trace and panic levels are not exposed.
func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel, nil
	case "info", "":
		return logrus.InfoLevel, nil
	case "warning", "warn":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	case "fatal":
		return logrus.FatalLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("bad log level %q (use debug, info, warn, error, fatal)", level)
	}
}

// New creates a logrus logger writing text to w at the given level.
func New(w io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l, nil
}

var _ Logger = (*logrus.Logger)(nil)
