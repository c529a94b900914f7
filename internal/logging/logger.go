package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface used across sessionkit.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// NewLogrus returns a Logger adapter for logrus.FieldLogger.
func NewLogrus(l logrus.FieldLogger) Logger {
	return &logrusAdapter{l}
}

type logrusAdapter struct{ l logrus.FieldLogger }

func (a *logrusAdapter) Debugf(format string, args ...interface{}) { a.l.Debugf(format, args...) }
func (a *logrusAdapter) Infof(format string, args ...interface{})  { a.l.Infof(format, args...) }
func (a *logrusAdapter) Warnf(format string, args ...interface{})  { a.l.Warnf(format, args...) }
func (a *logrusAdapter) Errorf(format string, args ...interface{}) { a.l.Errorf(format, args...) }

// New builds a text logrus logger writing to out at the given level. Unknown
// levels fall back to warn.
func New(out io.Writer, level string) Logger {
	l := logrus.New()
	l.Out = out
	l.Formatter = &logrus.TextFormatter{DisableTimestamp: true}

	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.WarnLevel
	}
	l.Level = parsed

	return NewLogrus(l)
}

// Nop discards everything.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// OrNop returns l, or Nop when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
