package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLogrusAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.Out = &buf
	l.Level = logrus.InfoLevel

	logger := NewLogrus(l)
	logger.Debugf("debug %s", "hidden")
	assert.Empty(t, buf.String())

	logger.Infof("info %s", "shown")
	assert.Contains(t, buf.String(), "info shown")

	logger.Errorf("error %d", 42)
	assert.Contains(t, buf.String(), "error 42")
}

func TestNewFallsBackToWarnOnUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "chatty")

	logger.Infof("not printed")
	assert.Empty(t, buf.String())

	logger.Warnf("printed")
	assert.Contains(t, buf.String(), "printed")
	assert.Contains(t, buf.String(), "level=warning")
}

func TestOrNopHandlesNil(t *testing.T) {
	assert.NotPanics(t, func() {
		OrNop(nil).Errorf("dropped %s", "message")
	})
}
