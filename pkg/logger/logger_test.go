package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesLevelAndFormat(t *testing.T) {
	l := New(LoggingConfig{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	_, ok := l.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok, "expected json formatter")
}

func TestNewFallsBackToInfo(t *testing.T) {
	l := New(LoggingConfig{Level: "loud"})
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestNewDefaultTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("orchestrator", &buf)
	l.WithError(errors.New("boom")).Warn("ledger call rejected")

	out := buf.String()
	assert.Contains(t, out, "component=orchestrator")
	assert.Contains(t, out, "error=boom")
	assert.Equal(t, "orchestrator", l.Component())
}

func TestNamedKeepsOutput(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithOutput("app", &buf)
	child := parent.Named("directory")
	child.Info("lookup")
	assert.Contains(t, buf.String(), "component=directory")
}
