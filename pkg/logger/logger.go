// Package logger provides the structured logger shared by all settlement components.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls level, format and destination of log output.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info" yaml:"level"`
	Format     string `env:"LOG_FORMAT,default=text" yaml:"format"`
	Output     string `env:"LOG_OUTPUT,default=stdout" yaml:"output"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=settlement" yaml:"file_prefix"`
}

// Logger wraps logrus so call sites can use WithError/WithField chains directly.
type Logger struct {
	*logrus.Logger
	component string
}

// New creates a logger from configuration. Unknown levels fall back to info and
// an unusable log file falls back to stdout.
func New(cfg LoggingConfig) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	base.SetOutput(outputFor(cfg))
	return &Logger{Logger: base}
}

// NewDefault returns an info-level text logger tagged with the component name.
func NewDefault(component string) *Logger {
	l := New(LoggingConfig{Level: "info", Format: "text", Output: "stdout"})
	l.component = component
	l.AddHook(componentHook{component: component})
	return l
}

// NewWithOutput returns a logger writing to w. Mostly useful in tests that assert on log lines.
func NewWithOutput(component string, w io.Writer) *Logger {
	l := NewDefault(component)
	l.SetOutput(w)
	return l
}

// Component returns the component tag, if any.
func (l *Logger) Component() string {
	return l.component
}

// Named returns a child logger sharing configuration but tagged with another component.
func (l *Logger) Named(component string) *Logger {
	child := logrus.New()
	child.SetLevel(l.GetLevel())
	child.SetFormatter(l.Formatter)
	child.SetOutput(l.Out)
	child.AddHook(componentHook{component: component})
	return &Logger{Logger: child, component: component}
}

func outputFor(cfg LoggingConfig) io.Writer {
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "stderr":
		return os.Stderr
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "settlement"
		}
		name := fmt.Sprintf("%s-%s.log", prefix, time.Now().UTC().Format("20060102"))
		f, err := os.OpenFile(filepath.Clean(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return os.Stdout
		}
		return f
	default:
		return os.Stdout
	}
}

type componentHook struct {
	component string
}

func (h componentHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h componentHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["component"]; !ok && h.component != "" {
		entry.Data["component"] = h.component
	}
	return nil
}
