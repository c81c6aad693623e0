// Package logging provides structured logging for the ledger sync core.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents a log level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

var (
	// global logger instance
	global *logrus.Logger
	mu     sync.Mutex
)

// Init configures the global logger. Calling it again replaces the
// configuration, which the CLI does once flags are parsed.
func Init(out io.Writer, minLevel LogLevel, format Format) {
	mu.Lock()
	defer mu.Unlock()

	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(string(minLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	switch format {
	case FormatText:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	}

	global = logger
}

// Get returns the global logger instance.
func Get() *logrus.Logger {
	mu.Lock()
	l := global
	mu.Unlock()

	if l == nil {
		Init(os.Stderr, LevelInfo, FormatJSON)
		return Get()
	}
	return l
}

// fields merges context maps into logrus fields.
func fields(context ...map[string]interface{}) logrus.Fields {
	merged := logrus.Fields{}
	for _, c := range context {
		for k, v := range c {
			merged[k] = v
		}
	}
	return merged
}

// Debug logs a debug message.
func Debug(message string, context ...map[string]interface{}) {
	Get().WithFields(fields(context...)).Debug(message)
}

// Info logs an info message.
func Info(message string, context ...map[string]interface{}) {
	Get().WithFields(fields(context...)).Info(message)
}

// Warn logs a warning message.
func Warn(message string, context ...map[string]interface{}) {
	Get().WithFields(fields(context...)).Warn(message)
}

// Error logs an error message.
func Error(message string, err error, context ...map[string]interface{}) {
	entry := Get().WithFields(fields(context...))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}

// ErrorWithCode logs an error message tagged with an error code.
func ErrorWithCode(message string, code string, err error, context ...map[string]interface{}) {
	Error(message, err, append(context, map[string]interface{}{"error_code": code})...)
}
