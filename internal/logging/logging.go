package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var logrusLevels = map[LogLevel]logrus.Level{
	LevelDebug: logrus.DebugLevel,
	LevelInfo:  logrus.InfoLevel,
	LevelWarn:  logrus.WarnLevel,
	LevelError: logrus.ErrorLevel,
}

var (
	logger   = logrus.New()
	initOnce sync.Once
)

// setup applies DEBUG, LOG_LEVEL and LOG_FORMAT on first use.
func setup() {
	initOnce.Do(func() {
		logger.SetOutput(os.Stderr)
		logger.SetFormatter(formatter(os.Getenv("LOG_FORMAT")))
		logger.SetLevel(logrusLevels[parseLevel(os.Getenv("DEBUG"), os.Getenv("LOG_LEVEL"))])
	})
}

// formatter returns a JSON formatter for "json" and a timestamped text
// formatter otherwise.
func formatter(name string) logrus.Formatter {
	if strings.EqualFold(name, "json") {
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"}
	}
	return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"}
}

// parseLevel resolves a level from the DEBUG and LOG_LEVEL values. A truthy
// DEBUG wins.
func parseLevel(debug, levelStr string) LogLevel {
	switch strings.ToLower(debug) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}
	return ParseLevel(levelStr)
}

// ParseLevel maps a level name such as "debug" or "warn" to a LogLevel.
// Unknown names map to LevelInfo.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(name) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	setup()
	switch lvl := logger.GetLevel(); {
	case lvl >= logrus.DebugLevel:
		return LevelDebug
	case lvl == logrus.InfoLevel:
		return LevelInfo
	case lvl == logrus.WarnLevel:
		return LevelWarn
	default:
		return LevelError
	}
}

// SetLevel overrides the level resolved from the environment.
func SetLevel(level LogLevel) {
	setup()
	if lvl, ok := logrusLevels[level]; ok {
		logger.SetLevel(lvl)
	}
}

// SetOutput redirects log output, mostly for tests and the CLI.
func SetOutput(w io.Writer) {
	setup()
	logger.SetOutput(w)
}

func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// WithFields returns a structured entry for call sites that carry context
// such as the failing operation and key.
func WithFields(fields map[string]any) *logrus.Entry {
	setup()
	return logger.WithFields(logrus.Fields(fields))
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...any) {
	setup()
	logger.Debugf(format, args...)
}

func Info(format string, args ...any) {
	setup()
	logger.Infof(format, args...)
}

func Warn(format string, args ...any) {
	setup()
	logger.Warnf(format, args...)
}

func Error(format string, args ...any) {
	setup()
	logger.Errorf(format, args...)
}

// Fatal logs and exits with status 1.
func Fatal(format string, args ...any) {
	setup()
	logger.Fatalf(format, args...)
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
