package core

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the interface for logging in ropstat.
// Implement this interface to use a custom logger.
type Logger interface {
	// Debug logs a debug message
	Debug(format string, args ...any)

	// Info logs an info message
	Info(format string, args ...any)

	// Warn logs a warning message
	Warn(format string, args ...any)

	// Error logs an error message
	Error(format string, args ...any)
}

// LogLevel represents the logging level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelSilent
)

// NopLogger is a no-op logger that discards all messages.
type NopLogger struct{}

func (l *NopLogger) Debug(format string, args ...any) {}
func (l *NopLogger) Info(format string, args ...any)  {}
func (l *NopLogger) Warn(format string, args ...any)  {}
func (l *NopLogger) Error(format string, args ...any) {}

// =============================================================================
// Logrus adapter
// =============================================================================

// LogrusLogger adapts a logrus logger to the Logger interface.
// This is what the ropstat command uses.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger creates a logger writing text-formatted entries to w.
// component is attached as a field to every entry when non-empty.
func NewLogrusLogger(w io.Writer, level LogLevel, component string) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	l.SetLevel(toLogrusLevel(level))
	if level == LogLevelSilent {
		l.SetOutput(io.Discard)
	}

	entry := logrus.NewEntry(l)
	if component != "" {
		entry = entry.WithField("component", component)
	}
	return &LogrusLogger{entry: entry}
}

func (l *LogrusLogger) Debug(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *LogrusLogger) Info(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *LogrusLogger) Warn(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *LogrusLogger) Error(format string, args ...any) { l.entry.Errorf(format, args...) }

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelInfo:
		return logrus.InfoLevel
	case LogLevelWarn:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

// LoggerFromVerbose creates a logrus-backed logger on stderr: debug level
// when verbose, info otherwise.
func LoggerFromVerbose(component string, verbose bool) Logger {
	level := LogLevelInfo
	if verbose {
		level = LogLevelDebug
	}
	return NewLogrusLogger(os.Stderr, level, component)
}

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return &NopLogger{}
	}
	return l
}

// Ensure implementations satisfy the interface
var (
	_ Logger = (*NopLogger)(nil)
	_ Logger = (*LogrusLogger)(nil)
)
