package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
)

// SlogLevelCritical sits above slog.LevelError. Integrity failures and other
// security incidents are logged at this level.
const SlogLevelCritical = slog.LevelError + 4

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelCritical:
		return SlogLevelCritical
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps "debug", "info", "warn", "error" and "critical" to a
// LogLevel. Anything else yields LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "critical":
		return LevelCritical
	default:
		return LevelInfo
	}
}

// LogFormat represents the output format for logs
type LogFormat int

const (
	FormatJSON LogFormat = iota
	FormatText
)

// ParseFormat maps "text" to FormatText and everything else to FormatJSON.
func ParseFormat(s string) LogFormat {
	if strings.ToLower(s) == "text" {
		return FormatText
	}
	return FormatJSON
}

// LoggerConfig configures the structured logger
type LoggerConfig struct {
	Level     LogLevel
	Format    LogFormat
	Output    io.Writer
	Component string
}

// NewLogger creates a slog.Logger with the given configuration.
func NewLogger(config LoggerConfig) *slog.Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     config.Level.slogLevel(),
		AddSource: config.Level == LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= SlogLevelCritical {
					a.Value = slog.StringValue("CRITICAL")
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch config.Format {
	case FormatText:
		handler = slog.NewTextHandler(config.Output, opts)
	default:
		handler = slog.NewJSONHandler(config.Output, opts)
	}

	logger := slog.New(handler).With("service", "phiguard")
	if config.Component != "" {
		logger = logger.With("component", config.Component)
	}
	return logger
}

// Discard returns a logger that drops everything. Used as the default when
// no logger is injected.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns logger, or a discarding logger when it is nil.
func OrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return Discard()
	}
	return logger
}

// LogSecurityEvent logs a security-related event at a level derived from its
// severity ("critical", "high", "medium", anything else).
func LogSecurityEvent(ctx context.Context, logger *slog.Logger, event string, severity string, args ...any) {
	level := slog.LevelInfo
	switch severity {
	case "critical":
		level = SlogLevelCritical
	case "high":
		level = slog.LevelError
	case "medium":
		level = slog.LevelWarn
	}
	args = append([]any{"event", event, "severity", severity}, args...)
	logger.Log(ctx, level, "security event detected", args...)
}
