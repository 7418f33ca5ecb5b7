package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Level is a user facing level enum decoupled from slog.
type Level int

const (
	// LevelDebug is the debug logging level.
	LevelDebug Level = iota
	// LevelInfo is the informational logging level.
	LevelInfo
	// LevelWarn is the warning logging level.
	LevelWarn
	// LevelError is the error logging level.
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown values fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger defines the minimal logging interface for agentgraph.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// Config configures construction of a GraphLogger.
type Config struct {
	Level     Level
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultConfig returns a JSON, info level configuration writing to stderr.
func DefaultConfig() *Config {
	return &Config{Level: LevelInfo, Format: "json", Output: os.Stderr}
}

// GraphLogger is a slog backed Logger carrying component and run attributes.
// With* methods return copies; the receiver is never mutated.
type GraphLogger struct {
	logger *slog.Logger
}

// NewLogger builds a GraphLogger from a config (or defaults if nil).
func NewLogger(cfg *Config) *GraphLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level.slog(), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	l := slog.New(handler)
	if cfg.Component != "" {
		l = l.With(slog.String("component", cfg.Component))
	}
	return &GraphLogger{logger: l}
}

// WithComponent returns a logger tagged with the logical component name.
func (l *GraphLogger) WithComponent(c string) *GraphLogger {
	return &GraphLogger{logger: l.logger.With(slog.String("component", c))}
}

// WithRun returns a logger tagged with the thread and user of a run.
func (l *GraphLogger) WithRun(threadID, userID string) *GraphLogger {
	return &GraphLogger{logger: l.logger.With(slog.String("thread_id", threadID), slog.String("user_id", userID))}
}

// Debug logs at debug level.
func (l *GraphLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// Info logs at info level.
func (l *GraphLogger) Info(msg string, args ...any) { l.logger.Info(msg, args...) }

// Warn logs at warn level.
func (l *GraphLogger) Warn(msg string, args ...any) { l.logger.Warn(msg, args...) }

// Error logs at error level.
func (l *GraphLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// LogToolCall records execution details for a tool invocation.
func (l *GraphLogger) LogToolCall(tool string, dur time.Duration, err error) {
	l.timed("tool.call", slog.String("tool", tool), dur, err)
}

// LogModelCall records model latency, token usage and outcome.
func (l *GraphLogger) LogModelCall(model string, tokens int, dur time.Duration, err error) {
	l.timed("model.call", slog.Group("model", slog.String("name", model), slog.Int("tokens", tokens)), dur, err)
}

// LogNode records how long a graph node took and whether it failed.
func (l *GraphLogger) LogNode(node string, dur time.Duration, err error) {
	l.timed("graph.node", slog.String("node", node), dur, err)
}

func (l *GraphLogger) timed(prefix string, subject slog.Attr, dur time.Duration, err error) {
	attrs := []slog.Attr{subject, slog.Int64("duration_ms", dur.Milliseconds())}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.logger.LogAttrs(context.Background(), slog.LevelError, prefix+".failed", attrs...)
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, prefix+".completed", attrs...)
}

// CallLogger is implemented by loggers with dedicated latency records.
// GraphLogger implements it.
type CallLogger interface {
	LogToolCall(tool string, dur time.Duration, err error)
	LogModelCall(model string, tokens int, dur time.Duration, err error)
	LogNode(node string, dur time.Duration, err error)
}

// ToolCall logs a finished tool invocation on l.
func ToolCall(l Logger, tool string, dur time.Duration, err error) {
	if cl, ok := l.(CallLogger); ok {
		cl.LogToolCall(tool, dur, err)
		return
	}
	logTimed(l, "tool.call", "tool", tool, dur, err)
}

// ModelCall logs a finished model call on l.
func ModelCall(l Logger, model string, tokens int, dur time.Duration, err error) {
	if cl, ok := l.(CallLogger); ok {
		cl.LogModelCall(model, tokens, dur, err)
		return
	}
	logTimed(l, "model.call", "model", model, dur, err)
}

// Node logs a finished graph node on l.
func Node(l Logger, node string, dur time.Duration, err error) {
	if cl, ok := l.(CallLogger); ok {
		cl.LogNode(node, dur, err)
		return
	}
	logTimed(l, "graph.node", "node", node, dur, err)
}

func logTimed(l Logger, prefix, key, subject string, dur time.Duration, err error) {
	l = OrNoOp(l)
	if err != nil {
		l.Error(prefix+".failed", key, subject, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}
	l.Debug(prefix+".completed", key, subject, "duration_ms", dur.Milliseconds())
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
