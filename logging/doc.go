// Package logging provides a minimal logging interface and adapters for agentgraph.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// every component receives through functional options. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping a caller supplied *slog.Logger
//   - GraphLogger, a slog backed logger with run scoped attributes and
//     helpers for tool, model and node timings
//   - NoOpLogger for silent operation (the default everywhere)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.Config{Level: logging.LevelDebug, Format: "text"})
//	driver := runner.New(compiler, store, func(o *runner.Options) { o.Logger = logger })
//
// Messages are dotted event keys ("graph.node.done", "tool.call.dropped")
// followed by key/value pairs.
package logging
