// Package logger provides structured logging for the graph storage layer.
//
// It wraps log/slog behind a small Logger interface so packages accept a
// logger without binding to a handler:
//
//   - logger.go: handler construction, level control, package-level default
//   - context.go: logger and RDG propagation through context.Context
//
// Features:
//
//   - JSON and text output formats
//   - Per-logger minimum level
//   - Component-scoped child loggers (Named)
package logger
