package logger

import "context"

type contextKey string

const (
	loggerKey contextKey = "katana.logger"
	rdgKey    contextKey = "katana.rdg_dir"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithRDG records the RDG being operated on.
func WithRDG(ctx context.Context, rdgDir string) context.Context {
	return context.WithValue(ctx, rdgKey, rdgDir)
}

// RDGFromContext returns the RDG recorded by WithRDG, or "".
func RDGFromContext(ctx context.Context) string {
	if dir, ok := ctx.Value(rdgKey).(string); ok {
		return dir
	}
	return ""
}

// L is a shorthand for FromContext that also tags the logger with the RDG
// recorded in the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if dir := RDGFromContext(ctx); dir != "" {
		l = l.With("rdg_dir", dir)
	}
	return l
}
