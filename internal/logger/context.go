package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds operation-scoped logging context. The Ctx logging
// functions inject its non-zero fields into every record, so a dispatcher
// can tag a whole call chain once instead of threading attrs through it.
type LogContext struct {
	SessionID string // Filesystem session identifier
	PID       int    // Sandboxed process the operation came from
	Op        string // Operation name (open, read, rename, etc.)
	Mount     string // Mount prefix the path resolved to
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}
