package logger

import (
	"context"

	"go.uber.org/zap"
)

// Request-scoped loggers travel through the context: the HTTP middleware
// stores a logger carrying the request id, and handlers pull it back out so
// every line of a request shares the same correlation field.

type ctxKey struct{}

// ContextWithLogger returns a context carrying the given logger.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContextOr returns the logger stored in ctx, or fallback when the
// context carries none (direct handler tests, background jobs).
func FromContextOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return fallback
}
