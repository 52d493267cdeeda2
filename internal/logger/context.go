package logger

import (
	"context"

	"go.uber.org/zap"
)

// loggerKey is the context key the request-scoped logger travels under.
type loggerKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithTenant derives a context whose logger carries the tenant id, so every
// line logged downstream of request validation is attributable to a tenant.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return ContextWithLogger(ctx, FromContext(ctx).With(zap.String("tenant_id", tenantID)))
}

// FromContext extracts the request-scoped logger. Returns zap.NewNop() when
// the context carries none, so callers never nil-check.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
