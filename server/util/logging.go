package util

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

type loggerKeyType struct{}

var loggerKey = loggerKeyType{}

// NewLogger builds the process logger: human-readable development output
// when debug is set, JSON production output otherwise.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// WithRequest derives a request-scoped logger carrying method, path and,
// when known, the authenticated admin.
func WithRequest(l *zap.Logger, r *http.Request, user string) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.String()),
	}
	if user != "" {
		fields = append(fields, zap.String("user", user))
	}

	return l.With(fields...)
}

// ContextWithLogger stores the request logger in context for downstream handlers.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext retrieves a request logger from context when available.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return nil
	}

	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}

	return nil
}

// RequestLogger returns the logger stored on r, or a fresh request logger
// built from fallback.
func RequestLogger(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if l := FromContext(r.Context()); l != nil {
		return l
	}
	return WithRequest(fallback, r, "")
}
