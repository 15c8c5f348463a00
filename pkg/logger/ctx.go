package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// WithLogger кладёт логгер запроса/соединения в контекст.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromCtx логгер из контекста, иначе глобальный.
func FromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return L()
}
