package httputil

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"

	// MetadataRequestID тот же идентификатор в gRPC metadata.
	MetadataRequestID = "x-request-id"

	maxRequestIDLen = 64
)

type reqIDKey struct{}

// MiddlewareRequestID пробрасывает X-Request-ID клиента или генерирует новый.
func MiddlewareRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := NormalizeRequestID(r.Header.Get(HeaderRequestID))
		w.Header().Set(HeaderRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), reqID)))
	})
}

// NormalizeRequestID принимает чужой id только если он короткий и печатный,
// иначе выдаёт новый UUID.
func NormalizeRequestID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxRequestIDLen || strings.ContainsFunc(raw, func(r rune) bool {
		return r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r)
	}) {
		return uuid.NewString()
	}
	return raw
}

func WithRequestID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, reqIDKey{}, reqID)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(reqIDKey{}).(string)
	return v, ok
}
