// Package security проверка личности вызывающего: JWT или заголовок X-User-ID (dev).
package security

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"
)

const (
	HeaderUserID     = "X-User-ID"
	QueryAccessToken = "access_token"
)

// Credentials то, что клиент предъявил: bearer-токен и, в dev-режиме, идентификатор.
type Credentials struct {
	Token  string
	UserID string
}

// Authenticator возвращает идентификатор пользователя по предъявленным данным.
type Authenticator interface {
	Authenticate(ctx context.Context, c Credentials) (uuid.UUID, error)
}

// CredentialsFromRequest берёт Authorization: Bearer, а для WebSocket-рукопожатия
// ещё и query-параметр access_token (браузер не умеет ставить заголовки).
func CredentialsFromRequest(r *http.Request) Credentials {
	c := Credentials{
		Token:  bearer(r.Header.Get("Authorization")),
		UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
	}
	if c.Token == "" {
		c.Token = strings.TrimSpace(r.URL.Query().Get(QueryAccessToken))
	}
	if c.UserID == "" {
		c.UserID = strings.TrimSpace(r.URL.Query().Get("user_id"))
	}
	return c
}

// CredentialsFromMetadata то же для входящих gRPC-вызовов.
func CredentialsFromMetadata(ctx context.Context) Credentials {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Credentials{}
	}
	first := func(key string) string {
		if v := md.Get(key); len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	return Credentials{
		Token:  bearer(first("authorization")),
		UserID: first(strings.ToLower(HeaderUserID)),
	}
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

type userIDKey struct{}

func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFromCtx uuid.Nil, если личность не установлена.
func UserIDFromCtx(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(userIDKey{}).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}
