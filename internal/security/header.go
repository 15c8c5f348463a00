package security

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// HeaderAuthenticator dev-режим: требуем Bearer и X-User-ID (UUID), токен не проверяется.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(_ context.Context, c Credentials) (uuid.UUID, error) {
	if c.Token == "" {
		return uuid.Nil, ErrMissingToken
	}
	if c.UserID == "" {
		return uuid.Nil, ErrMissingUserID
	}
	id, err := uuid.Parse(c.UserID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: X-User-ID must be a UUID", ErrInvalidSubject)
	}
	return id, nil
}
