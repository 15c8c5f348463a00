package security

import "errors"

var (
	ErrMissingToken    = errors.New("missing bearer token")
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidIssuer   = errors.New("invalid issuer")
	ErrInvalidAudience = errors.New("invalid audience")
	ErrTokenExpired    = errors.New("token expired or not valid yet")
	ErrInvalidSubject  = errors.New("invalid subject")
	ErrMissingUserID   = errors.New("missing X-User-ID")
)
