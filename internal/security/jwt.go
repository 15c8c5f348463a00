package security

import (
	"context"
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

type AccessClaims struct {
	jwt.StandardClaims // Issuer, Audience, ExpiresAt, NotBefore, IssuedAt, Subject
}

// JWTVerifier проверяет access-токены auth-service (RS256, sub = UUID пользователя).
type JWTVerifier struct {
	public    *rsa.PublicKey
	issuer    string
	audience  string
	clockSkew time.Duration

	now func() time.Time
}

func NewJWTVerifier(public *rsa.PublicKey, issuer, audience string, clockSkew time.Duration) *JWTVerifier {
	return &JWTVerifier{
		public:    public,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		now:       time.Now,
	}
}

func (v *JWTVerifier) Authenticate(_ context.Context, c Credentials) (uuid.UUID, error) {
	if c.Token == "" {
		return uuid.Nil, ErrMissingToken
	}
	claims, err := v.ParseAndValidate(c.Token)
	if err != nil {
		return uuid.Nil, err
	}
	return SubjectAsUserID(claims)
}

// ParseAndValidate подпись, issuer, audience и временные клеймы с допуском clockSkew.
func (v *JWTVerifier) ParseAndValidate(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	// время проверяем сами, с учётом clockSkew
	parser := jwt.Parser{SkipClaimsValidation: true}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok || t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, ErrInvalidToken
		}
		return v.public, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if !claims.VerifyIssuer(v.issuer, true) {
		return nil, ErrInvalidIssuer
	}
	if !claims.VerifyAudience(v.audience, true) {
		return nil, ErrInvalidAudience
	}

	now := v.now()
	nbf := time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)
	exp := time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)
	if claims.ExpiresAt == 0 || now.Before(nbf) || now.After(exp) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

// SubjectAsUserID парсит sub в UUID пользователя.
func SubjectAsUserID(claims *AccessClaims) (uuid.UUID, error) {
	if claims == nil || claims.Subject == "" {
		return uuid.Nil, ErrInvalidSubject
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalidSubject
	}
	return id, nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}

	return pub, nil
}
