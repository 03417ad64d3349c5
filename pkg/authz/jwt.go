package authz

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT claim set cargohold issues and accepts.
type Claims struct {
	jwt.RegisteredClaims

	// Admin mirrors the admin flag granted by the management console.
	Admin bool `json:"admin"`
}

// JWTAuthenticator verifies HS256 bearer tokens with a shared secret.
//
// Signature validation is intentionally local: the surrounding system's
// login flow issues the tokens, this service only consumes them.
type JWTAuthenticator struct {
	secret []byte
}

var _ Authenticator = (*JWTAuthenticator)(nil)

// NewJWTAuthenticator creates an authenticator from the shared signing secret.
func NewJWTAuthenticator(secret string) (*JWTAuthenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("auth secret is required")
	}
	return &JWTAuthenticator{secret: []byte(secret)}, nil
}

// Authenticate parses and verifies a bearer token.
func (a *JWTAuthenticator) Authenticate(token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, fmt.Errorf("parse token: %w", ErrUnauthenticated)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, fmt.Errorf("token has no subject: %w", ErrUnauthenticated)
	}

	return Principal{ID: claims.Subject, Admin: claims.Admin}, nil
}

// Issue signs a token for the principal, valid for ttl.
// Used by the CLI and by tests; the production issuer lives outside this service.
func (a *JWTAuthenticator) Issue(p Principal, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Admin: p.Admin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
