// Package authz models the external authorization collaborator.
//
// The core never inspects ambient session state: the API boundary
// authenticates the request once, and the resulting Principal is passed
// explicitly into core operations.
package authz

import (
	"context"
	"errors"
)

// Principal is the authenticated identity submitted with a request.
type Principal struct {
	// ID is the opaque principal identifier (JWT subject).
	ID string

	// Admin reports whether the principal carries the admin capability.
	Admin bool
}

// Sentinel errors for authentication and capability checks.
var (
	// ErrUnauthenticated indicates no valid credentials were presented.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates the principal lacks the required capability.
	ErrForbidden = errors.New("principal lacks capability")
)

// Authenticator resolves bearer credentials into a Principal.
type Authenticator interface {
	// Authenticate parses and verifies a bearer token.
	// Returns ErrUnauthenticated for missing, malformed or expired tokens.
	Authenticate(token string) (Principal, error)
}

type contextKey struct{}

// WithPrincipal stores the authenticated principal in the request context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// CurrentPrincipal returns the principal stored by the API boundary.
// The bool is false when the request was unauthenticated.
func CurrentPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// RequireAdmin checks the admin capability on an explicit principal.
func RequireAdmin(p Principal) error {
	if !p.Admin {
		return ErrForbidden
	}
	return nil
}
