package middleware

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/shipyardlabs/cargohold/internal/errors"
	"github.com/shipyardlabs/cargohold/pkg/authz"
)

// Authenticate resolves the bearer token into a principal and stores it in
// the request context. Requests without valid credentials get a 401 envelope;
// capability checks happen in the handlers, not here.
func Authenticate(auth authz.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				apperrors.RespondWithError(w, r, err)
				return
			}

			principal, err := auth.Authenticate(token)
			if err != nil {
				apperrors.RespondWithError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(authz.WithPrincipal(r.Context(), principal)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header: %w", authz.ErrUnauthenticated)
	}

	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", fmt.Errorf("authorization header is not a bearer token: %w", authz.ErrUnauthenticated)
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}
