package middleware

import (
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/shipyardlabs/cargohold/internal/errors"
	"github.com/shipyardlabs/cargohold/internal/observability"
)

// Recovery converts handler panics into a 500 error envelope instead of
// tearing down the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				observability.Logger.Error("Recovered from handler panic",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path))
				apperrors.Respond(w, r, http.StatusInternalServerError,
					apperrors.CodeInternal, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
