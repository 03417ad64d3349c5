package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	apperrors "github.com/shipyardlabs/cargohold/internal/errors"
)

// RateLimit bounds request throughput per server instance. Polling clients
// that exceed the limit get a 429 envelope and are expected to back off.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				apperrors.Respond(w, r, http.StatusTooManyRequests,
					apperrors.CodeRateLimited, "request rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
