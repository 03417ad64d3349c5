// Package middleware provides the HTTP middleware chain for the API server.
package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request correlation id, echoed back in the
// response and embedded in error envelopes.
const RequestIDHeader = "X-Request-ID"

// RequestID ensures every request carries a correlation id. Client-supplied
// ids are preserved.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
