// Package errors maps the service error taxonomy onto the JSON error
// envelope returned by every HTTP surface.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shipyardlabs/cargohold/pkg/authz"
	"github.com/shipyardlabs/cargohold/pkg/dispatch"
	"github.com/shipyardlabs/cargohold/pkg/jobstore"
)

// Error codes returned in the envelope. These are part of the API contract.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeForbidden        = "AUTHORIZATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeDispatch         = "DISPATCH_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

// HTTPError is the error payload inside the envelope.
type HTTPError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// HTTPErrorResponse is the JSON envelope for every non-2xx response.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// Respond writes the envelope with an explicit status and code.
func Respond(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{Code: code, Message: message, RequestID: requestID(r)},
	})
}

// RespondWithError maps a service error onto status code and envelope.
//
// Handler-side errors are returned to the caller and never persisted; only
// the worker records errors into a job's error_message.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Classify(err)
	Respond(w, r, status, code, err.Error())
}

// Classify resolves a service error to its HTTP status and envelope code.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, jobstore.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, authz.ErrUnauthenticated):
		return http.StatusUnauthorized, CodeUnauthenticated
	case errors.Is(err, authz.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, jobstore.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, dispatch.ErrDispatch):
		return http.StatusInternalServerError, CodeDispatch
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func requestID(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.Header.Get("X-Request-ID")
}
