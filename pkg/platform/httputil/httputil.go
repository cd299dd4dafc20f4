// Package httputil centralizes JSON encoding and domain-error translation
// for the HTTP layer. Handlers never pick status codes themselves.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "turf/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error code to an HTTP status and a JSON error
// envelope. Internal and upstream failures omit the description so nothing
// about storage or the billing provider leaks to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if d := description(err, code); d != "" {
		body["error_description"] = d
	}
	WriteJSON(w, statusOf(code), body)
}

// Decode parses a JSON request body into T. On failure it writes a
// bad-request response and returns false; the handler must return.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return req, false
	}
	return req, true
}

func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func description(err error, code dErrors.Code) string {
	switch code {
	case dErrors.CodeInternal, dErrors.CodeUpstream, dErrors.CodeInvariantViolation:
		return ""
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
