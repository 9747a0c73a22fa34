package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"medmodeld/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// codedError carries a stable machine-readable code next to the status.
type codedError interface {
	Code() string
}

// statusAndCode resolves the HTTP status and error code for err.
func statusAndCode(err error) (int, string) {
	status := http.StatusInternalServerError
	code := "internal_error"
	var he HTTPError
	if errors.As(err, &he) {
		status = he.StatusCode()
		code = ""
	}
	var ce codedError
	if errors.As(err, &ce) {
		code = ce.Code()
	}
	if code == "" {
		code = codeForStatus(status)
	}
	return status, code
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_input"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "body_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}

// writeError maps err to an enveloped failure response.
func writeError(w http.ResponseWriter, err error) int {
	status, code := statusAndCode(err)
	recordFailure(status, code)
	writeEnvelope(w, status, types.Envelope{Success: false, Error: err.Error(), Code: code})
	return status
}

// writeFailure writes an enveloped failure that did not originate from the service.
func writeFailure(w http.ResponseWriter, status int, msg string) {
	code := codeForStatus(status)
	recordFailure(status, code)
	writeEnvelope(w, status, types.Envelope{Success: false, Error: msg, Code: code})
}

func writeData(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, types.Envelope{Success: true, Data: data})
}

func writeEnvelope(w http.ResponseWriter, status int, env types.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	recordFailure(status, "")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
