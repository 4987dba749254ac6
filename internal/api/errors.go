package api

import (
	"fmt"
	"net/http"
)

// APIError is a structured error returned by the HTTP API.
//
// The legacy marker routes answer errors in plain text; those carry only Status and Message.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Message != "":
		return e.Message
	case e.Status > 0:
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	default:
		return "api error"
	}
}

// Structured reports whether the server answered with a JSON error body.
func (e *APIError) Structured() bool {
	return e != nil && e.Code != ""
}

// AuthFailure reports whether the request was rejected for missing or bad credentials.
func (e *APIError) AuthFailure() bool {
	return e != nil && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// ServerFault reports whether the server failed internally.
func (e *APIError) ServerFault() bool {
	return e != nil && e.Status >= http.StatusInternalServerError
}
