package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrInvalidArgument is returned when a required local argument is missing.
	// No network call is made when this error is returned.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidCredentials is the generic login failure. It intentionally does
	// not distinguish an unknown email from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotAuthenticated is returned when an operation needs an identity and the session has none.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrUnauthorized matches an *APIError with status 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden matches an *APIError with status 403.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound matches an *APIError with status 404.
	ErrNotFound = errors.New("not found")

	// ErrConflict matches an *APIError with status 409.
	ErrConflict = errors.New("conflict")

	// ErrUserExists is returned by CreateUser when the email is already registered.
	ErrUserExists = errors.New("user with this email already exists")

	// ErrAlreadyResolved is returned when resolving a case that is already resolved.
	ErrAlreadyResolved = errors.New("triage case is already resolved")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	// Detail is the backend's "detail" field, or the raw body when it is not JSON.
	Detail string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is maps well-known status codes onto the package sentinels so callers can
// use errors.Is without inspecting status codes.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not an *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// parseDetail extracts FastAPI-style {"detail": ...} bodies. Validation errors
// carry a list of objects with a "msg" field.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return text
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	return string(payload.Detail)
}
