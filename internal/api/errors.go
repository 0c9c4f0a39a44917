package api

import (
	"errors"
	"fmt"
)

// AuthError indicates that the server rejected the session (401 or 403).
// The client's unauthorized hook has already run when this is returned.
type AuthError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%d) on %s %s: %s", e.Status, e.Method, e.Path, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.Status, e.Method, e.Path, e.Body)
}

// NetworkError wraps transport failures and timeouts.
type NetworkError struct {
	Method  string
	Path    string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("request %s %s timed out: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("executing request %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err (or any error in its chain) is a
// NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
