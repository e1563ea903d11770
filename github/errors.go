package github

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by Client wraps exactly one of them.
var (
	ErrTransient    = errors.New("transient network failure")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrClientStatus = errors.New("request rejected")
	ErrDecode       = errors.New("malformed response body")
)

// RequestError describes a failed GET against the API.
type RequestError struct {
	Path       string
	StatusCode int
	Attempts   int
	Kind       error
	Cause      error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("GET %s: %v", e.Path, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the failure kind and the underlying cause to errors.Is/As.
func (e *RequestError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// StatusCode extracts the HTTP status from an error returned by Client, or 0.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}
