package llm

import (
	"errors"
	"fmt"
)

// NetworkError is a transport failure: connection refused, DNS, timeout.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError is a non-2xx answer from a backend.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError means the model's text could not be parsed into the
// expected shape.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ValidationError means the model's JSON parsed but a field holds a value
// outside what the game accepts.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// GatewayError is returned once every attempt has failed. Err is the last
// underlying failure.
type GatewayError struct {
	Backend  string
	Attempts int
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s backend failed after %d attempt(s): %v", e.Backend, e.Attempts, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is, or wraps, a MalformedResponseError.
func IsMalformed(err error) bool {
	var m *MalformedResponseError
	return errors.As(err, &m)
}
