package tado

import (
	"errors"
	"fmt"
)

// ErrResponseTooLarge is wrapped by a TransportError when a body exceeds the configured ceiling
var ErrResponseTooLarge = errors.New("response body exceeds limit")

// TransportError is a network, DNS, TLS or circuit-breaker failure
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("tado %s: transport: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tado %s: http %d: %s", e.Op, e.StatusCode, e.Body)
}

// DecodeError is a body that does not match the expected structure.
// Path names the JSON field where decoding diverged, when known.
type DecodeError struct {
	Op   string
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("tado %s: decode: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("tado %s: decode at %s: %v", e.Op, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// AuthError is a failed token exchange
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("tado auth: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }
