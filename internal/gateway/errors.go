package gateway

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the server rejects the credential. The
// session has already been cleared when a caller sees it.
var ErrUnauthorized = errors.New("unauthorized")

// ErrEmptyBody marks a success response that carried no payload.
var ErrEmptyBody = errors.New("empty response body")

// NetworkError means no response was received.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-success, non-401 response. Message is the server's
// "error" or "message" field, or "HTTP <status>".
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string { return e.Message }

// DecodeError is a success response whose body could not be decoded.
type DecodeError struct {
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response (status %d): %v", e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is (or wraps) ErrUnauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// outcome classifies err for metrics labels.
func outcome(err error) string {
	var (
		httpErr   *HTTPError
		netErr    *NetworkError
		decodeErr *DecodeError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.As(err, &httpErr):
		return "http_error"
	case errors.As(err, &netErr):
		return "network_error"
	case errors.As(err, &decodeErr):
		return "decode_error"
	default:
		return "error"
	}
}
