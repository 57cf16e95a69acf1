package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrMissingAPIKey is returned when no API key is provided.
	ErrMissingAPIKey = errors.New("api key is required")

	// ErrMissingBaseURL is returned when no base URL is provided.
	ErrMissingBaseURL = errors.New("base url is required")

	// ErrRemote matches every *RemoteError.
	ErrRemote = errors.New("remote error")

	// ErrParse matches every *ParseError.
	ErrParse = errors.New("parse error")

	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport error")
)

// RemoteError is returned when the envelope status signals failure.
// Message is the text supplied by the remote system.
type RemoteError struct {
	Endpoint   string
	Message    string
	StatusCode int // HTTP status, 0 when the failure came with 200
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote error (HTTP %d): %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: remote error: %s", e.Endpoint, e.Message)
}

// Is implements errors.Is for sentinel error matching.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// ParseError is returned when a successful envelope carries a payload
// that does not have the expected shape.
type ParseError struct {
	Endpoint string
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: parse %s: %v", e.Endpoint, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: parse response: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// TransportError represents a network-level failure, a cancelled or
// timed out context, or an HTTP error status without a usable envelope.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transport error (HTTP %d): %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// IsRemote reports whether err is or wraps a *RemoteError.
func IsRemote(err error) bool {
	return errors.Is(err, ErrRemote)
}

// IsParse reports whether err is or wraps a *ParseError.
func IsParse(err error) bool {
	return errors.Is(err, ErrParse)
}

// IsTransport reports whether err is or wraps a *TransportError.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// errorKind classifies err for metrics and the call journal.
func errorKind(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case IsRemote(err):
		return OutcomeRemoteError
	case IsParse(err):
		return OutcomeParseError
	default:
		return OutcomeTransportError
	}
}
