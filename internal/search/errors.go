package search

import (
	"errors"
	"fmt"
)

// ErrorKind classifies search failures.
type ErrorKind string

const (
	KindNetwork           ErrorKind = "network"
	KindTimeout           ErrorKind = "timeout"
	KindAborted           ErrorKind = "aborted"
	KindHTTPStatus        ErrorKind = "http_status"
	KindMalformedEvent    ErrorKind = "malformed_event"
	KindStreamUnavailable ErrorKind = "stream_unavailable"
	KindInvalidRequest    ErrorKind = "invalid_request"
)

var (
	ErrNetwork           = errors.New("network error")
	ErrTimeout           = errors.New("request timed out")
	ErrAborted           = errors.New("search aborted")
	ErrHTTPStatus        = errors.New("unexpected HTTP status")
	ErrMalformedEvent    = errors.New("malformed stream event")
	ErrStreamUnavailable = errors.New("response body cannot be streamed")
	ErrInvalidRequest    = errors.New("invalid search request")
)

var kindSentinels = map[ErrorKind]error{
	KindNetwork:           ErrNetwork,
	KindTimeout:           ErrTimeout,
	KindAborted:           ErrAborted,
	KindHTTPStatus:        ErrHTTPStatus,
	KindMalformedEvent:    ErrMalformedEvent,
	KindStreamUnavailable: ErrStreamUnavailable,
	KindInvalidRequest:    ErrInvalidRequest,
}

// Error is the single error type reported by a search.
type Error struct {
	Kind    ErrorKind
	Op      string // "validate", "connect", "stream"
	Host    string // API host, when known
	Status  int    // HTTP status for KindHTTPStatus
	Message string // human readable, actionable text
	Err     error  // underlying cause
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind ErrorKind, op, host, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Host:    host,
		Message: message,
		Err:     cause,
	}
}

func networkError(op, host string, cause error) *Error {
	return newError(KindNetwork, op, host,
		fmt.Sprintf("cannot reach the search API at %s, check the API address and your network", host), cause)
}

func timeoutError(op, host string, cause error) *Error {
	return newError(KindTimeout, op, host,
		fmt.Sprintf("the search API at %s did not respond in time", host), cause)
}

func abortedError(op, host string, cause error) *Error {
	return newError(KindAborted, op, host, "search cancelled", cause)
}

func httpStatusError(host string, status int, message string) *Error {
	e := newError(KindHTTPStatus, "connect", host, message, nil)
	e.Status = status
	return e
}

func streamUnavailableError(host string) *Error {
	return newError(KindStreamUnavailable, "stream", host,
		fmt.Sprintf("the response from %s cannot be read incrementally", host), nil)
}

// KindOf returns the kind of a search error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsAborted reports whether err is a caller-initiated cancellation.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// IsTimeout reports whether err is a connect-phase timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}
