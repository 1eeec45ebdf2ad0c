package weather

import (
	"context"
	"errors"
	"fmt"
)

// MalformedResponseError is returned when a source response lacks a field the
// normalization needs.
type MalformedResponseError struct {
	Source string
	Field  string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: missing %s", e.Source, e.Field)
}

// TransportError wraps network, HTTP status and file access failures.
// StatusCode is zero when no response was received.
type TransportError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrorKind groups failures so callers can pick a policy per kind.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMalformed
	KindTransport
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformed:
		return "malformed_response"
	case KindTransport:
		return "transport"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify maps err onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return KindMalformed
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return KindTransport
	}
	return KindUnknown
}
