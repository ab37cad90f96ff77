package domain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingCredentials is returned when neither a static token nor a client
// id/secret pair is configured. Fatal for the request; nothing to retry.
var ErrMissingCredentials = errors.New("imagery provider credentials not configured")

// TransientError wraps a network or provider-side failure that is worth
// retrying with backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ValidationError marks a payload that failed its format check or was empty.
// Treated as "no data" for that sensor/date attempt, never retried in place.
type ValidationError struct {
	SensorID  string
	Encoding  Encoding
	SizeBytes int
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s payload from %s (%d bytes): %s",
		e.Encoding.Extension(), e.SensorID, e.SizeBytes, e.Reason)
}

// DecodeError marks an unreadable raster. It carries the byte length and a
// short excerpt of the payload head for diagnosis.
type DecodeError struct {
	SizeBytes int
	Excerpt   string
	Err       error
}

// NewDecodeError builds a DecodeError with a hex excerpt of the payload head.
func NewDecodeError(data []byte, err error) *DecodeError {
	head := data
	if len(head) > 16 {
		head = head[:16]
	}
	return &DecodeError{SizeBytes: len(data), Excerpt: hex.EncodeToString(head), Err: err}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("undecodable raster (%d bytes, head %s): %v", e.SizeBytes, e.Excerpt, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ExhaustionError is returned when no sensor/date combination yielded data.
// It names the full range searched so the caller can report it, and so a
// placeholder substitution is an informed decision rather than a silent one.
type ExhaustionError struct {
	BBox       BoundingBox
	Requested  string   // requested date, YYYY-MM-DD
	DatesTried []string // every date swept, newest first
	Sensors    []string
}

func (e *ExhaustionError) Error() string {
	oldest := e.Requested
	if len(e.DatesTried) > 0 {
		oldest = e.DatesTried[len(e.DatesTried)-1]
	}
	return fmt.Sprintf("no scene data for %s between %s and %s (sensors: %s)",
		e.BBox.Key(), oldest, e.Requested, strings.Join(e.Sensors, ", "))
}
