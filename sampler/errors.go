package sampler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrInvalidCount is returned when fewer than one completion is requested.
	ErrInvalidCount = errors.New("sampler: count must be at least 1")

	// ErrNoChoices is returned by a transport when the server answered
	// successfully but produced no choices.
	ErrNoChoices = errors.New("sampler: response contained no choices")

	// ErrUnknownBackend is wrapped by ConfigError for unsupported backends.
	ErrUnknownBackend = errors.New("sampler: unknown backend")
)

// ConfigError reports a missing or invalid configuration field.
// It is only ever returned at construction time.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sampler: config field %q: %s (%v)", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("sampler: config field %q: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError reports a failed transport call. Status is the HTTP status
// code when one is known, and Tries is the number of attempts made by the
// retry policy before giving up.
type TransportError struct {
	Backend Backend
	Status  int
	Tries   int
	Err     error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "sampler: transport error"
	}
	msg := fmt.Sprintf("sampler: %s transport", e.Backend)
	if e.Status > 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Tries > 1 {
		msg += fmt.Sprintf(" failed after %d tries", e.Tries)
	} else {
		msg += " failed"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsRetryable reports whether a failed transport call may succeed if repeated.
// Network errors, timeouts, rate limits and server errors are retryable.
// Client errors such as 400 or 401 and configuration errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var tErr *TransportError
	if errors.As(err, &tErr) && tErr.Status > 0 {
		switch {
		case tErr.Status == http.StatusRequestTimeout,
			tErr.Status == http.StatusConflict,
			tErr.Status == http.StatusTooManyRequests,
			tErr.Status >= 500:
			return true
		case tErr.Status >= 400:
			return false
		}
	}
	return true
}
