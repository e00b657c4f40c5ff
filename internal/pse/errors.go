package pse

import (
	"errors"
	"fmt"
)

var (
	// ErrProcessorUnavailable is returned when the processor could not be
	// reached or kept failing after all retries.
	ErrProcessorUnavailable = errors.New("pse: processor unavailable")

	// ErrMalformedResponse is returned when a 2xx response cannot be decoded
	// or lacks the transaction state.
	ErrMalformedResponse = errors.New("pse: malformed processor response")

	// ErrMissingCredentials is returned when a provider has no keys to sign with.
	ErrMissingCredentials = errors.New("pse: provider credentials missing")

	// ErrNoEndpoint is returned when no processor URL is configured for the
	// provider's environment.
	ErrNoEndpoint = errors.New("pse: no processor endpoint configured")
)

// APIError is a non-2xx answer from the processor.
type APIError struct {
	StatusCode int    // HTTP status returned by the processor
	Code       string // processor error code, when present
	Message    string // processor error message, when present
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("pse: processor returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("pse: processor returned %d", e.StatusCode)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
