package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned when a completion has no choices or no content.
	ErrEmptyResponse = errors.New("empty completion response")
	// ErrRefusal is returned when the model refuses to produce the structured output.
	ErrRefusal = errors.New("model refused the request")
	// ErrTruncated is returned when the completion stopped at the token limit.
	ErrTruncated = errors.New("completion truncated at token limit")
)

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider   Provider
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed with status %d: %s", e.Provider, e.Operation, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Provider, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Provider, e.Operation, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// IsRateLimited reports whether err is a provider 429.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 429
}
