package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrRunInFlight indicates the run is already executing on this server
type ErrRunInFlight struct {
	RunID string
}

func (e *ErrRunInFlight) Error() string {
	return fmt.Sprintf("run already in progress: %s", e.RunID)
}

// ErrRateLimited indicates the trigger endpoint is throttled
type ErrRateLimited struct{}

func (e *ErrRateLimited) Error() string {
	return "too many run triggers"
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ErrValidation:
		return http.StatusBadRequest
	case *ErrRunInFlight:
		return http.StatusConflict
	case *ErrRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// validationError converts the first validator failure into an ErrValidation.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ErrValidation{Field: fe.Field(), Message: fmt.Sprintf("failed '%s' validation", fe.Tag())}
	}
	return &ErrValidation{Field: "body", Message: err.Error()}
}
