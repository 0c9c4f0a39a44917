package mutation

import (
	"errors"
	"fmt"
)

// ErrInFlight is returned when a mutation for the same task is still
// running. Nothing was written and no request was sent.
var ErrInFlight = errors.New("a change to this task is still in flight")

// ValidationError reports bad input rejected before any request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
