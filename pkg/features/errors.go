package features

import (
	"errors"
	"fmt"
)

var ErrInvalidShape = errors.New("features must be either a list or an object")

// ValidationError reports a request whose shape cannot be assembled into a
// record. It is never retried.
type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

func lengthError(expected, received int) error {
	return ValidationError{reason: fmt.Errorf("Invalid feature length: expected %d, received %d", expected, received)}
}
