package scheduler

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a manual trigger against an unknown schedule id.
var ErrNotFound = errors.New("schedule not found")

// ValidationError reports a rejected schedule definition or an operation
// against a schedule in the wrong state.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
