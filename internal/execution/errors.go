package execution

import "errors"

// ErrInvalidOperation is the base error for lifecycle operations that are not
// permitted for the span's kind or state. Returned wrapped; match with
// errors.Is.
var ErrInvalidOperation = errors.New("invalid operation")

// MissingFieldError is returned by Builder.Build when a required field was
// not supplied. The builder fails fast on the first missing field; aggregated
// diagnostics are Result.Validate's job.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "execution: " + e.Field + " is required"
}
