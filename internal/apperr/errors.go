package apperr

import "errors"

// ErrNotFound is returned when a record, iteration or domain does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError is a rejected user action. It never mutates state and is
// reported back to the caller instead of failing the process.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Invalid builds a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Validation wraps the result of a struct validation pass. A nil err stays nil.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Reason: err.Error()}
}

// IsValidation reports whether err (or anything it wraps) is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
