package listings

import "errors"

// ErrMissingID is returned by lookups given an empty identifier.
var ErrMissingID = errors.New("Missing id")

// ValidationError describes the first submitted field that failed a check.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError carries the identifier exactly as it was requested.
type NotFoundError struct {
	Requested string
}

func (e *NotFoundError) Error() string {
	return "Not found"
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
