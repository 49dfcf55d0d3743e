package services

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when a bearer token is missing, malformed or
// unknown, or when it belongs to an inactive user.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden is returned when an authenticated user lacks a privilege.
var ErrForbidden = errors.New("forbidden")

// ValidationError reports invalid input. Field is empty when the error is
// not tied to a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
