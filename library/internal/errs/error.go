package errs

import (
	"errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

// RuleError is a refused business rule. Message is shown to the user as is.
type RuleError struct {
	Message string
	Kind    error
}

func (e *RuleError) Error() string {
	return e.Message
}

func (e *RuleError) Unwrap() error {
	return e.Kind
}

func NewRule(kind error, message string) error {
	return &RuleError{Message: message, Kind: kind}
}

func IsRule(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}
