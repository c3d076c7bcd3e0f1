package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match with errors.Is; the message is carried by *Error.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidState  = errors.New("invalid state")
	ErrInvalidAmount = errors.New("invalid amount")
)

// Error is a domain failure with a caller-facing message
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

func InvalidState(format string, args ...any) error {
	return newError(ErrInvalidState, format, args...)
}

func InvalidAmount(format string, args ...any) error {
	return newError(ErrInvalidAmount, format, args...)
}

// FieldError describes a problem with a single input field
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError reports malformed input. It is raised before any mutation.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{
		Message: "validation failed",
		Fields:  []FieldError{{Field: field, Error: msg}},
	}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Error
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// Add appends a field error and returns the receiver for chaining
func (e *ValidationError) Add(field, msg string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Error: msg})
	return e
}

// OrNil returns nil when no field errors were collected
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Message extracts the caller-facing message from a wrapped domain error.
// Errors that carry no domain message return their full text.
func Message(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}
	return err.Error()
}
