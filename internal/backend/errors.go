// errors.go - Typed failures for backend calls
package backend

import (
	"errors"
	"fmt"
)

// NetworkError wraps a transport-level failure (connection refused, timeout,
// canceled context). The request never produced an HTTP response.
type NetworkError struct {
	Op    string
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// ServerError is a non-2xx response or a 2xx body carrying an explicit
// error field.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error: %s", e.Message)
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// NotFoundError is a 404 for a named layer file. It is user-facing: the
// filename is part of the message so the operator knows which layer is gone.
type NotFoundError struct {
	Filename string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("layer file not found: %s", e.Filename)
}

// ValidationError marks a payload whose shape did not match the contract.
// Callers recover from it locally with an empty structure; it is never
// surfaced as a fatal failure.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("malformed payload field: %s", e.Field)
}

// ConversionError is a conversion POST that came back success:false or
// failed outright.
type ConversionError struct {
	QaID    string
	Message string
}

func (e *ConversionError) Error() string {
	if e.QaID != "" {
		return fmt.Sprintf("conversion of %s failed: %s", e.QaID, e.Message)
	}
	return fmt.Sprintf("conversion failed: %s", e.Message)
}

// Error constructors for consistent classification

func NewNetworkError(op string, cause error) *NetworkError {
	return &NetworkError{Op: op, Cause: cause}
}

func NewServerError(status int, message string) *ServerError {
	return &ServerError{Status: status, Message: message}
}

func NewNotFoundError(filename string) *NotFoundError {
	return &NotFoundError{Filename: filename}
}

func NewValidationError(field string) *ValidationError {
	return &ValidationError{Field: field}
}

func NewConversionError(qaID, message string) *ConversionError {
	return &ConversionError{QaID: qaID, Message: message}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
