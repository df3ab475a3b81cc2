// Package errors defines the error taxonomy shared by the loopback server,
// the client driver and the scenario runner.
package errors

import (
	"errors"
	"fmt"
)

// DomainError represents a classified failure in the probe harness.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code, so wrapped
// instances match their sentinel with errors.Is.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Err == nil && other.Code == e.Code
}

// Sentinel kinds. Wrap them with NewDomainError, compare with errors.Is.
var (
	ErrBindFailed = &DomainError{
		Code:    "BIND_FAILED",
		Message: "failed to bind local listener",
	}

	ErrConnectionFailed = &DomainError{
		Code:    "CONNECTION_FAILED",
		Message: "failed to establish connection",
	}

	ErrHandshakeFailed = &DomainError{
		Code:    "HANDSHAKE_FAILED",
		Message: "TLS handshake failed",
	}

	ErrCertificateRejected = &DomainError{
		Code:    "CERTIFICATE_REJECTED",
		Message: "server certificate rejected by acceptance policy",
	}

	ErrProtocol = &DomainError{
		Code:    "PROTOCOL_ERROR",
		Message: "malformed or incomplete HTTP exchange",
	}

	ErrInvalidOptions = &DomainError{
		Code:    "INVALID_OPTIONS",
		Message: "options are invalid",
	}

	ErrServerUsed = &DomainError{
		Code:    "SERVER_USED",
		Message: "loopback server already served its connection",
	}
)

// NewDomainError creates a new domain error with context
func NewDomainError(base *DomainError, err error) error {
	return &DomainError{
		Code:    base.Code,
		Message: base.Message,
		Err:     err,
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap classifies every validation error as invalid options.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidOptions
}
