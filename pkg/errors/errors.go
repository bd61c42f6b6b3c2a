// Package errors provides structured error types for the Concretor resolver.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, server, and library API
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Resolution failures map one-to-one onto the solver's failure taxonomy
// (UNKNOWN_PACKAGE, UNSATISFIABLE, ...). Input and infrastructure failures
// use the INVALID_* and IO_* families.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnknownVariant, "package %s has no variant %q", pkg, name)
//	if errors.Is(err, errors.ErrCodeUnknownVariant) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeIO, origErr, "failed to read recipe %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Recipe index errors
	ErrCodeUnknownPackage   Code = "UNKNOWN_PACKAGE"
	ErrCodeDuplicatePackage Code = "DUPLICATE_PACKAGE"
	ErrCodeInvalidRecipe    Code = "INVALID_RECIPE"

	// Spec validation errors
	ErrCodeUnknownVariant           Code = "UNKNOWN_VARIANT"
	ErrCodeInvalidVariantValue      Code = "INVALID_VARIANT_VALUE"
	ErrCodeInvalidVersionConstraint Code = "INVALID_VERSION_CONSTRAINT"
	ErrCodeInvalidSpec              Code = "INVALID_SPEC"
	ErrCodeConflictingConstraint    Code = "CONFLICTING_CONSTRAINT"

	// Solver failures
	ErrCodeDiamondConflict   Code = "DIAMOND_CONFLICT"
	ErrCodeUnsatisfiable     Code = "UNSATISFIABLE"
	ErrCodeCyclicDependency  Code = "CYCLIC_DEPENDENCY"
	ErrCodeUnknownCompiler   Code = "UNKNOWN_COMPILER"
	ErrCodeConflictDeclared  Code = "CONFLICT_DECLARED"
	ErrCodeResolutionAborted Code = "RESOLUTION_ABORTED"

	// Input errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"

	// Infrastructure errors
	ErrCodeIO       Code = "IO_ERROR"
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
