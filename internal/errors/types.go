// Package errors provides the error types of jampass: the structured
// JampassError returned for hard failures and the Diagnostic taxonomy the
// compiler records for everything it recovers from.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeFileNotFound   = "ERR_FILE_NOT_FOUND"
	ErrCodeReadFailed     = "ERR_READ_FAILED"
	ErrCodeWriteFailed    = "ERR_WRITE_FAILED"
	ErrCodeBuildFailed    = "ERR_BUILD_FAILED"
	ErrCodeConfigInvalid  = "ERR_CONFIG_INVALID"
	ErrCodeDataLoadFailed = "ERR_DATA_LOAD_FAILED"
)

// JampassError is a structured error type with context.
type JampassError struct {
	Type      ErrorType
	Code      string
	Message   string
	Cause     error
	Component string
	FilePath  string
	Line      int
}

// Error implements the error interface.
func (e *JampassError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *JampassError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *JampassError) Is(target error) bool {
	var t *JampassError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithLocation adds file location information.
func (e *JampassError) WithLocation(filePath string, line int) *JampassError {
	e.FilePath = filePath
	e.Line = line

	return e
}

// WithCause attaches the underlying error.
func (e *JampassError) WithCause(cause error) *JampassError {
	e.Cause = cause

	return e
}

// WithComponent adds component context.
func (e *JampassError) WithComponent(component string) *JampassError {
	e.Component = component

	return e
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *JampassError {
	return &JampassError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *JampassError {
	return &JampassError{
		Type:    ErrorTypeBuild,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *JampassError {
	return &JampassError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// IsIOError checks if an error is I/O related.
func IsIOError(err error) bool {
	var je *JampassError
	if errors.As(err, &je) {
		return je.Type == ErrorTypeIO
	}

	return false
}
