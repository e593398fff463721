package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeConfig represents a missing or invalid configuration
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeStorage represents graph store I/O and constraint failures
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeValidation represents malformed caller input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Configuration Errors

// ConfigurationError is returned when a backing store or provider is not configured
type ConfigurationError struct {
	*BaseError
	Component string
}

func NewConfigurationError(component string) *ConfigurationError {
	return &ConfigurationError{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("%s is not configured", component), nil),
		Component: component,
	}
}

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Storage Errors

// StorageError is returned when the graph store fails a read or write
type StorageError struct {
	*BaseError
	Operation string
}

func NewStorageError(operation string, err error) *StorageError {
	errType := ErrorTypeStorage
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		errType = ErrorTypeContext
	}
	return &StorageError{
		BaseError: NewBaseError(errType, fmt.Sprintf("storage operation failed: %s", operation), err),
		Operation: operation,
	}
}

// Validation Errors

// ValidationError is returned for malformed nodes, relationships or events
type ValidationError struct {
	*BaseError
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Helper functions

// IsErrorType checks if an error (or anything it wraps) is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	var baseErr *BaseError
	if stderrors.As(err, &baseErr) {
		return baseErr.Type == errType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	// Upserts are idempotent, so storage failures can be retried from scratch
	return IsErrorType(err, ErrorTypeStorage)
}
