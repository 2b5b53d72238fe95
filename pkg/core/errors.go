package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, wait_timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	msg := e.Message
	if loc, ok := e.Details["locator"]; ok {
		msg = fmt.Sprintf("%s [%v]", msg, loc)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches any ExecutionError with the same code, so derived copies
// (WithCause, WithDetails) still match the predefined sentinels.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Assertion errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrTextMismatch = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "text_mismatch",
		Message:  "text does not match expected value",
	}
	ErrAssertionFailed = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "assertion_failed",
		Message:  "assertion failed",
	}

	// Index errors
	ErrIndexOutOfRange = &ExecutionError{
		Category: ErrCategoryIndex,
		Code:     "index_out_of_range",
		Message:  "index out of range",
	}

	// Timeout errors
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}
	ErrSwipeExhausted = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "swipe_exhausted",
		Message:  "element not found after swiping",
	}

	// Connection errors
	ErrServerUnreachable = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "server_unreachable",
		Message:  "could not connect to automation server",
	}

	// Device errors
	ErrDeviceCommandFailed = &ExecutionError{
		Category: ErrCategoryDevice,
		Code:     "device_command_failed",
		Message:  "device command failed",
	}
	ErrNoDeviceShell = &ExecutionError{
		Category: ErrCategoryDevice,
		Code:     "no_device_shell",
		Message:  "no device shell channel attached",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_required",
		Message:  "missing required field",
	}
)

// CategoryOf returns the category of the first ExecutionError in err's chain.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}
	var e *ExecutionError
	if errors.As(err, &e) {
		return e.Category
	}
	return ErrCategoryUnknown
}
