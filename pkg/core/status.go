package core

// Status is the execution status of a scenario or a step within it.
type Status int

const (
	StatusPending Status = iota // Not yet started
	StatusRunning               // Currently executing
	StatusPassed                // Completed successfully
	StatusFailed                // Assertion failed (element missing, text mismatch, bad index)
	StatusErrored               // Unexpected error (transport, device command, timeout)
	StatusSkipped               // Not run (not configured, or a previous step failed)
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name in reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal returns true if the status is a final state
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status does not count as a failure.
func (s Status) IsSuccess() bool {
	return s == StatusPassed || s == StatusSkipped
}

// StatusForError maps an error to the status it produces.
// Assertion and index errors are test failures; everything else is an error.
func StatusForError(err error) Status {
	if err == nil {
		return StatusPassed
	}
	switch CategoryOf(err) {
	case ErrCategoryAssertion, ErrCategoryIndex:
		return StatusFailed
	default:
		return StatusErrored
	}
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Element not found, text mismatch
	ErrCategoryTimeout                         // Wait or swipe budget exhausted
	ErrCategoryConnection                      // Server unreachable, session lost
	ErrCategoryDevice                          // adb / package manager failure
	ErrCategoryIndex                           // Positional index outside the enumerated range
	ErrCategoryConfig                          // Invalid configuration, missing required field
	ErrCategoryUnknown                         // Not an ExecutionError
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryIndex:
		return "index"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// MarshalText encodes the category by name in reports.
func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
