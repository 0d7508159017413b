package export

import "fmt"

// Error is the base error type for export operations that fail before a
// task is created (invalid SQL, bad parameters).
type Error struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new export Error.
func NewError(message string, cause error) *Error {
	return &Error{Message: message, Cause: cause}
}

// FileSizeExceededError is returned when the estimated or actual export
// size is over the configured maximum.
type FileSizeExceededError struct {
	EstimatedBytes int64
	MaxBytes       int64
}

// Error implements the error interface.
func (e *FileSizeExceededError) Error() string {
	return fmt.Sprintf(
		"estimated file size (%.2f MB) exceeds maximum allowed (%.2f MB)",
		float64(e.EstimatedBytes)/(1024*1024),
		float64(e.MaxBytes)/(1024*1024),
	)
}

// ConcurrentTaskLimitError is returned when a user already has the
// maximum number of active export tasks.
type ConcurrentTaskLimitError struct {
	UserID string
	Limit  int
}

// Error implements the error interface.
func (e *ConcurrentTaskLimitError) Error() string {
	return fmt.Sprintf("maximum %d concurrent export tasks per user allowed", e.Limit)
}

// NewFileSizeExceededError creates a FileSizeExceededError.
func NewFileSizeExceededError(estimated, max int64) *FileSizeExceededError {
	return &FileSizeExceededError{EstimatedBytes: estimated, MaxBytes: max}
}

// NewConcurrentTaskLimitError creates a ConcurrentTaskLimitError.
func NewConcurrentTaskLimitError(userID string, limit int) *ConcurrentTaskLimitError {
	return &ConcurrentTaskLimitError{UserID: userID, Limit: limit}
}
