package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the kind of failure. Tests assert on codes, never on messages.
type ErrorCode string

const (
	// General errors
	ErrUnknown       ErrorCode = "UNKNOWN"
	ErrInternal      ErrorCode = "INTERNAL"
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrCancelled     ErrorCode = "CANCELLED"
	ErrNotConfigured ErrorCode = "NOT_CONFIGURED"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"
	ErrConfigSave  ErrorCode = "CONFIG_SAVE"

	// Sync engine errors
	ErrValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrSymlinkDepthExceeded ErrorCode = "SYMLINK_DEPTH_EXCEEDED"
	ErrIO                   ErrorCode = "IO_FAILURE"
	ErrManifestInvariant    ErrorCode = "MANIFEST_INVARIANT"

	// Profile errors
	ErrProfileNotFound         ErrorCode = "PROFILE_NOT_FOUND"
	ErrProfileExists           ErrorCode = "PROFILE_EXISTS"
	ErrProfileDeletionOfActive ErrorCode = "PROFILE_DELETION_OF_ACTIVE"

	// Remote errors
	ErrRemoteMismatch ErrorCode = "REMOTE_MISMATCH"
	ErrRemoteAPI      ErrorCode = "REMOTE_API"
	ErrGitFailure     ErrorCode = "GIT_FAILURE"
	ErrMergeConflict  ErrorCode = "MERGE_CONFLICT"
)

// DotstateError represents a structured error with code and details
type DotstateError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *DotstateError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *DotstateError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *DotstateError) Is(target error) bool {
	var targetErr *DotstateError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new DotstateError with the given code and message
func New(code ErrorCode, message string) *DotstateError {
	return &DotstateError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new DotstateError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *DotstateError {
	return &DotstateError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a DotstateError
func Wrap(err error, code ErrorCode, message string) *DotstateError {
	if err == nil {
		return nil
	}
	return &DotstateError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *DotstateError {
	if err == nil {
		return nil
	}
	return &DotstateError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// IO wraps a filesystem failure, recording the operation and the path it touched.
func IO(err error, op, path string) *DotstateError {
	if err == nil {
		return nil
	}
	return Wrapf(err, ErrIO, "%s %s", op, path).
		WithDetail("op", op).
		WithDetail("path", path)
}

// Validation creates a VALIDATION_FAILED error carrying a user-facing message.
func Validation(format string, args ...interface{}) *DotstateError {
	return Newf(ErrValidationFailed, format, args...)
}

// WithDetail adds a detail to the error
func (e *DotstateError) WithDetail(key string, value interface{}) *DotstateError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *DotstateError) WithDetails(details map[string]interface{}) *DotstateError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var dsErr *DotstateError
	if errors.As(err, &dsErr) {
		return dsErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a DotstateError
func GetErrorCode(err error) ErrorCode {
	var dsErr *DotstateError
	if errors.As(err, &dsErr) {
		return dsErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a DotstateError
func GetErrorDetails(err error) map[string]interface{} {
	var dsErr *DotstateError
	if errors.As(err, &dsErr) {
		return dsErr.Details
	}
	return nil
}

// UserMessage returns the human part of an error without the code prefix.
func UserMessage(err error) string {
	var dsErr *DotstateError
	if errors.As(err, &dsErr) {
		return dsErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
