package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a screenzoom error code.
type ErrorCode string

const (
	ErrInvalidEdit     ErrorCode = "INVALID_EDIT"
	ErrNotFound        ErrorCode = "NOT_FOUND"
	ErrAlreadyRunning  ErrorCode = "ALREADY_RUNNING"
	ErrInvalidSettings ErrorCode = "INVALID_SETTINGS"
	ErrCorruptDocument ErrorCode = "CORRUPT_DOCUMENT"
	ErrExportFailed    ErrorCode = "EXPORT_FAILED"
	ErrInternal        ErrorCode = "INTERNAL"
)

// Error represents a structured error with code and details.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewInvalidEdit creates an error for a malformed edit request. No mutation is applied.
func NewInvalidEdit(msg string) *Error {
	return &Error{
		Code:    ErrInvalidEdit,
		Message: msg,
	}
}

// NewNotFound creates an error for an edit that references a missing keyframe.
func NewNotFound(kind, id string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s keyframe not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewAlreadyRunning creates an error for a second export start on the same project.
func NewAlreadyRunning(projectID string) *Error {
	return &Error{
		Code:    ErrAlreadyRunning,
		Message: fmt.Sprintf("export already running for project %s", projectID),
		Details: map[string]any{"project_id": projectID},
	}
}

// NewInvalidSettings creates an error for unsupported render settings.
func NewInvalidSettings(msg string) *Error {
	return &Error{
		Code:    ErrInvalidSettings,
		Message: msg,
	}
}

// NewCorruptDocument creates an error for a persisted timeline that violates the model.
func NewCorruptDocument(msg string) *Error {
	return &Error{
		Code:    ErrCorruptDocument,
		Message: msg,
	}
}

// NewExportFailed wraps an encoder/decoder failure that ended an export run.
func NewExportFailed(frame int, err error) *Error {
	msg := "export failed"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:    ErrExportFailed,
		Message: msg,
		Details: map[string]any{"frame": frame},
		Err:     err,
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// Is checks if an error (or anything it wraps) is an Error with the given code.
func Is(err error, code ErrorCode) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}
