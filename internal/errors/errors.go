// Package errors defines the structured errors returned by orbview operations.
package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/bane-dysta/Orbital-Viewer/internal/cube"
)

// ErrorCode is a stable, machine-readable error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"           // 404
	ErrFileNotFound      ErrorCode = "FILE_NOT_FOUND"      // 404
	ErrConflict          ErrorCode = "CONFLICT"            // 409
	ErrNameAlreadyExists ErrorCode = "NAME_ALREADY_EXISTS" // 409
	ErrFileTooLarge      ErrorCode = "FILE_TOO_LARGE"      // 413
	ErrUnsupportedFile   ErrorCode = "UNSUPPORTED_FILE"    // 415
	ErrFormat            ErrorCode = "FORMAT_ERROR"        // 422
	ErrPartialData       ErrorCode = "PARTIAL_DATA"        // 422
	ErrGroupLimit        ErrorCode = "GROUP_LIMIT"         // 422
	ErrCancelled         ErrorCode = "CANCELLED"           // 499
	ErrInternal          ErrorCode = "INTERNAL"            // 500
)

// ViewerError is a structured error with code, HTTP status, and details.
type ViewerError struct {
	Code    ErrorCode      `json:"code"`
	Status  int            `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ViewerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ViewerError {
	return &ViewerError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing session or group.
func NewNotFound(kind, identifier string) *ViewerError {
	return &ViewerError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing file on disk.
func NewFileNotFound(path string) *ViewerError {
	return &ViewerError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConflict creates a 409 error, used for stale generations.
func NewConflict(msg string) *ViewerError {
	return &ViewerError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewNameAlreadyExists creates a 409 error for session title collisions.
func NewNameAlreadyExists(title string) *ViewerError {
	return &ViewerError{
		Code:    ErrNameAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("session with title %q already exists", title),
		Details: map[string]any{"title": title},
	}
}

// NewFileTooLarge creates a 413 error when a file exceeds the size limit.
func NewFileTooLarge(name string, max int64) *ViewerError {
	return &ViewerError{
		Code:    ErrFileTooLarge,
		Status:  413,
		Message: fmt.Sprintf("file %s exceeds maximum size of %d bytes", name, max),
		Details: map[string]any{"name": name, "max_bytes": max},
	}
}

// NewUnsupportedFile creates a 415 error for files without a supported extension.
func NewUnsupportedFile(name string) *ViewerError {
	return &ViewerError{
		Code:    ErrUnsupportedFile,
		Status:  415,
		Message: fmt.Sprintf("unsupported file type: %s (expected .cub or .cube)", name),
		Details: map[string]any{"name": name},
	}
}

// NewFormatError creates a 422 error for malformed cube text.
// line is 1-based; zero omits it.
func NewFormatError(line int, field, expected, msg string) *ViewerError {
	details := map[string]any{"field": field}
	if line > 0 {
		details["line"] = line
	}
	if expected != "" {
		details["expected"] = expected
	}
	return &ViewerError{
		Code:    ErrFormat,
		Status:  422,
		Message: msg,
		Details: details,
	}
}

// NewPartialData creates a 422 error for a voxel section shorter than the grid.
func NewPartialData(want, got int) *ViewerError {
	return &ViewerError{
		Code:    ErrPartialData,
		Status:  422,
		Message: fmt.Sprintf("voxel data incomplete: got %d of %d values", got, want),
		Details: map[string]any{"want": want, "got": got},
	}
}

// NewGroupLimit creates a 422 error when a session already holds max groups.
func NewGroupLimit(max int) *ViewerError {
	return &ViewerError{
		Code:    ErrGroupLimit,
		Status:  422,
		Message: fmt.Sprintf("session already has the maximum of %d viewer groups", max),
		Details: map[string]any{"max_groups": max},
	}
}

// NewCancelled creates a 499 error for a cancelled or timed out request.
func NewCancelled(op string) *ViewerError {
	return &ViewerError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ViewerError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ViewerError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// FromCube converts errors from package cube into ViewerErrors.
// Other errors are returned unchanged.
func FromCube(err error) error {
	if err == nil {
		return nil
	}

	var tooLarge *cube.TooLargeError
	if stderrors.As(err, &tooLarge) {
		return NewFileTooLarge(tooLarge.Name, tooLarge.Limit)
	}

	var fe *cube.FormatError
	if stderrors.As(err, &fe) {
		var partial *cube.PartialDataWarning
		if stderrors.As(fe, &partial) {
			return NewPartialData(partial.Want, partial.Got)
		}
		line := 0
		if fe.Line >= 0 {
			line = fe.Line + 1
		}
		return NewFormatError(line, fe.Field, fe.Expected, fe.Error())
	}

	var partial *cube.PartialDataWarning
	if stderrors.As(err, &partial) {
		return NewPartialData(partial.Want, partial.Got)
	}
	return err
}

// Is checks if an error is a ViewerError with the given code.
func Is(err error, code ErrorCode) bool {
	var vErr *ViewerError
	if stderrors.As(err, &vErr) {
		return vErr.Code == code
	}
	return false
}
