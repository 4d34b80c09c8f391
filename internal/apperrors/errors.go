package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed domain error with a stable code surfaced to clients.
// Internal detail lives in Err and is logged, never echoed.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches an underlying cause to a fresh copy of base.
func Wrap(base *Error, err error) *Error {
	clone := *base
	clone.Err = err
	return &clone
}

// WithMessage returns a copy of base with the client-facing message replaced.
func WithMessage(base *Error, message string) *Error {
	clone := *base
	clone.Message = message
	return &clone
}

// The closed error taxonomy. Every failure that crosses the API boundary
// is one of these.
var (
	ErrValidation      = New("VALIDATION_ERROR", http.StatusBadRequest, "invalid request")
	ErrFileNotFound    = New("FILE_NOT_FOUND", http.StatusNotFound, "file not found or expired")
	ErrInvalidPassword = New("INVALID_PASSWORD", http.StatusUnauthorized, "password required or incorrect")
	ErrRateLimited     = New("RATE_LIMITED", http.StatusTooManyRequests, "too many attempts, try again later")
	ErrAccessDenied    = New("ACCESS_DENIED", http.StatusForbidden, "file is no longer available")
	ErrScanPending     = New("SCAN_PENDING", http.StatusAccepted, "file is being scanned, retry shortly")
	ErrUploadFailed    = New("UPLOAD_FAILED", http.StatusInternalServerError, "upload could not be completed")
	ErrStorage         = New("STORAGE_ERROR", http.StatusInternalServerError, "storage operation failed")
)

// FromError normalises any error into an *Error; unknown errors become
// STORAGE_ERROR so internal messages never leak.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(ErrStorage, err)
}

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
