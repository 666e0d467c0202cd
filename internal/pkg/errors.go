package pkg

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors. Ownership misses deliberately surface as not-found rather than
// forbidden so callers cannot probe for the existence of other users' entities.
var (
	ErrUserNotFound   = NewAppError("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	ErrFileNotFound   = NewAppError("FILE_NOT_FOUND", "File not found", http.StatusNotFound)
	ErrFolderNotFound = NewAppError("FOLDER_NOT_FOUND", "Folder not found", http.StatusNotFound)
	ErrShareNotFound  = NewAppError("SHARE_NOT_FOUND", "Shared file not found or link expired", http.StatusNotFound)

	ErrDuplicateName = NewAppError("DUPLICATE_NAME", "An item with this name already exists in this location", http.StatusConflict)
	ErrQuotaExceeded = NewAppError("QUOTA_EXCEEDED", "Storage quota exceeded", http.StatusForbidden)

	// ErrQuotaUnderflow indicates a release that would push storage usage below
	// zero. That can only happen when the quota ledger and the file lifecycle
	// disagree, so it is surfaced instead of clamped.
	ErrQuotaUnderflow = NewAppError("QUOTA_UNDERFLOW", "Storage accounting underflow", http.StatusInternalServerError)

	// ErrCascadeIncomplete marks a multi-step cascade that failed partway.
	// The whole operation must be retried; partial completion is never success.
	ErrCascadeIncomplete = NewAppError("CASCADE_INCOMPLETE", "Cascade operation failed partway and must be retried", http.StatusInternalServerError)

	// ErrConflict is returned when an optimistic-concurrency check fails: the
	// entity changed between read and write and the update was rejected.
	ErrConflict = NewAppError("CONFLICT", "Entity was modified concurrently, retry the operation", http.StatusConflict)

	ErrInvalidToken     = NewAppError("INVALID_TOKEN", "Invalid or expired token", http.StatusUnauthorized)
	ErrValidationFailed = NewAppError("VALIDATION_FAILED", "Validation failed", http.StatusBadRequest)
	ErrInvalidInput     = NewAppError("INVALID_INPUT", "Invalid input data", http.StatusBadRequest)

	ErrFileTooLarge       = NewAppError("FILE_TOO_LARGE", "File size exceeds limit", http.StatusRequestEntityTooLarge)
	ErrInvalidFileType    = NewAppError("INVALID_FILE_TYPE", "File type not allowed", http.StatusBadRequest)
	ErrFileUploadFailed   = NewAppError("FILE_UPLOAD_FAILED", "File upload failed", http.StatusInternalServerError)
	ErrStorageProvider    = NewAppError("STORAGE_PROVIDER_ERROR", "Storage provider error", http.StatusInternalServerError)
	ErrRateLimitExceeded  = NewAppError("RATE_LIMIT_EXCEEDED", "Too many requests", http.StatusTooManyRequests)
	ErrInternalServer     = NewAppError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrDatabaseError      = NewAppError("DATABASE_ERROR", "Database error", http.StatusInternalServerError)
	ErrServiceUnavailable = NewAppError("SERVICE_UNAVAILABLE", "Service temporarily unavailable", http.StatusServiceUnavailable)
)

// AppError represents an application-specific error
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"status_code"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches AppErrors by code so sentinel comparisons survive WithDetails and
// WithCause copies.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.Code == appErr.Code
	}
	return false
}

// WithDetails returns a copy of the error with details attached.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

// WithCause returns a copy of the error with a cause attached.
func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

// NewAppError creates a new application error
func NewAppError(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// IsAppError checks if error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// WrapError wraps an error with an AppError
func WrapError(err error, code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Cause:      err,
	}
}
