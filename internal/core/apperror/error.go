// Package apperror provides structured error handling for the offline agent.
// Every error that crosses a component boundary is either an AppError or wraps one.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeStorage  = "STORAGE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeBusinessRule   = "BUSINESS_RULE_VIOLATION"
	CodeDocumentSynced = "DOCUMENT_SYNCED"
	CodeInvalidState   = "INVALID_STATE"
	CodeAgentMismatch  = "AGENT_MISMATCH"
	CodeReserveOff     = "RESERVATION_DISABLED"

	// Remote endpoint errors (502, 503)
	CodeSync    = "SYNC_ERROR"
	CodeOffline = "OFFLINE"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict    = "CONFLICT"
	CodeSyncRunning = "SYNC_IN_PROGRESS"
)

// AppError is the standard error type for the agent.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, document ids, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewValidationList creates a validation error carrying every failed rule.
// The messages are kept in Details["errors"] in the order they were found.
func NewValidationList(message string, messages []string) *AppError {
	list := make([]string, len(messages))
	copy(list, messages)
	return NewValidation(message).WithDetail("errors", list)
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewDocumentSynced is returned when a mutation targets a document that the
// server already owns.
func NewDocumentSynced(docType, localID string) *AppError {
	return &AppError{
		Code:       CodeDocumentSynced,
		Message:    "Document is already synchronized and cannot be modified",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"doc_type": docType, "local_id": localID},
	}
}

// NewInvalidState creates an error for a forbidden state transition.
func NewInvalidState(docType, from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidState,
		Message:    fmt.Sprintf("cannot move %s from %s to %s", docType, from, to),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"doc_type": docType, "from": from, "to": to},
	}
}

// NewStorage wraps a persistence failure (503).
func NewStorage(op, collection string, err error) *AppError {
	return &AppError{
		Code:       CodeStorage,
		Message:    fmt.Sprintf("storage %s failed", op),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"op": op, "collection": collection},
		Err:        err,
	}
}

// NewSync wraps a failure reported by, or while reaching, the remote endpoint (502).
func NewSync(message string, err error) *AppError {
	return &AppError{
		Code:       CodeSync,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewOffline is returned when an operation needs connectivity that is not available.
func NewOffline() *AppError {
	return &AppError{
		Code:       CodeOffline,
		Message:    "remote endpoint unreachable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// NewSyncInProgress is returned when a sync pass is requested while another runs.
func NewSyncInProgress() *AppError {
	return &AppError{
		Code:       CodeSyncRunning,
		Message:    "Synchronization already in progress",
		HTTPStatus: http.StatusConflict,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether the error chain holds an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsValidation checks if error is CodeValidation
func IsValidation(err error) bool {
	return HasCode(err, CodeValidation)
}

// ValidationMessages returns the list attached by NewValidationList, or nil.
func ValidationMessages(err error) []string {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Details == nil {
		return nil
	}
	list, _ := appErr.Details["errors"].([]string)
	return list
}
