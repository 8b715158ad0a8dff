// Package errors provides the standardized error taxonomy used across the
// Store, FileStore, Indexer, Search, Orchestrator, and HTTP layers.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCode identifies which branch of the taxonomy an error belongs to.
type ErrorCode string

// Taxonomy per spec §7.
const (
	ErrorCodeValidation     ErrorCode = "VALIDATION_ERROR"
	ErrorCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrorCodeConflict       ErrorCode = "CONFLICT"
	ErrorCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrorCodeAdapter        ErrorCode = "ADAPTER_ERROR"
	ErrorCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the unified error shape returned across the HTTP surface.
type StandardError struct {
	ErrorInfo ErrorDetails `json:"error"`
}

// ErrorDetails carries the machine-readable code plus a human message.
type ErrorDetails struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *StandardError) Error() string {
	return e.ErrorInfo.Message
}

// NewValidationError builds a 400-mapped error.
func NewValidationError(message string, details interface{}) *StandardError {
	return &StandardError{ErrorInfo: ErrorDetails{Code: ErrorCodeValidation, Message: message, Details: details}}
}

// NewNotFoundError builds a 404-mapped error.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{ErrorInfo: ErrorDetails{
		Code:    ErrorCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", resource, id),
	}}
}

// NewConflictError builds a 409-mapped error (unique-constraint or lock-timeout).
func NewConflictError(message string) *StandardError {
	return &StandardError{ErrorInfo: ErrorDetails{Code: ErrorCodeConflict, Message: message}}
}

// NewPayloadTooLargeError builds a 413-mapped error.
func NewPayloadTooLargeError(sizeBytes, maxBytes int64) *StandardError {
	return &StandardError{ErrorInfo: ErrorDetails{
		Code:    ErrorCodePayloadTooLarge,
		Message: fmt.Sprintf("payload of %d bytes exceeds limit of %d bytes", sizeBytes, maxBytes),
	}}
}

// AdapterError is surfaced per-agent in a turn's result payload, never as an
// HTTP-level error — it does not abort sibling adapters or the turn (spec §7).
type AdapterError struct {
	Provider string `json:"provider"`
	Status   int    `json:"status,omitempty"`
	Detail   string `json:"detail"`
}

func (e *AdapterError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("adapter %s: status %d: %s", e.Provider, e.Status, e.Detail)
	}
	return fmt.Sprintf("adapter %s: %s", e.Provider, e.Detail)
}

// NewInternalError builds a 500-mapped error with a sanitised detail.
func NewInternalError(message string, cause error) *StandardError {
	details := map[string]interface{}{}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return &StandardError{ErrorInfo: ErrorDetails{Code: ErrorCodeInternal, Message: message, Details: details}}
}

// HTTPStatus maps a StandardError to its HTTP status code.
func (e *StandardError) HTTPStatus() int {
	switch e.ErrorInfo.Code {
	case ErrorCodeValidation:
		return http.StatusBadRequest
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeConflict:
		return http.StatusConflict
	case ErrorCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorCodeAdapter:
		return http.StatusBadGateway
	case ErrorCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteHTTPError writes the error as a JSON HTTP response.
func WriteHTTPError(w http.ResponseWriter, err error) {
	se, ok := err.(*StandardError)
	if !ok {
		se = NewInternalError("internal error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(se.HTTPStatus())
	body, marshalErr := json.Marshal(se)
	if marshalErr != nil {
		return
	}
	_, _ = w.Write(body)
}

// IsNotFound reports whether err is a StandardError tagged NotFound.
func IsNotFound(err error) bool {
	se, ok := err.(*StandardError)
	return ok && se.ErrorInfo.Code == ErrorCodeNotFound
}

// IsConflict reports whether err is a StandardError tagged Conflict.
func IsConflict(err error) bool {
	se, ok := err.(*StandardError)
	return ok && se.ErrorInfo.Code == ErrorCodeConflict
}
