// Package errors holds the error taxonomy shared by the storage engine and
// its HTTP surface.
//
// This file provides:
// - Sentinel errors grouped by category
// - Error category checking functions
// - ErrorToCode / HTTPStatus mapping
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Response codes - carried in JSON error bodies
// ============================================================================

const (
	CodeUnknown        int32 = 1
	CodeInvalidRequest int32 = 4
	CodeNotFound       int32 = 5
	CodeInternal       int32 = 7
	CodeTooLarge       int32 = 9
	CodeUnsupported    int32 = 10
	CodeOverloaded     int32 = 11
	CodeNotReady       int32 = 12
	CodeTimeout        int32 = 13
	CodeRateLimited    int32 = 14
	CodeStorage        int32 = 15
)

// CodeName returns a human-readable name for an error code.
func CodeName(code int32) string {
	switch code {
	case CodeUnknown:
		return "Unknown"
	case CodeInvalidRequest:
		return "InvalidRequest"
	case CodeNotFound:
		return "NotFound"
	case CodeInternal:
		return "Internal"
	case CodeTooLarge:
		return "TooLarge"
	case CodeUnsupported:
		return "UnsupportedMediaType"
	case CodeOverloaded:
		return "Overloaded"
	case CodeNotReady:
		return "NotReady"
	case CodeTimeout:
		return "Timeout"
	case CodeRateLimited:
		return "RateLimited"
	case CodeStorage:
		return "Storage"
	default:
		return fmt.Sprintf("Code(%d)", code)
	}
}

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Not found errors
	ErrNotFound          = errors.New("not found")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrRecordingNotFound = errors.New("recording not found")

	// Validation errors
	ErrInvalidChunk         = errors.New("invalid chunk")
	ErrInvalidRange         = errors.New("invalid time range")
	ErrInvalidName          = errors.New("invalid name")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrMissingField         = errors.New("missing required field")
	ErrMalformedBody        = errors.New("malformed request body")
	ErrWindowTooLarge       = errors.New("window too large")
	ErrBodyTooLarge         = errors.New("request body too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrDuplicateChunk signals an existing (recording, chunk start) key
	// inside the storage layer. Ingest reports it as a status, never as an error.
	ErrDuplicateChunk = errors.New("duplicate chunk")

	// Storage errors
	ErrDatabase   = errors.New("database error")
	ErrOverloaded = errors.New("ingest overloaded")
	ErrNotReady   = errors.New("storage not ready")
	ErrTimeout    = errors.New("timeout")
	ErrClosed     = errors.New("storage closed")

	// ErrRateLimited rejects a client that sent too many invalid requests.
	ErrRateLimited = errors.New("rate limited")

	// Internal errors
	ErrInternal = errors.New("internal error")
	ErrExport   = errors.New("export error")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// New is a convenience wrapper for errors.New
var New = errors.New

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPatientNotFound) ||
		errors.Is(err, ErrRecordingNotFound)
}

// IsValidation returns true if err was caused by client input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidChunk) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrMalformedBody) ||
		errors.Is(err, ErrWindowTooLarge) ||
		errors.Is(err, ErrBodyTooLarge) ||
		errors.Is(err, ErrUnsupportedMediaType)
}

// IsRetriable returns true if the error is potentially retriable.
// Ingestion is idempotent per chunk key, so a retried chunk is safe.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrDatabase) ||
		errors.Is(err, ErrOverloaded) ||
		errors.Is(err, ErrNotReady) ||
		errors.Is(err, ErrTimeout)
}

// ============================================================================
// Error to code mapping
// ============================================================================

// ErrorToCode maps a sentinel error to its response code.
func ErrorToCode(err error) int32 {
	if err == nil {
		return CodeUnknown
	}

	switch {
	case IsNotFound(err):
		return CodeNotFound
	case Is(err, ErrBodyTooLarge), Is(err, ErrWindowTooLarge):
		return CodeTooLarge
	case Is(err, ErrUnsupportedMediaType):
		return CodeUnsupported
	case IsValidation(err):
		return CodeInvalidRequest
	case Is(err, ErrOverloaded):
		return CodeOverloaded
	case Is(err, ErrNotReady), Is(err, ErrClosed):
		return CodeNotReady
	case Is(err, ErrTimeout):
		return CodeTimeout
	case Is(err, ErrRateLimited):
		return CodeRateLimited
	case Is(err, ErrDatabase):
		return CodeStorage
	default:
		return CodeInternal
	}
}

// CodeToError maps a response code back to a sentinel error (for clients).
func CodeToError(code int32) error {
	switch code {
	case CodeInvalidRequest:
		return ErrInvalidChunk
	case CodeNotFound:
		return ErrNotFound
	case CodeTooLarge:
		return ErrWindowTooLarge
	case CodeUnsupported:
		return ErrUnsupportedMediaType
	case CodeOverloaded:
		return ErrOverloaded
	case CodeNotReady:
		return ErrNotReady
	case CodeTimeout:
		return ErrTimeout
	case CodeRateLimited:
		return ErrRateLimited
	case CodeStorage:
		return ErrDatabase
	default:
		return ErrInternal
	}
}

// HTTPStatus maps an error to the HTTP status the server answers with.
func HTTPStatus(err error) int {
	switch ErrorToCode(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTooLarge:
		if Is(err, ErrBodyTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusUnprocessableEntity
	case CodeUnsupported:
		return http.StatusUnsupportedMediaType
	case CodeInvalidRequest:
		if Is(err, ErrMalformedBody) || Is(err, ErrInvalidRange) {
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	case CodeOverloaded, CodeNotReady:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Database tags a backend error with ErrDatabase while keeping the
// driver error reachable through errors.As.
func Database(err error, op string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDatabase, err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewNotFound creates a not-found error with context.
func NewNotFound(entityType, identifier string) error {
	return fmt.Errorf("%s '%s': %w", entityType, identifier, ErrNotFound)
}

// NewRecordingNotFound reports a recording with no stored samples.
func NewRecordingNotFound(patientID, recordingID string) error {
	return fmt.Errorf("recording '%s' of patient '%s': %w", recordingID, patientID, ErrRecordingNotFound)
}

// NewPatientNotFound reports a patient with no stored samples.
func NewPatientNotFound(patientID string) error {
	return fmt.Errorf("patient '%s': %w", patientID, ErrPatientNotFound)
}

// NewInvalidChunk creates a chunk validation error.
func NewInvalidChunk(field, reason string) error {
	return fmt.Errorf("%s: %s: %w", field, reason, ErrInvalidChunk)
}

// NewValidation creates a configuration validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddChunk adds a chunk field error.
func (v *ValidationErrors) AddChunk(field, reason string) {
	v.Errors = append(v.Errors, NewInvalidChunk(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap exposes every collected error to errors.Is/As.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
