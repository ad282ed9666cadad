// Package errors defines the structured API error responses and the
// mapping from wizard errors onto them.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"sportsbet/internal/wizard"
)

// APIError is a structured API error response.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

// NewWithDetails creates a new APIError with additional details.
func NewWithDetails(statusCode int, errorCode, message string, details any) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message, Details: details}
}

// Predefined errors for the wizard's recoverable conditions.
var (
	ErrInvalidRequest = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrNoSelection    = New(http.StatusBadRequest, "NO_SELECTION", "A selection is required to proceed")
	ErrNotYetSupported = New(http.StatusUnprocessableEntity, "NOT_YET_SUPPORTED",
		"Soccer is the only currently available sport")
	ErrFetchInProgress = New(http.StatusConflict, "FETCH_IN_PROGRESS", "A fetch for this step is already running")
	ErrInvalidConfiguration = New(http.StatusBadRequest, "INVALID_CONFIGURATION",
		"Extraction configuration is invalid")
	ErrSessionNotFound = New(http.StatusNotFound, "SESSION_NOT_FOUND", "Wizard session not found")
	ErrInternalServer  = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

// FromWizard maps a wizard error to its API representation. Fetch
// failures become 502s carrying the stage so the client can offer a
// retry.
func FromWizard(err error) *APIError {
	var fetchErr *wizard.FetchError
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, wizard.ErrNoSelection):
		return ErrNoSelection
	case stderrors.Is(err, wizard.ErrNotYetSupported):
		return ErrNotYetSupported
	case stderrors.Is(err, wizard.ErrFetchInProgress):
		return ErrFetchInProgress
	case stderrors.Is(err, wizard.ErrInvalidConfiguration), stderrors.Is(err, wizard.ErrUnknownSport):
		return NewWithDetails(http.StatusBadRequest, "INVALID_CONFIGURATION",
			"Extraction configuration is invalid", err.Error())
	case stderrors.As(err, &fetchErr):
		return NewWithDetails(http.StatusBadGateway, "FETCH_FAILED",
			fmt.Sprintf("Data fetch for step %s failed", fetchErr.Stage), fetchErr.Cause.Error())
	default:
		return NewWithDetails(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR",
			"Internal server error", err.Error())
	}
}

// ValidationError describes one invalid request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrValidation creates a validation error with field details.
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
		ValidationError{Field: field, Message: message})
}

// InvalidRequestWithError creates an invalid request error with details.
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse wraps an APIError in the standard envelope.
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{Success: false, Error: err}
}

// Render implements render.Renderer.
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}
