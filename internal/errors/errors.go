package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrExpenseNotFound is returned when no expense matches an (id, userId) key.
	ErrExpenseNotFound = errors.New("expense not found")
	// ErrInvoiceNotFound is returned when no invoice matches an (id, userId) key.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrAttachmentNotFound is returned when a record has no such attachment.
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrInvalidIntent is returned when an action form carries an unknown intent.
	ErrInvalidIntent = errors.New("invalid intent")
	// ErrUnauthorized is returned when no valid session accompanies a request.
	ErrUnauthorized = errors.New("unauthorized")
)

// InvalidInputError reports a failed form decode, field by field.
type InvalidInputError struct {
	Fields map[string]string
}

func (e *InvalidInputError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid input"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// NewInvalidInput creates an InvalidInputError for the given fields.
func NewInvalidInput(fields map[string]string) *InvalidInputError {
	return &InvalidInputError{Fields: fields}
}

// AsInvalidInput unwraps err into an InvalidInputError if it is one.
func AsInvalidInput(err error) (*InvalidInputError, bool) {
	var inv *InvalidInputError
	if errors.As(err, &inv) {
		return inv, true
	}
	return nil, false
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     map[string]string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:  e.Message,
		Code:   e.Code,
		Fields: e.Fields,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	if inv, ok := AsInvalidInput(err); ok {
		httpErr := NewHTTPError(http.StatusUnprocessableEntity, inv.Error(), "INVALID_INPUT")
		httpErr.Fields = inv.Fields
		return httpErr
	}
	switch {
	case errors.Is(err, ErrExpenseNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "EXPENSE_NOT_FOUND")
	case errors.Is(err, ErrInvoiceNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "INVOICE_NOT_FOUND")
	case errors.Is(err, ErrAttachmentNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "ATTACHMENT_NOT_FOUND")
	case errors.Is(err, ErrInvalidIntent):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_INTENT")
	case errors.Is(err, ErrUnauthorized):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "UNAUTHORIZED")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
