// Package errors provides the standardized error taxonomy for the quickMARC service.
// Codec utilities return typed errors from this package; the record converter
// re-wraps them as QM_CONVERSION so callers only ever see one failure kind.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a standardized error code for the quickMARC service.
type ErrorCode string

const (
	// Codec errors
	QM_FORMAT             ErrorCode = "QM_FORMAT"             // Malformed value (e.g. MARC date-time)
	QM_INVALID_ARGUMENT   ErrorCode = "QM_INVALID_ARGUMENT"   // Illegal argument to a utility
	QM_UNSUPPORTED_FORMAT ErrorCode = "QM_UNSUPPORTED_FORMAT" // Record format/type outside the known set
	QM_CONVERSION         ErrorCode = "QM_CONVERSION"         // Record could not be converted

	// Request errors
	QM_VALIDATION  ErrorCode = "QM_VALIDATION"  // Content failed schema validation
	QM_BAD_REQUEST ErrorCode = "QM_BAD_REQUEST" // Bad request

	// Resource errors
	QM_NOT_FOUND ErrorCode = "QM_NOT_FOUND" // Record not found
	QM_CONFLICT  ErrorCode = "QM_CONFLICT"  // Optimistic version conflict

	// Server errors
	QM_INTERNAL    ErrorCode = "QM_INTERNAL"    // Internal server error
	QM_UNAVAILABLE ErrorCode = "QM_UNAVAILABLE" // Dependency unavailable
)

// Sentinels for errors.Is matching; an *Error matches a sentinel when the codes are equal.
var (
	ErrFormat            = &Error{Code: QM_FORMAT}
	ErrInvalidArgument   = &Error{Code: QM_INVALID_ARGUMENT}
	ErrUnsupportedFormat = &Error{Code: QM_UNSUPPORTED_FORMAT}
	ErrConversion        = &Error{Code: QM_CONVERSION}
	ErrValidation        = &Error{Code: QM_VALIDATION}
	ErrNotFound          = &Error{Code: QM_NOT_FOUND}
	ErrConflict          = &Error{Code: QM_CONFLICT}
)

// Error represents a standardized error.
type Error struct {
	Code          ErrorCode   `json:"code"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlationId,omitempty"`
	Tag           string      `json:"tag,omitempty"` // MARC field tag the failure relates to, when known
	Details       interface{} `json:"details,omitempty"`
	HTTPStatus    int         `json:"-"`
	Err           error       `json:"-"` // Underlying cause
}

// New creates a new Error with the specified code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatusCodeForCode(code),
	}
}

// Newf is New with a format string.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// NewWithDetails creates a new Error with the specified code, message, and details.
func NewWithDetails(code ErrorCode, message string, details interface{}) *Error {
	e := New(code, message)
	e.Details = details
	return e
}

// Wrap creates a new Error that chains cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	e := New(code, message)
	e.Err = cause
	return e
}

// Conversion wraps cause as a QM_CONVERSION error attributed to the given field tag.
// An empty tag means the failure is not tied to a single field.
func Conversion(tag string, cause error) *Error {
	msg := "record conversion failed"
	if tag != "" {
		msg = fmt.Sprintf("conversion of field %s failed", tag)
	}
	e := Wrap(QM_CONVERSION, msg, cause)
	e.Tag = tag
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != nil {
		msg = fmt.Sprintf("%s (details: %v)", msg, e.Details)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCorrelationID sets the correlation id and returns the receiver.
func (e *Error) WithCorrelationID(id string) *Error {
	e.CorrelationID = id
	return e
}

// CodeOf returns the code of the outermost *Error in err's chain, or QM_INTERNAL.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return QM_INTERNAL
}

// As converts any error to an *Error, wrapping non-taxonomy errors as QM_INTERNAL.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		if e.HTTPStatus == 0 {
			e.HTTPStatus = httpStatusCodeForCode(e.Code)
		}
		return e
	}
	return Wrap(QM_INTERNAL, "internal error", err)
}

// httpStatusCodeForCode maps error codes to HTTP status codes.
func httpStatusCodeForCode(code ErrorCode) int {
	switch code {
	case QM_VALIDATION, QM_BAD_REQUEST, QM_FORMAT, QM_INVALID_ARGUMENT, QM_UNSUPPORTED_FORMAT:
		return http.StatusBadRequest
	case QM_CONVERSION:
		return http.StatusUnprocessableEntity
	case QM_NOT_FOUND:
		return http.StatusNotFound
	case QM_CONFLICT:
		return http.StatusConflict
	case QM_UNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
