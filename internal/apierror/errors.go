package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed call to the inventory API
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindNetwork    Kind = "network"
	KindServer     Kind = "server"
)

// Error is the tagged failure returned by every inventory API call
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(kind Kind, statusCode int, message string, err error) *Error {
	return &Error{
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// Validation builds a client-side validation failure that never reached the API
func Validation(message string) *Error {
	return New(KindValidation, 0, message, nil)
}

// Network wraps a transport or decoding failure
func Network(message string, err error) *Error {
	return New(KindNetwork, 0, message, err)
}

// FromStatus classifies a non-2xx response
func FromStatus(statusCode int, message string) *Error {
	if message == "" {
		message = http.StatusText(statusCode)
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return New(KindAuth, statusCode, message, nil)
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return New(KindValidation, statusCode, message, nil)
	default:
		return New(KindServer, statusCode, message, nil)
	}
}

// KindOf returns the kind of err, or KindNetwork for untagged errors
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindNetwork
}

// IsAuth reports whether err is an authentication failure
func IsAuth(err error) bool {
	return err != nil && KindOf(err) == KindAuth
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

// MessageOf returns the user-facing message carried by err
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
