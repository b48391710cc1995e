package errors

import (
	"fmt"
	"net/http"
)

const (
	// InternalMessage is what clients see for any failure that is not theirs to fix.
	InternalMessage = "Error interno del servidor."
	// TooLargeMessage answers bodies over the configured size limit.
	TooLargeMessage = "El cuerpo de la solicitud es demasiado grande."
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error with a message that is safe to show to clients.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrConflict:
		return http.StatusConflict
	case ErrTooManyRequests:
		return http.StatusTooManyRequests
	case ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrConflict
	ErrTooManyRequests
	ErrInternal
	ErrPayloadTooLarge
)

// Error constructors
func NewNotFound(message string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: message,
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewConflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

// NewInternal hides err behind message. err is kept for logging only.
func NewInternal(message string, err error) *AppError {
	if message == "" {
		message = InternalMessage
	}
	return &AppError{
		Code:    ErrInternal,
		Message: message,
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "No autorizado.",
		Err:     err,
	}
}

func TooManyRequests() *AppError {
	return &AppError{
		Code:    ErrTooManyRequests,
		Message: "Demasiadas solicitudes. Intenta de nuevo en unos segundos.",
	}
}

func PayloadTooLarge(err error) *AppError {
	return &AppError{
		Code:    ErrPayloadTooLarge,
		Message: TooLargeMessage,
		Err:     err,
	}
}
