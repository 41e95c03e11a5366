package errors

import (
	"fmt"
)

// Fields carries structured context attached to an APIError.
type Fields map[string]any

// APIError is the error type returned across the engine's public contracts.
// Errors are identified by code rather than by sentinel comparison so a
// caller can branch on the condition without caring about the detail text.
type APIError interface {
	error
	Code() int
	Message() string
	SetDetail(str string, a ...any) APIError
	SetFields(f Fields) APIError
	GetFields() Fields
	WithError(err error) APIError
	Unwrap() error
}

type apiError struct {
	code    int
	message string
	detail  string
	fields  Fields
	cause   error
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("%d %s", e.code, e.message)
	if e.detail != "" {
		msg += ": " + e.detail
	}

	return msg
}

func (e *apiError) Code() int {
	return e.code
}

func (e *apiError) Message() string {
	return e.message
}

func (e *apiError) SetDetail(str string, a ...any) APIError {
	if len(a) > 0 {
		str = fmt.Sprintf(str, a...)
	}

	e.detail = str

	return e
}

func (e *apiError) SetFields(f Fields) APIError {
	e.fields = f

	return e
}

func (e *apiError) GetFields() Fields {
	return e.fields
}

func (e *apiError) WithError(err error) APIError {
	e.cause = err

	return e
}

func (e *apiError) Unwrap() error {
	return e.cause
}

func def(code int, message string) func() APIError {
	return func() APIError {
		return &apiError{
			code:    code,
			message: message,
		}
	}
}

// From returns err as an APIError, wrapping it as an internal server error
// when it is not one already.
func From(err error) APIError {
	if err == nil {
		return nil
	}

	if aerr, ok := err.(APIError); ok {
		return aerr
	}

	return ErrInternalServerError().WithError(err).SetDetail(err.Error())
}

// Code extracts the error code from err, or zero when err is not an APIError.
func Code(err error) int {
	if aerr, ok := err.(APIError); ok {
		return aerr.Code()
	}

	return 0
}

var (
	// Client-side conditions
	ErrInvalidRequest   = def(70400, "Invalid Request")
	ErrNotAuthorized    = def(70403, "Not Authorized")
	ErrNotFound         = def(70404, "Not Found")
	ErrRateLimited      = def(70429, "Rate Limited")
	ErrValidationFailed = def(70460, "Validation Failed")

	// Server-side conditions
	ErrInternalServerError = def(70500, "Internal Server Error")
	ErrPersistenceFailed   = def(70502, "Persistence Failed")
)
