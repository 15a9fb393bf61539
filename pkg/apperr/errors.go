package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error kinds
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("resource conflict")
	ErrIllegalTransition  = errors.New("illegal state transition")
	ErrDomainRule         = errors.New("domain rule violation")
	ErrRateLimited        = errors.New("rate limited")
	ErrTimeout            = errors.New("timeout")
	ErrInternal           = errors.New("internal server error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
)

// FieldError localizes a message to a request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is an application error with an HTTP status class.
type Error struct {
	Err        error        `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	StatusCode int          `json:"status_code"`
	Fields     []FieldError `json:"fields,omitempty"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithField appends a field-level detail.
func (e *Error) WithField(field, message string) *Error {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// Wrap attaches an underlying cause. The cause is for server logs only and
// is never rendered to clients.
func Wrap(err error, code, message string, statusCode int) *Error {
	return &Error{Err: err, Code: code, Message: message, StatusCode: statusCode}
}

func NotFound(resource string) *Error {
	return &Error{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthenticated(message string) *Error {
	return &Error{
		Err:        ErrUnauthenticated,
		Code:       "UNAUTHENTICATED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *Error {
	return &Error{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func InvalidInput(message string) *Error {
	return &Error{
		Err:        ErrInvalidInput,
		Code:       "INVALID_INPUT",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *Error {
	return &Error{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func IllegalTransition(from, to string) *Error {
	return &Error{
		Err:        ErrIllegalTransition,
		Code:       "ILLEGAL_STATE_TRANSITION",
		Message:    fmt.Sprintf("cannot transition from %s to %s", from, to),
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func DomainRule(message string) *Error {
	return &Error{
		Err:        ErrDomainRule,
		Code:       "DOMAIN_RULE_VIOLATION",
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func RateLimited(message string) *Error {
	return &Error{
		Err:        ErrRateLimited,
		Code:       "RATE_LIMITED",
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

func Timeout(message string) *Error {
	return &Error{
		Err:        ErrTimeout,
		Code:       "TIMEOUT",
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
	}
}

func Internal(message string) *Error {
	return &Error{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// Validation builds an InvalidInput error with field details.
func Validation(fields []FieldError) *Error {
	return &Error{
		Err:        ErrInvalidInput,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Fields:     fields,
	}
}

func InvalidCredentials() *Error {
	return &Error{
		Err:        ErrInvalidCredentials,
		Code:       "INVALID_CREDENTIALS",
		Message:    "invalid username or password",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenExpired() *Error {
	return &Error{
		Err:        ErrTokenExpired,
		Code:       "TOKEN_EXPIRED",
		Message:    "token has expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *Error {
	return &Error{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		StatusCode: http.StatusUnauthorized,
	}
}

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert err to a specific type.
func As(err error, target any) bool {
	return errors.As(err, target)
}
