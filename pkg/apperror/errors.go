package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // internal cause, never sent to the client
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// As returns the *AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

const (
	CodeValidation       = "VAL_001"
	CodeUnauthorized     = "AUTH_001"
	CodeInvalidSignature = "AUTH_002"
	CodeForbidden        = "AUTH_003"
	CodeInvalidToken     = "AUTH_004"
	CodeNotFound         = "RES_001"
	CodeConflict         = "RES_002"
	CodeBookUnavailable  = "RES_003"
	CodeGateway          = "GW_001"
	CodeInternal         = "SYS_001"
	CodeUnavailable      = "SYS_002"
	CodeRateLimited      = "RATE_001"
	CodeMethodNotAllowed = "HTTP_405"
	CodeRouteNotFound    = "HTTP_404"
)

// ---- Validation (VAL) ----

// Validation returns a VAL_001 error carrying a client-facing message.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrUnauthorized() *AppError {
	return New(CodeUnauthorized, "Authentication required", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "You are not allowed to perform this action", http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Resources (RES) ----

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ErrConflict is returned when a state transition lost a race or is not
// allowed from the current state.
func ErrConflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict)
}

func ErrBookUnavailable() *AppError {
	return New(CodeBookUnavailable, "One or more books are no longer available", http.StatusConflict)
}

// ---- Gateways (GW) ----

// ErrGateway reports a failure from an upstream provider. message is shown
// to the client.
func ErrGateway(message string, err error) *AppError {
	return Wrap(CodeGateway, message, http.StatusBadGateway, err)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- HTTP ----

func ErrMethodNotAllowed() *AppError {
	return New(CodeMethodNotAllowed, "Method not allowed", http.StatusMethodNotAllowed)
}

func ErrRouteNotFound() *AppError {
	return New(CodeRouteNotFound, "Route not found", http.StatusNotFound)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap(CodeInternal, "Encryption service failure", http.StatusInternalServerError, err)
}

func ErrServiceUnavailable(err error) *AppError {
	return Wrap(CodeUnavailable, "Service unavailable", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
