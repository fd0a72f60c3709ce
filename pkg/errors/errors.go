package errors

import (
	"fmt"
)

// ErrorCode classifies coordination-layer failures. Every handler maps its
// failure into one of these; nothing here ever terminates the process.
type ErrorCode string

const (
	ErrCodeAuthFailed         ErrorCode = "AUTH_FAILED"
	ErrCodeMalformedMessage   ErrorCode = "MALFORMED_MESSAGE"
	ErrCodeUnknownPeer        ErrorCode = "UNKNOWN_PEER"
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// AppError carries a code, a client-safe message and optional context.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with an application error
func WrapError(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// Common error constructors
func NewAuthFailedError(message string) *AppError {
	return NewAppError(ErrCodeAuthFailed, message)
}

func NewMalformedMessageError(message string) *AppError {
	return NewAppError(ErrCodeMalformedMessage, message)
}

func NewUnknownPeerError(peerID string) *AppError {
	return NewAppError(ErrCodeUnknownPeer, fmt.Sprintf("peer %s not found", peerID))
}

func NewPersistenceError(err error) *AppError {
	return WrapError(err, ErrCodePersistenceFailure, "storage collaborator call failed")
}

func NewInvariantViolationError(message string) *AppError {
	return NewAppError(ErrCodeInvariantViolation, message)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded")
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	type unwrapper interface {
		Unwrap() error
	}

	if u, ok := err.(unwrapper); ok {
		return GetAppError(u.Unwrap())
	}

	return nil
}
