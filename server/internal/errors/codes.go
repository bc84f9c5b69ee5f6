package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/hrygo/conceptlens/plugin/ai/concept"
)

// ErrorCode represents a specific error type of the concept API.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates the referenced concept does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeServiceUnavailable indicates no embedding could be obtained.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeCorpusInconsistent indicates stored embeddings of different dimensions.
	ErrCodeCorpusInconsistent ErrorCode = "CORPUS_INCONSISTENT"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal indicates an unexpected failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

var httpStatus = map[ErrorCode]int{
	ErrCodeInvalidArgument:    http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeRateLimitExceeded:  http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeCorpusInconsistent: http.StatusInternalServerError,
	ErrCodeContextCanceled:    499,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeInternal:           http.StatusInternalServerError,
}

// APIError represents a structured error returned by the concept API.
type APIError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *APIError) WithContext(key string, value any) *APIError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// HTTPStatus returns the status code the error is served with.
func (e *APIError) HTTPStatus() int {
	if status, ok := httpStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Convenience constructors for common error types.

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *APIError {
	return &APIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *APIError {
	return &APIError{Code: ErrCodeNotFound, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *APIError {
	return &APIError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// ServiceUnavailable creates a service unavailable error.
func ServiceUnavailable(msg string) *APIError {
	return &APIError{Code: ErrCodeServiceUnavailable, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string, cause error) *APIError {
	return &APIError{Code: ErrCodeInternal, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *APIError {
	return &APIError{Code: code, Message: msg, Cause: cause}
}

// FromError maps a service error onto an APIError. Errors that already are
// APIErrors are returned as is.
func FromError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	var configErr *concept.ConfigurationError
	var mismatchErr *concept.DimensionMismatchError
	switch {
	case stderrors.Is(err, concept.ErrEmptyTitle),
		stderrors.Is(err, concept.ErrSameConcept),
		stderrors.Is(err, concept.ErrEmptyEmbedding):
		return Wrap(err, ErrCodeInvalidArgument, "invalid concept")
	case stderrors.Is(err, concept.ErrConceptNotFound):
		return Wrap(err, ErrCodeNotFound, "concept not found")
	case stderrors.As(err, &configErr):
		return Wrap(err, ErrCodeServiceUnavailable, "embedding provider unavailable")
	case stderrors.As(err, &mismatchErr):
		return Wrap(err, ErrCodeCorpusInconsistent, "embedding dimensions do not match").
			WithContext("left", mismatchErr.Left).
			WithContext("right", mismatchErr.Right)
	case stderrors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "operation timed out")
	case stderrors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeContextCanceled, "operation canceled")
	default:
		return Internal("internal error", err)
	}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an APIError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Code
	}
	return defaultCode
}
