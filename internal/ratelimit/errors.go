package ratelimit

import (
	"fmt"
	"net/http"
)

// ServiceError carries the error taxonomy kind alongside an HTTP
// disposition, so transport code never has to re-derive a status code
// from a message string.
type ServiceError struct {
	Kind       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Error kinds, mirrored 1:1 against the error taxonomy.
const (
	KindInvalidInput  = "invalid_input"
	KindNoQuota       = "no_quota"
	KindInvalidConfig = "invalid_config"
	KindQueueFull     = "queue_full"
	KindShuttingDown  = "shutting_down"
	KindInternal      = "internal"
)

func NewInvalidInputError(message string) *ServiceError {
	return &ServiceError{Kind: KindInvalidInput, Message: message, StatusCode: http.StatusBadRequest}
}

func NewNoQuotaError(message string) *ServiceError {
	return &ServiceError{Kind: KindNoQuota, Message: message, StatusCode: http.StatusBadRequest}
}

func NewInvalidConfigError(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindInvalidConfig, Message: message, StatusCode: http.StatusBadRequest, Err: err}
}

func NewQueueFullError(tenant string) *ServiceError {
	return &ServiceError{
		Kind:       KindQueueFull,
		Message:    fmt.Sprintf("tenant %q queue is at capacity", tenant),
		StatusCode: http.StatusTooManyRequests,
	}
}

func NewShuttingDownError() *ServiceError {
	return &ServiceError{
		Kind:       KindShuttingDown,
		Message:    "rate limiter is shutting down",
		StatusCode: http.StatusServiceUnavailable,
	}
}

func NewInternalError(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindInternal, Message: message, StatusCode: http.StatusInternalServerError, Err: err}
}
