package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

// Submission path error codes
const (
	ErrQueueFull    ErrorCode = "QUEUE_FULL"
	ErrOverloaded   ErrorCode = "OVERLOADED"
	ErrShuttingDown ErrorCode = "SHUTTING_DOWN"
	ErrCancelled    ErrorCode = "CANCELLED"
)

// Execution path error codes
const (
	ErrWorkerExecutionFailed ErrorCode = "WORKER_EXECUTION_FAILED"
	ErrKernelContract        ErrorCode = "KERNEL_CONTRACT"
)

// Control plane error codes
const (
	ErrScaleOperationFailed ErrorCode = "SCALE_OPERATION_FAILED"
	ErrNoIdleWorker         ErrorCode = "NO_IDLE_WORKER"
	ErrInvalidSpec          ErrorCode = "INVALID_SPEC"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail attaches free-form detail to the error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// NewQueueFullError reports a pending buffer at capacity. Callers may retry
// after backoff.
func NewQueueFullError(capacity int) *Error {
	return NewError(ErrQueueFull, fmt.Sprintf("pending buffer full (capacity %d)", capacity)).
		WithRetryable(true)
}

// NewOverloadedError reports an exhausted dispatch backlog. Callers may retry
// after backoff; sustained occurrences mean the pool is saturated at its
// replica ceiling.
func NewOverloadedError(backlog int) *Error {
	return NewError(ErrOverloaded, fmt.Sprintf("dispatch backlog full (capacity %d)", backlog)).
		WithRetryable(true)
}

// NewShuttingDownError reports a submission after shutdown began.
func NewShuttingDownError() *Error {
	return NewError(ErrShuttingDown, "pipeline is shutting down")
}

// NewCancelledError reports a future cancelled before dispatch.
func NewCancelledError(itemID string) *Error {
	return NewError(ErrCancelled, "work item cancelled before dispatch").WithDetail(itemID)
}

// NewWorkerExecutionError wraps a kernel failure for a dispatched batch. The
// same error instance is delivered to every future of that batch.
func NewWorkerExecutionError(workerID string, cause error) *Error {
	return NewError(ErrWorkerExecutionFailed, fmt.Sprintf("worker %s execution failed", workerID)).
		WithCause(cause)
}

// NewKernelContractError reports a kernel that returned a result slice whose
// length does not match the dispatched payload count.
func NewKernelContractError(want, got int) *Error {
	return NewError(ErrKernelContract, fmt.Sprintf("kernel returned %d results for %d payloads", got, want))
}

// NewScaleOperationError wraps a provisioning or teardown failure. The
// controller logs it and retries on its next cycle.
func NewScaleOperationError(message string, cause error) *Error {
	return NewError(ErrScaleOperationFailed, message).WithCause(cause).WithRetryable(true)
}

// NewInvalidSpecError reports a WorkflowSpec that failed validation.
func NewInvalidSpecError(message string) *Error {
	return NewError(ErrInvalidSpec, message)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsQueueFull reports whether err is a pending-buffer rejection.
func IsQueueFull(err error) bool { return IsCode(err, ErrQueueFull) }

// IsOverloaded reports whether err is a backlog rejection.
func IsOverloaded(err error) bool { return IsCode(err, ErrOverloaded) }

// IsShuttingDown reports whether err is a post-shutdown rejection.
func IsShuttingDown(err error) bool { return IsCode(err, ErrShuttingDown) }

// IsCancelled reports whether err is a pre-dispatch cancellation.
func IsCancelled(err error) bool { return IsCode(err, ErrCancelled) }

// IsWorkerExecutionFailed reports whether err is a kernel failure.
func IsWorkerExecutionFailed(err error) bool { return IsCode(err, ErrWorkerExecutionFailed) }

// IsScaleOperationFailed reports whether err is a scaling failure.
func IsScaleOperationFailed(err error) bool { return IsCode(err, ErrScaleOperationFailed) }
