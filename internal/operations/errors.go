package operations

import (
	"errors"
	"fmt"
)

// ErrorType classifies what went wrong during a pipeline run.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeDependency   ErrorType = "dependency"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeFatal        ErrorType = "fatal"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInvalidState ErrorType = "invalid_state"
)

// OperationError records a failure with enough context to decide
// whether the stage can be retried and which run it belongs to.
type OperationError struct {
	Type      ErrorType              `json:"type"`
	Stage     string                 `json:"stage,omitempty"`
	Message   string                 `json:"message"`
	Cause     error                  `json:"cause,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Retryable bool                   `json:"retryable"`
}

func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError flags a request that failed parameter checks before
// any stage ran.
func NewValidationError(stage, message string) *OperationError {
	return &OperationError{
		Type:      ErrorTypeValidation,
		Stage:     stage,
		Message:   message,
		Retryable: false,
	}
}

// NewDependencyError flags a stage whose declared prerequisite is missing
// or unsatisfied.
func NewDependencyError(stage, dependsOn, message string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeDependency,
		Stage:   stage,
		Message: message,
		Context: map[string]interface{}{
			"depends_on": dependsOn,
		},
		Retryable: false,
	}
}

// NewExecutionError wraps a failure from inside a stage's Execute.
func NewExecutionError(stage string, cause error, retryable bool) *OperationError {
	return &OperationError{
		Type:      ErrorTypeExecution,
		Stage:     stage,
		Message:   "stage execution failed",
		Cause:     cause,
		Retryable: retryable,
	}
}

// NewTimeoutError flags a stage that ran past its configured deadline.
// Timeouts are retryable since the usual cause is a slow upstream host.
func NewTimeoutError(stage string, timeout string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeTimeout,
		Stage:   stage,
		Message: fmt.Sprintf("stage exceeded timeout of %s", timeout),
		Context: map[string]interface{}{
			"timeout": timeout,
		},
		Retryable: true,
	}
}

// NewCancellationError flags a stage interrupted by a cancel request.
func NewCancellationError(stage string) *OperationError {
	return &OperationError{
		Type:      ErrorTypeCancellation,
		Stage:     stage,
		Message:   "operation was cancelled",
		Retryable: false,
	}
}

// NewFatalError flags a failure that poisons the whole run, such as a
// panic inside a stage.
func NewFatalError(message string, cause error) *OperationError {
	return &OperationError{
		Type:      ErrorTypeFatal,
		Message:   message,
		Cause:     cause,
		Retryable: false,
	}
}

// IsRetryable reports whether err is an OperationError marked retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Retryable
	}
	return false
}

// GetErrorType extracts the classification from err, defaulting to
// execution for plain errors bubbled up from stages.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ErrorTypeExecution
}

// WrapError attaches stage context to err on its way up to the manager.
func WrapError(err error, stage string, message string) *OperationError {
	if err == nil {
		return nil
	}

	// Enhance an existing OperationError instead of double-wrapping
	var opErr *OperationError
	if errors.As(err, &opErr) {
		if opErr.Stage == "" {
			opErr.Stage = stage
		}
		if message != "" {
			opErr.Message = fmt.Sprintf("%s: %s", message, opErr.Message)
		}
		return opErr
	}

	return &OperationError{
		Type:      ErrorTypeExecution,
		Stage:     stage,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// ErrorList collects per-stage failures from a run that kept going
// after the first error.
type ErrorList struct {
	Errors []*OperationError `json:"errors"`
}

func (e *ErrorList) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors: %d errors occurred", len(e.Errors))
}

// Add appends err, dropping nils so callers can pass WrapError results
// straight through.
func (e *ErrorList) Add(err *OperationError) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors reports whether any failure was recorded.
func (e *ErrorList) HasErrors() bool {
	return len(e.Errors) > 0
}

// Sentinel errors for run lifecycle checks. Declared as OperationError
// values so errors.Is works across API and manager layers.
var (
	// ErrOperationNotFound means no run with the given id was ever started.
	ErrOperationNotFound = &OperationError{
		Type:    ErrorTypeNotFound,
		Message: "operation not found",
	}

	// ErrOperationCompleted rejects changes to a finished run.
	ErrOperationCompleted = &OperationError{
		Type:    ErrorTypeInvalidState,
		Message: "operation has already completed",
	}

	// ErrOperationNotRunning rejects a cancel aimed at an idle run.
	ErrOperationNotRunning = &OperationError{
		Type:    ErrorTypeInvalidState,
		Message: "operation is not running",
	}

	// ErrOperationInProgress rejects a second concurrent run request.
	ErrOperationInProgress = &OperationError{
		Type:    ErrorTypeInvalidState,
		Message: "an operation is already in progress",
	}
)
