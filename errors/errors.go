package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// Wrap creates an AppError with the given code around cause.
func Wrap(code ErrorCode, cause error, message string) *AppError {
	return New(code, message).WithCause(cause)
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Is delegates to the standard library so callers need a single errors import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As delegates to the standard library so callers need a single errors import.
func As(err error, target any) bool { return stderrors.As(err, target) }

// --- Registry and loading ---

// NotFound creates a new AppError for a missing registry key or export.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id),
		Details: details,
	}
}

// DuplicateKey creates a new AppError for a conflicting registration.
func DuplicateKey(group, name string) *AppError {
	return &AppError{
		Code: ErrCodeDuplicateKey, Message: fmt.Sprintf("%q is already registered in group %q", name, group),
		Details: map[string]any{"group": group, "name": name},
	}
}

// ImportFailure creates a new AppError for a lazily declared module that failed to load.
func ImportFailure(module string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeImportFailure, Message: fmt.Sprintf("failed to load module %q", module),
		Details: map[string]any{"module": module}, Cause: cause,
	}
}

// --- Construction ---

// UnknownTask creates a new AppError for a task nothing is registered for.
func UnknownTask(task string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownTask, Message: fmt.Sprintf("no default variant and no registered pipeline for task %q", task),
		Details: map[string]any{"task": task},
	}
}

// UnknownVariant creates a new AppError for a variant that cannot serve task.
func UnknownVariant(task, variant string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownVariant, Message: fmt.Sprintf("variant %q is not registered for task %q", variant, task),
		Details: map[string]any{"task": task, "variant": variant},
	}
}

// ArtifactFetchFailure creates a new AppError for a model artifact that could not be resolved.
func ArtifactFetchFailure(key, revision string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeArtifactFetchFailure, Message: fmt.Sprintf("failed to fetch artifact %q at revision %q", key, revision),
		Retryable: true, Details: map[string]any{"model": key, "revision": revision}, Cause: cause,
	}
}

// ConstructorFailure creates a new AppError for a constructor that returned an error.
func ConstructorFailure(name string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeConstructorFailure, Message: fmt.Sprintf("constructor for %q failed", name),
		Details: map[string]any{"name": name}, Cause: cause,
	}
}

// InvalidDeviceSpec creates a new AppError for an unparseable device string.
func InvalidDeviceSpec(spec, reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidDeviceSpec, Message: fmt.Sprintf("invalid device %q: %s", spec, reason),
		Details: map[string]any{"device": spec},
	}
}

// --- Invocation ---

// Preprocess creates a new AppError for input a preprocessor cannot handle.
func Preprocess(reason string, cause error) *AppError {
	return &AppError{Code: ErrCodePreprocess, Message: reason, Cause: cause}
}

// Compute creates a new AppError wrapping a compute unit failure.
func Compute(unit string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeCompute, Message: fmt.Sprintf("unit %q failed", unit),
		Details: map[string]any{"unit": unit}, Cause: cause,
	}
}

// Postprocess creates a new AppError wrapping a postprocessor failure.
func Postprocess(cause error) *AppError {
	return &AppError{Code: ErrCodePostprocess, Message: "postprocessing failed", Cause: cause}
}

// --- General ---

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message}
}

// Internal creates a new AppError for an unexpected error.
func Internal(cause error) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: "an unexpected error occurred", Cause: cause}
}
