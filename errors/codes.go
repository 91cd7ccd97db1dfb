package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Registry and loading errors
const (
	// ErrCodeNotFound indicates a registry key or lazy export does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeDuplicateKey indicates a conflicting registration under an existing key.
	ErrCodeDuplicateKey ErrorCode = "DUPLICATE_KEY"
	// ErrCodeImportFailure indicates a lazily declared module failed to load.
	ErrCodeImportFailure ErrorCode = "IMPORT_FAILURE"
)

// Construction errors
const (
	// ErrCodeUnknownTask indicates a task with no default and no registered variant.
	ErrCodeUnknownTask ErrorCode = "UNKNOWN_TASK"
	// ErrCodeUnknownVariant indicates a variant missing from the pipelines group.
	ErrCodeUnknownVariant ErrorCode = "UNKNOWN_VARIANT"
	// ErrCodeArtifactFetchFailure indicates the hub could not resolve a model artifact.
	ErrCodeArtifactFetchFailure ErrorCode = "ARTIFACT_FETCH_FAILURE"
	// ErrCodeConstructorFailure indicates a unit or processor constructor failed.
	ErrCodeConstructorFailure ErrorCode = "CONSTRUCTOR_FAILURE"
	// ErrCodeInvalidDeviceSpec indicates a device string could not be parsed.
	ErrCodeInvalidDeviceSpec ErrorCode = "INVALID_DEVICE_SPEC"
)

// Invocation errors
const (
	// ErrCodePreprocess indicates the preprocessor rejected its input.
	ErrCodePreprocess ErrorCode = "PREPROCESS_ERROR"
	// ErrCodeCompute indicates the compute unit failed.
	ErrCodeCompute ErrorCode = "COMPUTE_ERROR"
	// ErrCodePostprocess indicates the postprocessor failed.
	ErrCodePostprocess ErrorCode = "POSTPROCESS_ERROR"
)

// General errors
const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeArtifactFetchFailure: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
