package errors

// ErrorResponse is the JSON structure the CLI prints for a failed command.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains the rendered error fields.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     string         `json:"cause,omitempty"`
}

// ToResponse converts an AppError to an ErrorResponse for JSON serialization.
func (e *AppError) ToResponse() ErrorResponse {
	body := ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
		Details:   e.Details,
	}
	if e.Cause != nil {
		body.Cause = e.Cause.Error()
	}
	return ErrorResponse{Error: body}
}

// ToResponse renders any error, wrapping non-AppErrors as internal errors.
func ToResponse(err error) ErrorResponse {
	if appErr, ok := AsAppError(err); ok {
		return appErr.ToResponse()
	}
	return Internal(err).ToResponse()
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
