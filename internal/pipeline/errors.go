// internal/pipeline/errors.go
package pipeline

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/badapple-ai/badapple-studio/internal/errors"
)

// APIError is a non-2xx reply from the pipeline backend. The backend
// reports failures as a JSON body with a `detail` field, either a bare
// string or {message, code}.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("pipeline: HTTP %d [%s]: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("pipeline: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether repeating the same request can reasonably
// succeed: server errors and throttling, never client errors.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type detailBody struct {
	Detail json.RawMessage `json:"detail"`
}

type detailObject struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// parseAPIError builds an APIError from a non-2xx response body.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Message: http.StatusText(statusCode)}

	var wrapper detailBody
	if err := json.Unmarshal(body, &wrapper); err != nil || len(wrapper.Detail) == 0 {
		return apiErr
	}

	var obj detailObject
	if err := json.Unmarshal(wrapper.Detail, &obj); err == nil && obj.Message != "" {
		apiErr.Message = obj.Message
		apiErr.Code = obj.Code
		return apiErr
	}

	var msg string
	if err := json.Unmarshal(wrapper.Detail, &msg); err == nil && msg != "" {
		apiErr.Message = msg
	}
	return apiErr
}

// toAppError maps a backend failure onto the studio error taxonomy so the
// API layer renders it with the right status and friendly category.
func (e *APIError) toAppError() *apperrors.AppError {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError(e.Message, e)
	case e.StatusCode == http.StatusUnauthorized:
		return apperrors.NewUnauthorizedError(e.Message, e)
	case e.StatusCode == http.StatusConflict:
		return apperrors.NewConflictError(e.Message, e)
	case e.StatusCode == http.StatusUnprocessableEntity, e.StatusCode == http.StatusBadRequest:
		return apperrors.NewValidationError(e.Message, e)
	case e.StatusCode == http.StatusGatewayTimeout:
		return apperrors.NewAppError(apperrors.ErrorTypeTimeout, e.Message, e)
	case e.StatusCode >= 500, e.StatusCode == http.StatusTooManyRequests:
		return apperrors.NewUnavailableError(e.Message, e)
	default:
		return apperrors.NewProcessingError(e.Message, e)
	}
}
