// internal/api/response_helpers.go
package api

import (
	"net/http"
	"time"

	apperrors "github.com/badapple-ai/badapple-studio/internal/errors"
	"github.com/gin-gonic/gin"
)

// APIResponse 标准响应信封
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Recovery  string `json:"recovery,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// Created 创建成功响应
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusCreated, response)
}

// Error 错误响应
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{
		Code:    errorCode,
		Message: message,
	}
	if len(details) > 0 {
		apiError.Details = details[0]
	}

	response := &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound 404错误响应
func (rh *ResponseHelper) NotFound(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusNotFound, ErrorNotFound, message, details...)
}

// Conflict 409错误响应
func (rh *ResponseHelper) Conflict(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusConflict, ErrorConflict, message, details...)
}

// InternalError 500错误响应
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// FromError 把服务层错误翻译成带恢复建议的响应。
// Status code follows the error taxonomy; the body carries the
// user-facing category, recovery hint and retryability.
func (rh *ResponseHelper) FromError(c *gin.Context, err error) {
	friendly := apperrors.Friendly(err)

	status := http.StatusInternalServerError
	code := ErrorInternalError
	switch {
	case apperrors.IsValidationError(err):
		status, code = http.StatusBadRequest, ErrorBadRequest
	case apperrors.IsNotFoundError(err):
		status, code = http.StatusNotFound, ErrorNotFound
	case apperrors.IsConflictError(err):
		status, code = http.StatusConflict, ErrorConflict
	case apperrors.IsUnauthorizedError(err):
		status, code = http.StatusUnauthorized, ErrorUnauthorized
	case apperrors.IsUnavailableError(err):
		status, code = http.StatusBadGateway, ErrorPipelineUnavailable
	}

	response := &APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   friendly.Message,
			Details:   friendly.Title,
			Recovery:  friendly.Recovery,
			Retryable: friendly.Retryable,
		},
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	c.JSON(status, response)
}

// FileResponse 二进制内容响应（缩略图、二维码等）
func (rh *ResponseHelper) FileResponse(c *gin.Context, content []byte, contentType string) {
	c.Data(http.StatusOK, contentType, content)
}

// getRequestID 获取请求ID
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	if requestID := c.GetString("request_id"); requestID != "" {
		return requestID
	}
	return ""
}
