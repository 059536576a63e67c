// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorUnauthorized  = "UNAUTHORIZED"

	// 向导相关错误
	ErrorDraftNotFound   = "DRAFT_NOT_FOUND"
	ErrorStepUnreachable = "STEP_UNREACHABLE"
	ErrorDraftIncomplete = "DRAFT_INCOMPLETE"

	// 项目与场景相关错误
	ErrorProjectNotFound   = "PROJECT_NOT_FOUND"
	ErrorSceneNotFound     = "SCENE_NOT_FOUND"
	ErrorInvalidOrder      = "INVALID_ORDER"
	ErrorInvalidTrimRange  = "INVALID_TRIM_RANGE"
	ErrorLastSceneDelete   = "LAST_SCENE_DELETE"
	ErrorComposingConflict = "COMPOSING_CONFLICT"

	// 资产相关错误
	ErrorFileUploadFailed = "FILE_UPLOAD_FAILED"
	ErrorFileInvalid      = "FILE_INVALID"
	ErrorAudioNotFound    = "AUDIO_NOT_FOUND"

	// 生成后端相关错误
	ErrorPipelineUnavailable = "PIPELINE_UNAVAILABLE"
	ErrorPipelineTimeout     = "PIPELINE_TIMEOUT"
	ErrorAPIKeyMissing       = "API_KEY_MISSING"
)
