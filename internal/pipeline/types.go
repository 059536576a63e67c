// internal/pipeline/types.go
package pipeline

import (
	"github.com/badapple-ai/badapple-studio/internal/models"
)

// CreateProjectRequest 是创建项目的 multipart 表单载荷。
// AudioFile/AudioFilename are optional; the other fields are required.
type CreateProjectRequest struct {
	Mode             models.ProjectMode
	Prompt           string
	Description      string
	ReferenceImageID string
	AudioFile        []byte
	AudioFilename    string
	StylePreset      string
}

// CreateProjectResponse 创建项目的响应
type CreateProjectResponse struct {
	ProjectID string `json:"project_id"`
}

// ReferenceImageRequest 生成候选参考图的请求
type ReferenceImageRequest struct {
	Mode   models.ProjectMode `json:"mode"`
	Prompt string             `json:"prompt"`
	Count  int                `json:"count,omitempty"`
}

// ReferenceImage 一张候选参考图
type ReferenceImage struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// ReferenceImageResponse 候选参考图列表
type ReferenceImageResponse struct {
	Images []ReferenceImage `json:"images"`
}

// AddSceneRequest 追加场景的请求
type AddSceneRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

// UpdateSceneRequest 更新场景提示词的请求
type UpdateSceneRequest struct {
	Prompt         *string `json:"prompt,omitempty"`
	NegativePrompt *string `json:"negative_prompt,omitempty"`
}

// ReorderRequest 以 display sequence 值提交的新顺序
type ReorderRequest struct {
	Order []int `json:"order"`
}

// TrimRequest 持久化工作剪辑的裁剪区间
type TrimRequest struct {
	In  float64 `json:"in"`
	Out float64 `json:"out"`
}

// LipSyncRequest 对口型任务请求
type LipSyncRequest struct {
	VideoURL string `json:"video_url"`
	AudioURL string `json:"audio_url"`
}

// JobHandle 后端长任务句柄
type JobHandle struct {
	JobID string `json:"job_id"`
}

// JobStatus 长任务轮询结果
type JobStatus struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"` // pending, processing, completed, failed
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
}

// YouTubeAudioRequest YouTube 转音频请求
type YouTubeAudioRequest struct {
	URL string `json:"url"`
}

// YouTubeAudioResponse YouTube 转音频结果
type YouTubeAudioResponse struct {
	AudioFileID string `json:"audio_file_id"`
	AudioURL    string `json:"audio_url"`
	Title       string `json:"title,omitempty"`
	Duration    int    `json:"duration,omitempty"`
}

// MusicRequest AI 音乐生成请求
type MusicRequest struct {
	Prompt     string `json:"prompt"`
	Lyrics     string `json:"lyrics,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Bitrate    int    `json:"bitrate,omitempty"`
}
