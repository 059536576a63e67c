// internal/models/scene.go
package models

import (
	"time"
)

// SceneStatus 表示场景的生成状态。
// Status is informational metadata only. Whether a scene is "done" is
// decided by URL presence (see HasVideo), never by this field.
type SceneStatus string

const (
	SceneStatusPending    SceneStatus = "pending"
	SceneStatusProcessing SceneStatus = "processing"
	SceneStatusCompleted  SceneStatus = "completed"
	SceneStatusFailed     SceneStatus = "failed"
)

// TrimPoints 表示原始片段时间轴上的 [in, out) 裁剪区间（秒）。
// Invariant: 0 <= In < Out <= original clip duration.
type TrimPoints struct {
	In  float64 `json:"in"`
	Out float64 `json:"out"`
}

// Duration returns the length of the trimmed range in seconds.
func (tp TrimPoints) Duration() float64 {
	return tp.Out - tp.In
}

// Scene 表示生成视频中的一个镜头/分段。
// Sequence is the 1-based stable identity assigned by the pipeline backend;
// DisplaySequence is the UI ordering and may diverge from Sequence while a
// drag reorder is being persisted.
type Scene struct {
	Sequence        int         `json:"sequence"`
	DisplaySequence int         `json:"display_sequence"`
	Prompt          string      `json:"prompt"`
	NegativePrompt  string      `json:"negative_prompt,omitempty"`
	Status          SceneStatus `json:"status"`
	ErrorMessage    string      `json:"error_message,omitempty"`

	// Duration is the post-trim length in seconds.
	Duration   float64     `json:"duration,omitempty"`
	TrimPoints *TrimPoints `json:"trim_points,omitempty"`

	// Media URLs. All of these are optional and time-limited signed URLs;
	// compare them through media.StableID, never by raw string equality.
	OriginalVideoClipURL string `json:"original_video_clip_url,omitempty"`
	VideoClipURL         string `json:"video_clip_url,omitempty"`
	LipSyncVideoURL      string `json:"lip_sync_video_url,omitempty"`
	AudioClipURL         string `json:"audio_clip_url,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// EffectivePlayableURL 返回场景当前最佳可播放的视频地址。
// Preference order: lip-sync result, working cut, original render.
// This is the single derivation point for "which URL do we play" — callers
// must not build their own fallback chains.
func (s *Scene) EffectivePlayableURL() string {
	if s.LipSyncVideoURL != "" {
		return s.LipSyncVideoURL
	}
	if s.VideoClipURL != "" {
		return s.VideoClipURL
	}
	return s.OriginalVideoClipURL
}

// HasVideo reports whether the scene has any playable render at all.
// This is the completeness test for "generation done" purposes.
func (s *Scene) HasVideo() bool {
	return s.EffectivePlayableURL() != ""
}

// WorkingVideoURL 返回当前工作剪辑（裁剪/对口型之后的版本），
// 区别于未动过的原始渲染。
func (s *Scene) WorkingVideoURL() string {
	if s.VideoClipURL != "" {
		return s.VideoClipURL
	}
	return s.OriginalVideoClipURL
}
