// internal/models/project.go
package models

import (
	"sort"
	"time"
)

// ProjectMode 表示创作模式
type ProjectMode string

const (
	ModeMusicVideo ProjectMode = "music-video"
	ModeAdCreative ProjectMode = "ad-creative"
)

// Valid reports whether the mode is one of the supported creation modes.
func (m ProjectMode) Valid() bool {
	return m == ModeMusicVideo || m == ModeAdCreative
}

// ProjectStatus 表示项目的整体状态（由后端拥有，本地只读缓存）
type ProjectStatus string

const (
	ProjectStatusPending    ProjectStatus = "pending"
	ProjectStatusProcessing ProjectStatus = "processing"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusFailed     ProjectStatus = "failed"
)

// Project 表示一个视频生成项目。
// The pipeline backend owns the authoritative copy; the studio holds a
// read/write cache refreshed by polling.
type Project struct {
	ID            string        `json:"id"`
	Mode          ProjectMode   `json:"mode"`
	ConceptPrompt string        `json:"concept_prompt"`
	Status        ProjectStatus `json:"status"`
	Scenes        []Scene       `json:"scenes"`
	Composing     bool          `json:"composing,omitempty"`
	FinalVideoURL string        `json:"final_video_url,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at,omitempty"`
}

// SceneBySequence returns the scene with the given stable sequence number.
func (p *Project) SceneBySequence(seq int) (*Scene, bool) {
	for i := range p.Scenes {
		if p.Scenes[i].Sequence == seq {
			return &p.Scenes[i], true
		}
	}
	return nil, false
}

// GenerationDone reports whether every scene carries a playable render.
// 注意：这里刻意不看 Status 字段 —— 完成与否只由 URL 是否存在决定。
func (p *Project) GenerationDone() bool {
	if len(p.Scenes) == 0 {
		return false
	}
	for i := range p.Scenes {
		if !p.Scenes[i].HasVideo() {
			return false
		}
	}
	return true
}

// DisplayOrder returns a copy of the scenes sorted by display sequence.
// Stable sequence numbers never change; only this presentation order does.
func (p *Project) DisplayOrder() []Scene {
	scenes := make([]Scene, len(p.Scenes))
	copy(scenes, p.Scenes)
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].DisplaySequence < scenes[j].DisplaySequence
	})
	return scenes
}
