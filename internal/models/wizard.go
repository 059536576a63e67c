// internal/models/wizard.go
package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// WizardStep 表示创建向导中的一个步骤
type WizardStep int

const (
	StepFormat WizardStep = iota + 1
	StepDescription
	StepReferenceImage
	StepAudio
	StepStyle
	StepReview
)

const (
	// Prompt length bounds for the description step (characters, not bytes).
	PromptMinLength = 10
	PromptMaxLength = 1000
)

// ImageSource 表示参考图的来源
type ImageSource string

const (
	ImageSourceUpload    ImageSource = "upload"
	ImageSourceGenerated ImageSource = "generated"
)

// AudioSource 表示音频的来源
type AudioSource string

const (
	AudioSourceUpload    AudioSource = "upload"
	AudioSourceYouTube   AudioSource = "youtube"
	AudioSourceGenerated AudioSource = "generated"
)

// WizardDraft 保存向导的进行中答案。
// Drafts survive restarts (persisted to file storage) and are only removed
// after a successful submission.
type WizardDraft struct {
	ID   string      `json:"id"`
	Mode ProjectMode `json:"mode,omitempty"`

	ConceptPrompt string `json:"concept_prompt,omitempty"`
	Description   string `json:"description,omitempty"`

	ImageSource      ImageSource `json:"image_source,omitempty"`
	ReferenceImageID string      `json:"reference_image_id,omitempty"`

	AudioSource AudioSource `json:"audio_source,omitempty"`
	AudioFileID string      `json:"audio_file_id,omitempty"`
	YouTubeURL  string      `json:"youtube_url,omitempty"`
	MusicPrompt string      `json:"music_prompt,omitempty"`

	// Style 是可选步骤：留空表示跳过
	StylePreset string `json:"style_preset,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PromptLengthOK reports whether the concept prompt is within bounds.
func (d *WizardDraft) PromptLengthOK() bool {
	n := utf8.RuneCountInString(strings.TrimSpace(d.ConceptPrompt))
	return n >= PromptMinLength && n <= PromptMaxLength
}

// StepComplete evaluates the step's own validation predicate. Each step only
// looks at its own fields; cross-step gating is in StepReachable.
func (d *WizardDraft) StepComplete(step WizardStep) bool {
	switch step {
	case StepFormat:
		return d.Mode.Valid()
	case StepDescription:
		return d.PromptLengthOK()
	case StepReferenceImage:
		switch d.ImageSource {
		case ImageSourceUpload, ImageSourceGenerated:
			return d.ReferenceImageID != ""
		}
		return false
	case StepAudio:
		switch d.AudioSource {
		case AudioSourceUpload:
			return d.AudioFileID != ""
		case AudioSourceYouTube:
			return d.YouTubeURL != ""
		case AudioSourceGenerated:
			return strings.TrimSpace(d.MusicPrompt) != ""
		}
		return false
	case StepStyle:
		// 风格是可选的，永远视为已完成
		return true
	case StepReview:
		return true
	}
	return false
}

// StepReachable reports whether the step can be entered: true iff every
// earlier step independently satisfies its own predicate. Recomputed from
// the draft on every call, so reachability follows field edits reactively.
func (d *WizardDraft) StepReachable(step WizardStep) bool {
	for s := StepFormat; s < step; s++ {
		if !d.StepComplete(s) {
			return false
		}
	}
	return true
}

// ReadyToSubmit reports whether the draft passes every gating step.
func (d *WizardDraft) ReadyToSubmit() bool {
	return d.StepReachable(StepReview)
}
