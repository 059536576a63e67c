// internal/services/wizard_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/badapple-ai/badapple-studio/internal/errors"
	"github.com/badapple-ai/badapple-studio/internal/models"
	"github.com/badapple-ai/badapple-studio/internal/pipeline"
	"github.com/badapple-ai/badapple-studio/internal/storage"
	"github.com/badapple-ai/badapple-studio/internal/utils"
	"github.com/google/uuid"
)

const draftsDir = "drafts"

// SubmitResult 提交成功后返回给前端的跳转信息
type SubmitResult struct {
	ProjectID    string `json:"project_id"`
	RedirectPath string `json:"redirect_path"`
}

// WizardService manages creation-wizard drafts: persistence across
// restarts, per-step validation, and final submission to the pipeline
// backend. A draft is deleted only after the backend accepts it.
type WizardService struct {
	Storage  *storage.FileStorage
	Projects *ProjectService
	Assets   *AssetService

	logger *utils.Logger
}

// NewWizardService 创建向导服务
func NewWizardService(fs *storage.FileStorage, projects *ProjectService, assets *AssetService) *WizardService {
	return &WizardService{
		Storage:  fs,
		Projects: projects,
		Assets:   assets,
		logger:   utils.GetLogger(),
	}
}

// CreateDraft 新建一份空白草稿
func (s *WizardService) CreateDraft() (*models.WizardDraft, error) {
	draft := &models.WizardDraft{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.saveDraft(draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// GetDraft 读取草稿
func (s *WizardService) GetDraft(draftID string) (*models.WizardDraft, error) {
	var draft models.WizardDraft
	if err := s.Storage.LoadJSON(draftsDir, draftID+".json", &draft); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("draft %s not found", draftID), err)
	}
	return &draft, nil
}

// ListDrafts 列出所有进行中的草稿
func (s *WizardService) ListDrafts() ([]*models.WizardDraft, error) {
	files, err := s.Storage.ListFiles(draftsDir)
	if err != nil {
		return nil, err
	}

	drafts := make([]*models.WizardDraft, 0, len(files))
	for _, name := range files {
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		var draft models.WizardDraft
		if err := s.Storage.LoadJSON(draftsDir, name, &draft); err != nil {
			s.logger.Warnf("skip unreadable draft %s: %v", name, err)
			continue
		}
		drafts = append(drafts, &draft)
	}
	return drafts, nil
}

// DraftUpdate 是一次草稿字段更新；nil 字段保持不变
type DraftUpdate struct {
	Mode             *models.ProjectMode `json:"mode,omitempty"`
	ConceptPrompt    *string             `json:"concept_prompt,omitempty"`
	Description      *string             `json:"description,omitempty"`
	ImageSource      *models.ImageSource `json:"image_source,omitempty"`
	ReferenceImageID *string             `json:"reference_image_id,omitempty"`
	AudioSource      *models.AudioSource `json:"audio_source,omitempty"`
	AudioFileID      *string             `json:"audio_file_id,omitempty"`
	YouTubeURL       *string             `json:"youtube_url,omitempty"`
	MusicPrompt      *string             `json:"music_prompt,omitempty"`
	StylePreset      *string             `json:"style_preset,omitempty"`
}

// UpdateDraft applies a partial update. Field edits are always accepted;
// gating only applies to step navigation and submission, so a user can
// freely revise earlier answers.
func (s *WizardService) UpdateDraft(draftID string, update DraftUpdate) (*models.WizardDraft, error) {
	draft, err := s.GetDraft(draftID)
	if err != nil {
		return nil, err
	}

	if update.Mode != nil {
		if !update.Mode.Valid() {
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown project mode %q", *update.Mode), nil)
		}
		draft.Mode = *update.Mode
	}
	if update.ConceptPrompt != nil {
		draft.ConceptPrompt = *update.ConceptPrompt
	}
	if update.Description != nil {
		draft.Description = *update.Description
	}
	if update.ImageSource != nil {
		draft.ImageSource = *update.ImageSource
	}
	if update.ReferenceImageID != nil {
		draft.ReferenceImageID = *update.ReferenceImageID
	}
	if update.AudioSource != nil {
		draft.AudioSource = *update.AudioSource
	}
	if update.AudioFileID != nil {
		draft.AudioFileID = *update.AudioFileID
	}
	if update.YouTubeURL != nil {
		draft.YouTubeURL = *update.YouTubeURL
	}
	if update.MusicPrompt != nil {
		draft.MusicPrompt = *update.MusicPrompt
	}
	if update.StylePreset != nil {
		draft.StylePreset = *update.StylePreset
	}

	draft.UpdatedAt = time.Now()
	if err := s.saveDraft(draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// StepState 向导单个步骤的可达性与完成度
type StepState struct {
	Step      models.WizardStep `json:"step"`
	Complete  bool              `json:"complete"`
	Reachable bool              `json:"reachable"`
}

// Steps returns the gating state for every wizard step, recomputed from
// the draft's current answers.
func (s *WizardService) Steps(draftID string) ([]StepState, error) {
	draft, err := s.GetDraft(draftID)
	if err != nil {
		return nil, err
	}

	states := make([]StepState, 0, int(models.StepReview))
	for step := models.StepFormat; step <= models.StepReview; step++ {
		states = append(states, StepState{
			Step:      step,
			Complete:  draft.StepComplete(step),
			Reachable: draft.StepReachable(step),
		})
	}
	return states, nil
}

// EnterStep 校验某一步是否可进入
func (s *WizardService) EnterStep(draftID string, step models.WizardStep) error {
	if step < models.StepFormat || step > models.StepReview {
		return apperrors.NewValidationError(fmt.Sprintf("unknown wizard step %d", step), nil)
	}

	draft, err := s.GetDraft(draftID)
	if err != nil {
		return err
	}
	if !draft.StepReachable(step) {
		return apperrors.NewValidationError(
			fmt.Sprintf("step %d is not reachable: an earlier step is incomplete", step), nil)
	}
	return nil
}

// Submit 提交草稿创建项目。校验不通过时不发任何网络请求；
// 只有后端创建成功后才删除草稿。
func (s *WizardService) Submit(ctx context.Context, draftID string) (*SubmitResult, error) {
	draft, err := s.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	if !draft.ReadyToSubmit() {
		return nil, apperrors.NewValidationError("draft is incomplete: finish every wizard step first", nil)
	}

	req := pipeline.CreateProjectRequest{
		Mode:             draft.Mode,
		Prompt:           strings.TrimSpace(draft.ConceptPrompt),
		Description:      draft.Description,
		ReferenceImageID: draft.ReferenceImageID,
		StylePreset:      draft.StylePreset,
	}

	// 上传来源的音频以文件形式随表单提交
	if draft.AudioSource == models.AudioSourceUpload && draft.AudioFileID != "" && s.Assets != nil {
		data, filename, err := s.Assets.LoadAudio(draft.AudioFileID)
		if err != nil {
			return nil, err
		}
		req.AudioFile = data
		req.AudioFilename = filename
	}

	projectID, err := s.Projects.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.Storage.DeleteFile(draftsDir, draftID+".json"); err != nil {
		// 项目已创建成功，草稿残留只记日志
		s.logger.Warnf("delete draft %s after submit: %v", draftID, err)
	}

	return &SubmitResult{
		ProjectID:    projectID,
		RedirectPath: "/projects/" + projectID + "/edit",
	}, nil
}

// DeleteDraft 放弃草稿
func (s *WizardService) DeleteDraft(draftID string) error {
	return s.Storage.DeleteFile(draftsDir, draftID+".json")
}

func (s *WizardService) saveDraft(d *models.WizardDraft) error {
	return s.Storage.SaveJSON(draftsDir, d.ID+".json", d)
}
