// internal/services/scene_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/badapple-ai/badapple-studio/internal/errors"
	"github.com/badapple-ai/badapple-studio/internal/models"
	"github.com/badapple-ai/badapple-studio/internal/pipeline"
	"github.com/badapple-ai/badapple-studio/internal/trim"
	"github.com/badapple-ai/badapple-studio/internal/utils"
	"github.com/google/uuid"
)

// SceneService implements per-scene editing on top of the project cache:
// prompt updates, regeneration, trimming, lip-sync, deletion and
// reordering. Edits are applied optimistically to the cache and rolled
// back from the backend's truth if the remote call fails.
type SceneService struct {
	Client   *pipeline.Client
	Projects *ProjectService
	Progress *ProgressService
	Stats    *StatsService

	logger *utils.Logger
}

// NewSceneService 创建场景服务
func NewSceneService(client *pipeline.Client, projects *ProjectService) *SceneService {
	return &SceneService{
		Client:   client,
		Projects: projects,
		logger:   utils.GetLogger(),
	}
}

// ValidateOrder checks a proposed display order against the project's
// scenes entirely locally: it must be a permutation of the stable scene
// sequences, with no duplicates and no unknown or non-positive entries.
func ValidateOrder(order []int, scenes []models.Scene) error {
	if len(order) == 0 {
		return apperrors.NewValidationError("order must not be empty", nil)
	}
	if len(order) != len(scenes) {
		return apperrors.NewValidationError(
			fmt.Sprintf("order has %d entries, project has %d scenes", len(order), len(scenes)), nil)
	}

	known := make(map[int]bool, len(scenes))
	for _, sc := range scenes {
		known[sc.Sequence] = true
	}

	seen := make(map[int]bool, len(order))
	for _, seq := range order {
		if seq <= 0 {
			return apperrors.NewValidationError(fmt.Sprintf("invalid scene sequence %d", seq), nil)
		}
		if seen[seq] {
			return apperrors.NewValidationError(fmt.Sprintf("duplicate scene sequence %d", seq), nil)
		}
		if !known[seq] {
			return apperrors.NewValidationError(fmt.Sprintf("unknown scene sequence %d", seq), nil)
		}
		seen[seq] = true
	}
	return nil
}

// applyCached runs an optimistic cache mutation, warming the cache from
// the backend first when it is cold (e.g. the first edit after a
// restart). The backend call has already succeeded by the time this is
// used, so a cache miss must not surface as a failure.
func (s *SceneService) applyCached(ctx context.Context, projectID string, fn func(*models.Project) error) error {
	err := s.Projects.mutateCached(projectID, fn)
	if !errors.Is(err, errProjectNotCached) {
		return err
	}
	if _, err := s.Projects.Refresh(ctx, projectID); err != nil {
		return err
	}
	return s.Projects.mutateCached(projectID, fn)
}

// Reorder 应用新的展示顺序。本地校验失败时不发任何网络请求；
// 校验通过则先乐观更新缓存，再同步到后端，失败时回滚到后端真实状态。
func (s *SceneService) Reorder(ctx context.Context, projectID string, order []int) error {
	project, err := s.Projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if err := ValidateOrder(order, project.Scenes); err != nil {
		return err
	}

	applyErr := s.Projects.mutateCached(projectID, func(p *models.Project) error {
		pos := make(map[int]int, len(order))
		for i, seq := range order {
			pos[seq] = i + 1
		}
		for i := range p.Scenes {
			p.Scenes[i].DisplaySequence = pos[p.Scenes[i].Sequence]
		}
		return nil
	})
	if applyErr != nil {
		return applyErr
	}

	if err := s.Client.ReorderScenes(ctx, projectID, order); err != nil {
		// 回滚：丢弃乐观状态，重新拉取后端真实顺序
		if _, rbErr := s.Projects.Refresh(ctx, projectID); rbErr != nil {
			s.logger.Warnf("rollback refresh after reorder failure: %v", rbErr)
		}
		return err
	}
	return nil
}

// Move computes the order produced by dragging the scene at display
// position `from` to display position `to` (zero-based) and applies it
// through Reorder.
func (s *SceneService) Move(ctx context.Context, projectID string, from, to int) error {
	project, err := s.Projects.Get(ctx, projectID)
	if err != nil {
		return err
	}

	order := displayOrderSequences(project)
	if from < 0 || from >= len(order) || to < 0 || to >= len(order) {
		return apperrors.NewValidationError("move position out of range", nil)
	}
	if from == to {
		return nil
	}

	moved := order[from]
	order = append(order[:from], order[from+1:]...)
	rest := make([]int, 0, len(order)+1)
	rest = append(rest, order[:to]...)
	rest = append(rest, moved)
	rest = append(rest, order[to:]...)

	return s.Reorder(ctx, projectID, rest)
}

func displayOrderSequences(p *models.Project) []int {
	scenes := p.DisplayOrder()
	order := make([]int, len(scenes))
	for i, sc := range scenes {
		order[i] = sc.Sequence
	}
	return order
}

// ApplyTrim 把 [in, out] 区间提交为场景的工作剪辑。
// 成功后场景时长即为 out-in。
func (s *SceneService) ApplyTrim(ctx context.Context, projectID string, sequence int, in, out float64) (*models.Scene, error) {
	if in < 0 || out <= in {
		return nil, apperrors.NewValidationError("trim range requires 0 <= in < out", nil)
	}
	if out-in < trim.MinSeparation {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("trim range must span at least %.1fs", trim.MinSeparation), nil)
	}

	scene, err := s.Client.TrimScene(ctx, projectID, sequence, pipeline.TrimRequest{In: in, Out: out})
	if err != nil {
		return nil, err
	}

	updateErr := s.applyCached(ctx, projectID, func(p *models.Project) error {
		target, ok := p.SceneBySequence(sequence)
		if !ok {
			return apperrors.NewNotFoundError(fmt.Sprintf("scene %d not found", sequence), nil)
		}
		if scene.VideoClipURL != "" {
			target.VideoClipURL = scene.VideoClipURL
		}
		target.TrimPoints = &models.TrimPoints{In: in, Out: out}
		target.Duration = out - in
		target.UpdatedAt = time.Now()
		*scene = *target
		return nil
	})
	if updateErr != nil {
		return nil, updateErr
	}
	return scene, nil
}

// AddScene 在项目末尾追加场景
func (s *SceneService) AddScene(ctx context.Context, projectID string, req pipeline.AddSceneRequest) (*models.Scene, error) {
	if s.Projects.IsComposing(projectID) {
		return nil, apperrors.NewConflictError("cannot edit scenes while composition is running", nil)
	}

	scene, err := s.Client.AddScene(ctx, projectID, req)
	if err != nil {
		return nil, err
	}
	if _, err := s.Projects.Refresh(ctx, projectID); err != nil {
		s.logger.Warnf("refresh after scene add: %v", err)
	}
	return scene, nil
}

// UpdatePrompt 更新场景的提示词字段
func (s *SceneService) UpdatePrompt(ctx context.Context, projectID string, sequence int, req pipeline.UpdateSceneRequest) (*models.Scene, error) {
	scene, err := s.Client.UpdateScene(ctx, projectID, sequence, req)
	if err != nil {
		return nil, err
	}

	updateErr := s.applyCached(ctx, projectID, func(p *models.Project) error {
		target, ok := p.SceneBySequence(sequence)
		if !ok {
			return apperrors.NewNotFoundError(fmt.Sprintf("scene %d not found", sequence), nil)
		}
		if req.Prompt != nil {
			target.Prompt = *req.Prompt
		}
		if req.NegativePrompt != nil {
			target.NegativePrompt = *req.NegativePrompt
		}
		target.UpdatedAt = time.Now()
		return nil
	})
	if updateErr != nil {
		return nil, updateErr
	}
	return scene, nil
}

// DeleteScene 删除场景。最后一个场景不可删；合成中不可删。
func (s *SceneService) DeleteScene(ctx context.Context, projectID string, sequence int) error {
	if s.Projects.IsComposing(projectID) {
		return apperrors.NewConflictError("cannot delete scenes while composition is running", nil)
	}

	project, err := s.Projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if len(project.Scenes) <= 1 {
		return apperrors.NewConflictError("a project must keep at least one scene", nil)
	}
	if _, ok := project.SceneBySequence(sequence); !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("scene %d not found", sequence), nil)
	}

	if err := s.Client.DeleteScene(ctx, projectID, sequence); err != nil {
		return err
	}
	if _, err := s.Projects.Refresh(ctx, projectID); err != nil {
		s.logger.Warnf("refresh after scene delete: %v", err)
	}
	return nil
}

// Regenerate 重新生成场景视频，本地先把状态标回 pending
func (s *SceneService) Regenerate(ctx context.Context, projectID string, sequence int) error {
	if s.Projects.IsComposing(projectID) {
		return apperrors.NewConflictError("cannot regenerate scenes while composition is running", nil)
	}

	if err := s.Client.RegenerateScene(ctx, projectID, sequence); err != nil {
		return err
	}

	return s.applyCached(ctx, projectID, func(p *models.Project) error {
		target, ok := p.SceneBySequence(sequence)
		if !ok {
			return apperrors.NewNotFoundError(fmt.Sprintf("scene %d not found", sequence), nil)
		}
		target.Status = models.SceneStatusPending
		target.ErrorMessage = ""
		target.UpdatedAt = time.Now()
		return nil
	})
}

// StartLipSync 对场景的当前工作剪辑发起对口型任务。
// 需要场景已有可用视频和项目音频。
func (s *SceneService) StartLipSync(ctx context.Context, projectID string, sequence int) (string, error) {
	project, err := s.Projects.Get(ctx, projectID)
	if err != nil {
		return "", err
	}

	scene, ok := project.SceneBySequence(sequence)
	if !ok {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("scene %d not found", sequence), nil)
	}
	videoURL := scene.WorkingVideoURL()
	if videoURL == "" {
		return "", apperrors.NewConflictError("scene has no rendered video to lip-sync", nil)
	}
	if scene.AudioClipURL == "" {
		return "", apperrors.NewConflictError("scene has no audio clip to lip-sync against", nil)
	}

	handle, err := s.Client.StartLipSync(ctx, pipeline.LipSyncRequest{
		VideoURL: videoURL,
		AudioURL: scene.AudioClipURL,
	})
	if err != nil {
		return "", err
	}

	taskID := handle.JobID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	var tracker *ProgressTracker
	if s.Progress != nil {
		tracker = s.Progress.CreateTracker(taskID)
	}
	if s.Stats != nil {
		if err := s.Stats.RecordStart(taskID, projectID, "lipsync"); err != nil {
			s.logger.Warnf("record lipsync start %s: %v", taskID, err)
		}
	}

	go s.watchLipSync(projectID, sequence, taskID, tracker)

	return taskID, nil
}

func (s *SceneService) watchLipSync(projectID string, sequence int, taskID string, tracker *ProgressTracker) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	if tracker != nil {
		tracker.UpdateProgress(5, "lip-sync queued")
	}

	js, err := s.Client.WaitForJob(ctx, s.Projects.pollInterval, func(ctx context.Context) (*pipeline.JobStatus, error) {
		return s.Client.LipSyncStatus(ctx, taskID)
	})
	if err == nil && js.Status == "failed" {
		err = fmt.Errorf("lip-sync failed: %s", js.Error)
	}

	if err != nil {
		if tracker != nil {
			tracker.Fail(err.Error())
		}
		if s.Stats != nil {
			s.Stats.RecordFinish(taskID, err)
		}
		return
	}

	if js.URL != "" {
		updateErr := s.applyCached(ctx, projectID, func(p *models.Project) error {
			if target, ok := p.SceneBySequence(sequence); ok {
				target.LipSyncVideoURL = js.URL
				target.UpdatedAt = time.Now()
			}
			return nil
		})
		if updateErr != nil {
			s.logger.Warnf("apply lip-sync result for scene %d: %v", sequence, updateErr)
		}
	}

	if tracker != nil {
		tracker.Complete("lip-sync finished")
	}
	if s.Stats != nil {
		s.Stats.RecordFinish(taskID, nil)
	}
}
