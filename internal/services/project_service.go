// internal/services/project_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/badapple-ai/badapple-studio/internal/errors"
	"github.com/badapple-ai/badapple-studio/internal/models"
	"github.com/badapple-ai/badapple-studio/internal/pipeline"
	"github.com/badapple-ai/badapple-studio/internal/storage"
	"github.com/badapple-ai/badapple-studio/internal/utils"
	"github.com/google/uuid"
)

const projectsDir = "projects"

// errProjectNotCached 标记 mutateCached 未命中缓存；调用方可以先
// Refresh 再重试，而不是把错误往外抛
var errProjectNotCached = errors.New("project not in cache")

// ProjectService owns the studio-side cache of project state. The pipeline
// backend is the source of truth; the cache is refreshed by fixed-interval
// polling and snapshotted to file storage so a restart does not start cold.
type ProjectService struct {
	Client   *pipeline.Client
	Storage  *storage.FileStorage
	Progress *ProgressService
	Stats    *StatsService

	logger       *utils.Logger
	pollInterval time.Duration

	mutex     sync.RWMutex
	projects  map[string]*models.Project
	watchers  map[string]map[chan *models.Project]bool
	pollStops map[string]context.CancelFunc
	composing map[string]bool
}

// NewProjectService 创建项目服务
func NewProjectService(client *pipeline.Client, fs *storage.FileStorage, pollInterval time.Duration) *ProjectService {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &ProjectService{
		Client:       client,
		Storage:      fs,
		logger:       utils.GetLogger(),
		pollInterval: pollInterval,
		projects:     make(map[string]*models.Project),
		watchers:     make(map[string]map[chan *models.Project]bool),
		pollStops:    make(map[string]context.CancelFunc),
		composing:    make(map[string]bool),
	}
}

// Create 通过后端创建项目并预热缓存
func (s *ProjectService) Create(ctx context.Context, req pipeline.CreateProjectRequest) (string, error) {
	resp, err := s.Client.CreateProject(ctx, req)
	if err != nil {
		return "", err
	}

	if _, err := s.Refresh(ctx, resp.ProjectID); err != nil {
		// 创建已经成功，缓存预热失败只记日志
		s.logger.Warnf("project %s created but initial refresh failed: %v", resp.ProjectID, err)
	}

	return resp.ProjectID, nil
}

// Get returns the cached project, falling back to the on-disk snapshot and
// finally to a backend fetch.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*models.Project, error) {
	s.mutex.RLock()
	if p, ok := s.projects[projectID]; ok {
		cp := cloneProject(p)
		s.mutex.RUnlock()
		return cp, nil
	}
	s.mutex.RUnlock()

	var snapshot models.Project
	if err := s.Storage.LoadJSON(projectsDir, projectID+".json", &snapshot); err == nil && snapshot.ID != "" {
		s.mutex.Lock()
		s.projects[projectID] = &snapshot
		s.mutex.Unlock()
		return cloneProject(&snapshot), nil
	}

	return s.Refresh(ctx, projectID)
}

// Refresh 从后端拉取项目最新状态并更新缓存与快照
func (s *ProjectService) Refresh(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := s.Client.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	normalizeDisplayOrder(project)

	s.mutex.Lock()
	// Keep the studio-side composing flag across refreshes; the backend
	// does not report it.
	project.Composing = s.composing[projectID]
	s.projects[projectID] = project
	s.mutex.Unlock()

	if err := s.Storage.SaveJSON(projectsDir, projectID+".json", project); err != nil {
		s.logger.Warnf("snapshot project %s: %v", projectID, err)
	}

	s.notifyWatchers(projectID, project)

	return cloneProject(project), nil
}

// normalizeDisplayOrder 把缺失的 display sequence 回填为 stable sequence
func normalizeDisplayOrder(p *models.Project) {
	for i := range p.Scenes {
		if p.Scenes[i].DisplaySequence == 0 {
			p.Scenes[i].DisplaySequence = p.Scenes[i].Sequence
		}
	}
}

// mutateCached runs fn against the cached project under the write lock and
// re-snapshots. Used by SceneService for optimistic updates.
func (s *ProjectService) mutateCached(projectID string, fn func(*models.Project) error) error {
	s.mutex.Lock()
	project, ok := s.projects[projectID]
	if !ok {
		s.mutex.Unlock()
		return apperrors.NewNotFoundError("project not in cache", errProjectNotCached)
	}
	if err := fn(project); err != nil {
		s.mutex.Unlock()
		return err
	}
	snapshot := cloneProject(project)
	s.mutex.Unlock()

	if err := s.Storage.SaveJSON(projectsDir, projectID+".json", snapshot); err != nil {
		s.logger.Warnf("snapshot project %s: %v", projectID, err)
	}
	s.notifyWatchers(projectID, snapshot)
	return nil
}

// Subscribe registers a watcher channel receiving a project copy on every
// cache update. The channel is buffered; slow consumers miss updates
// rather than blocking the poller.
func (s *ProjectService) Subscribe(projectID string) chan *models.Project {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ch := make(chan *models.Project, 4)
	if s.watchers[projectID] == nil {
		s.watchers[projectID] = make(map[chan *models.Project]bool)
	}
	s.watchers[projectID][ch] = true
	return ch
}

// Unsubscribe removes a watcher channel.
func (s *ProjectService) Unsubscribe(projectID string, ch chan *models.Project) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if set, ok := s.watchers[projectID]; ok {
		if set[ch] {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(s.watchers, projectID)
		}
	}
}

func (s *ProjectService) notifyWatchers(projectID string, project *models.Project) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for ch := range s.watchers[projectID] {
		select {
		case ch <- cloneProject(project):
		default:
		}
	}
}

// StartPolling begins refreshing the project at the configured fixed
// interval until StopPolling or ctx cancellation. Starting an already
// polled project is a no-op.
func (s *ProjectService) StartPolling(ctx context.Context, projectID string) {
	s.mutex.Lock()
	if _, running := s.pollStops[projectID]; running {
		s.mutex.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	s.pollStops[projectID] = cancel
	s.mutex.Unlock()

	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				if _, err := s.Refresh(pollCtx, projectID); err != nil {
					s.logger.Warnf("poll project %s: %v", projectID, err)
				}
			}
		}
	}()
}

// StopPolling stops the poll loop for the project, if any.
func (s *ProjectService) StopPolling(projectID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if cancel, ok := s.pollStops[projectID]; ok {
		cancel()
		delete(s.pollStops, projectID)
	}
}

// IsComposing reports whether a composition is in flight for the project.
func (s *ProjectService) IsComposing(projectID string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.composing[projectID]
}

// Compose 发起最终合成。前提：每个场景都已有可播放的视频
// （以 URL 是否存在判断，不看 status 字段），且当前没有合成在跑。
func (s *ProjectService) Compose(ctx context.Context, projectID string) (string, error) {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return "", err
	}
	if !project.GenerationDone() {
		return "", apperrors.NewConflictError("not every scene has a rendered video yet", nil)
	}

	s.mutex.Lock()
	if s.composing[projectID] {
		s.mutex.Unlock()
		return "", apperrors.NewConflictError("composition already in progress", nil)
	}
	s.composing[projectID] = true
	if p, ok := s.projects[projectID]; ok {
		p.Composing = true
	}
	s.mutex.Unlock()

	handle, err := s.Client.ComposeProject(ctx, projectID)
	if err != nil {
		s.clearComposing(projectID)
		return "", err
	}

	taskID := handle.JobID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	tracker := s.Progress.CreateTracker(taskID)
	s.recordJobStart(taskID, projectID, "compose")

	go s.watchComposition(projectID, taskID, tracker)

	return taskID, nil
}

// watchComposition polls the compose job to completion, then refreshes the
// project so the final video URL lands in the cache.
func (s *ProjectService) watchComposition(projectID, taskID string, tracker *ProgressTracker) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	defer s.clearComposing(projectID)

	tracker.UpdateProgress(5, "composition queued")

	js, err := s.Client.WaitForJob(ctx, s.pollInterval, func(ctx context.Context) (*pipeline.JobStatus, error) {
		return s.Client.ComposeStatus(ctx, taskID)
	})
	if err != nil {
		tracker.Fail(err.Error())
		s.recordJobFinish(taskID, err)
		return
	}
	if js.Status == "failed" {
		err := fmt.Errorf("composition failed: %s", js.Error)
		tracker.Fail(js.Error)
		s.recordJobFinish(taskID, err)
		return
	}

	tracker.Complete("composition finished")
	s.recordJobFinish(taskID, nil)

	if _, err := s.Refresh(ctx, projectID); err != nil {
		s.logger.Warnf("refresh after composition %s: %v", projectID, err)
	}
}

func (s *ProjectService) clearComposing(projectID string) {
	s.mutex.Lock()
	delete(s.composing, projectID)
	if p, ok := s.projects[projectID]; ok {
		p.Composing = false
	}
	s.mutex.Unlock()
}

func (s *ProjectService) recordJobStart(id, projectID, kind string) {
	if s.Stats == nil {
		return
	}
	if err := s.Stats.RecordStart(id, projectID, kind); err != nil {
		s.logger.Warnf("record job start %s: %v", id, err)
	}
}

func (s *ProjectService) recordJobFinish(id string, jobErr error) {
	if s.Stats == nil {
		return
	}
	if err := s.Stats.RecordFinish(id, jobErr); err != nil {
		s.logger.Warnf("record job finish %s: %v", id, err)
	}
}

func cloneProject(p *models.Project) *models.Project {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Scenes = make([]models.Scene, len(p.Scenes))
	copy(cp.Scenes, p.Scenes)
	for i := range cp.Scenes {
		if p.Scenes[i].TrimPoints != nil {
			tp := *p.Scenes[i].TrimPoints
			cp.Scenes[i].TrimPoints = &tp
		}
	}
	return &cp
}
