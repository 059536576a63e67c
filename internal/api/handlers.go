// internal/api/handlers.go
package api

import (
	"context"
	"strconv"

	"github.com/badapple-ai/badapple-studio/internal/models"
	"github.com/badapple-ai/badapple-studio/internal/pipeline"
	"github.com/badapple-ai/badapple-studio/internal/services"
	"github.com/badapple-ai/badapple-studio/internal/utils"
	"github.com/gin-gonic/gin"
)

// Handler API处理器，持有从容器取出的全部服务
type Handler struct {
	WizardService   *services.WizardService
	ProjectService  *services.ProjectService
	SceneService    *services.SceneService
	AssetService    *services.AssetService
	ProgressService *services.ProgressService
	StatsService    *services.StatsService

	WebSocketHandler *WebSocketHandler
	Response         *ResponseHelper
	logger           *utils.Logger
}

// NewHandler 创建API处理器
func NewHandler(
	wizardService *services.WizardService,
	projectService *services.ProjectService,
	sceneService *services.SceneService,
	assetService *services.AssetService,
	progressService *services.ProgressService,
	statsService *services.StatsService,
) *Handler {
	h := &Handler{
		WizardService:   wizardService,
		ProjectService:  projectService,
		SceneService:    sceneService,
		AssetService:    assetService,
		ProgressService: progressService,
		StatsService:    statsService,
		Response:        NewResponseHelper(),
		logger:          utils.GetLogger(),
	}
	h.WebSocketHandler = NewWebSocketHandler(projectService, progressService)
	return h
}

// ===============================
// 向导相关
// ===============================

// CreateDraft 新建向导草稿
func (h *Handler) CreateDraft(c *gin.Context) {
	draft, err := h.WizardService.CreateDraft()
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, draft)
}

// ListDrafts 列出进行中的草稿
func (h *Handler) ListDrafts(c *gin.Context) {
	drafts, err := h.WizardService.ListDrafts()
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, drafts)
}

// GetDraft 读取草稿
func (h *Handler) GetDraft(c *gin.Context) {
	draft, err := h.WizardService.GetDraft(c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, draft)
}

// UpdateDraft 部分更新草稿答案
func (h *Handler) UpdateDraft(c *gin.Context) {
	var update services.DraftUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		h.Response.BadRequest(c, "请求体格式错误", err.Error())
		return
	}

	draft, err := h.WizardService.UpdateDraft(c.Param("id"), update)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, draft)
}

// GetDraftSteps 每一步的完成度与可达性
func (h *Handler) GetDraftSteps(c *gin.Context) {
	states, err := h.WizardService.Steps(c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, states)
}

// EnterDraftStep 校验某一步是否可进入
func (h *Handler) EnterDraftStep(c *gin.Context) {
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		h.Response.BadRequest(c, "步骤编号无效", err.Error())
		return
	}

	if err := h.WizardService.EnterStep(c.Param("id"), models.WizardStep(step)); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"step": step, "reachable": true})
}

// SubmitDraft 提交草稿创建项目
func (h *Handler) SubmitDraft(c *gin.Context) {
	result, err := h.WizardService.Submit(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, result)
}

// DeleteDraft 放弃草稿
func (h *Handler) DeleteDraft(c *gin.Context) {
	if err := h.WizardService.DeleteDraft(c.Param("id")); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"deleted": true})
}

// ===============================
// 项目相关
// ===============================

// GetProject 读取项目（缓存优先）
func (h *Handler) GetProject(c *gin.Context) {
	project, err := h.ProjectService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, project)
}

// RefreshProject 强制从后端刷新项目
func (h *Handler) RefreshProject(c *gin.Context) {
	project, err := h.ProjectService.Refresh(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, project)
}

// StartProjectPolling 开始定时刷新。
// 轮询生命周期挂在进程上下文而非请求上下文，由 StopPolling 终止。
func (h *Handler) StartProjectPolling(c *gin.Context) {
	h.ProjectService.StartPolling(context.Background(), c.Param("id"))
	h.Response.Success(c, gin.H{"polling": true})
}

// StopProjectPolling 停止定时刷新
func (h *Handler) StopProjectPolling(c *gin.Context) {
	h.ProjectService.StopPolling(c.Param("id"))
	h.Response.Success(c, gin.H{"polling": false})
}

// ComposeProject 发起最终合成
func (h *Handler) ComposeProject(c *gin.Context) {
	taskID, err := h.ProjectService.Compose(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"task_id": taskID})
}

// GetProjectJobs 项目的生成任务历史
func (h *Handler) GetProjectJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	jobs, err := h.StatsService.RecentJobs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, jobs)
}

// ===============================
// 场景相关
// ===============================

// AddScene 追加场景
func (h *Handler) AddScene(c *gin.Context) {
	var req pipeline.AddSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求体格式错误", err.Error())
		return
	}

	scene, err := h.SceneService.AddScene(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, scene)
}

// UpdateScene 更新场景提示词
func (h *Handler) UpdateScene(c *gin.Context) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		h.Response.BadRequest(c, "场景编号无效", err.Error())
		return
	}

	var req pipeline.UpdateSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求体格式错误", err.Error())
		return
	}

	scene, err := h.SceneService.UpdatePrompt(c.Request.Context(), c.Param("id"), seq, req)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, scene)
}

// DeleteScene 删除场景
func (h *Handler) DeleteScene(c *gin.Context) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		h.Response.BadRequest(c, "场景编号无效", err.Error())
		return
	}

	if err := h.SceneService.DeleteScene(c.Request.Context(), c.Param("id"), seq); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"deleted": true})
}

// ReorderScenes 应用新的展示顺序
func (h *Handler) ReorderScenes(c *gin.Context) {
	var req struct {
		Order []int `json:"order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求体格式错误", err.Error())
		return
	}

	if err := h.SceneService.Reorder(c.Request.Context(), c.Param("id"), req.Order); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"order": req.Order})
}

// MoveScene 把某个展示位置的场景拖到另一个位置
func (h *Handler) MoveScene(c *gin.Context) {
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求体格式错误", err.Error())
		return
	}

	if err := h.SceneService.Move(c.Request.Context(), c.Param("id"), req.From, req.To); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"from": req.From, "to": req.To})
}

// TrimScene 应用裁剪区间
func (h *Handler) TrimScene(c *gin.Context) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		h.Response.BadRequest(c, "场景编号无效", err.Error())
		return
	}

	var req struct {
		In  float64 `json:"in"`
		Out float64 `json:"out"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求体格式错误", err.Error())
		return
	}

	scene, err := h.SceneService.ApplyTrim(c.Request.Context(), c.Param("id"), seq, req.In, req.Out)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, scene)
}

// RegenerateScene 重新生成场景视频
func (h *Handler) RegenerateScene(c *gin.Context) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		h.Response.BadRequest(c, "场景编号无效", err.Error())
		return
	}

	if err := h.SceneService.Regenerate(c.Request.Context(), c.Param("id"), seq); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"regenerating": true})
}

// LipSyncScene 对场景发起对口型任务
func (h *Handler) LipSyncScene(c *gin.Context) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		h.Response.BadRequest(c, "场景编号无效", err.Error())
		return
	}

	taskID, err := h.SceneService.StartLipSync(c.Request.Context(), c.Param("id"), seq)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"task_id": taskID})
}

// ===============================
// 进度相关
// ===============================

// GetProgress 读取任务进度快照
func (h *Handler) GetProgress(c *gin.Context) {
	tracker, ok := h.ProgressService.GetTracker(c.Param("taskID"))
	if !ok {
		h.Response.NotFound(c, "任务不存在")
		return
	}
	h.Response.Success(c, gin.H{
		"task_id":  tracker.TaskID,
		"progress": tracker.Progress,
		"message":  tracker.Message,
		"status":   tracker.Status,
	})
}
