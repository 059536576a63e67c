// internal/api/asset_handlers.go
package api

import (
	"io"
	"strings"

	"github.com/badapple-ai/badapple-studio/internal/config"
	"github.com/badapple-ai/badapple-studio/internal/models"
	"github.com/badapple-ai/badapple-studio/internal/pipeline"
	"github.com/gin-gonic/gin"
)

// UploadAudio 上传音频文件
func (h *Handler) UploadAudio(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.Response.BadRequest(c, "缺少上传文件", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.Response.Error(c, 500, ErrorFileUploadFailed, "读取上传内容失败", err.Error())
		return
	}

	asset, err := h.AssetService.UploadAudio(header.Filename, data)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, asset)
}

// GetAudioAsset 读取音频资产元数据
func (h *Handler) GetAudioAsset(c *gin.Context) {
	asset, err := h.AssetService.GetAudioAsset(c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, asset)
}

// ConvertYouTubeAudio 把 YouTube 链接转成音频资产
func (h *Handler) ConvertYouTubeAudio(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求体格式错误", err.Error())
		return
	}

	asset, err := h.AssetService.ConvertYouTube(c.Request.Context(), req.URL)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, asset)
}

// GenerateMusic 发起 AI 音乐生成
func (h *Handler) GenerateMusic(c *gin.Context) {
	var req pipeline.MusicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求体格式错误", err.Error())
		return
	}

	taskID, err := h.AssetService.GenerateMusic(c.Request.Context(), req)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"task_id": taskID})
}

// GenerateReferenceImages 生成参考图候选
func (h *Handler) GenerateReferenceImages(c *gin.Context) {
	var req struct {
		Mode   models.ProjectMode `json:"mode"`
		Prompt string             `json:"prompt"`
		Count  int                `json:"count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求体格式错误", err.Error())
		return
	}
	if !req.Mode.Valid() {
		h.Response.BadRequest(c, "创作模式无效")
		return
	}

	candidates, err := h.AssetService.GenerateReferenceCandidates(c.Request.Context(), req.Mode, req.Prompt, req.Count)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, candidates)
}

// UploadReferenceImage 上传参考图
func (h *Handler) UploadReferenceImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.Response.BadRequest(c, "缺少上传文件", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.Response.Error(c, 500, ErrorFileUploadFailed, "读取上传内容失败", err.Error())
		return
	}

	candidate, err := h.AssetService.UploadReferenceImage(header.Filename, data)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, candidate)
}

// GetShareQR 生成项目分享二维码
func (h *Handler) GetShareQR(c *gin.Context) {
	cfg := config.GetCurrentConfig()
	base := strings.TrimSuffix(cfg.ShareBaseURL, "/")
	if base == "" {
		h.Response.Conflict(c, "未配置分享地址")
		return
	}

	png, err := h.AssetService.ShareQR(base + "/projects/" + c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.FileResponse(c, png, "image/png")
}

// GetStats 任务计数与系统资源快照
func (h *Handler) GetStats(c *gin.Context) {
	overview, err := h.StatsService.Overview(c.Request.Context())
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, overview)
}

// GetHealth 健康检查
func (h *Handler) GetHealth(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status": "ok",
		"system": h.StatsService.SystemSnapshot(),
	})
}
