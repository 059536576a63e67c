// internal/api/router.go
package api

import (
	"fmt"

	"github.com/badapple-ai/badapple-studio/internal/config"
	"github.com/badapple-ai/badapple-studio/internal/di"
	"github.com/badapple-ai/badapple-studio/internal/services"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// 只从容器获取服务，不再创建新实例
	wizardService, ok := container.Get("wizard").(*services.WizardService)
	if !ok {
		return nil, fmt.Errorf("向导服务未正确初始化")
	}

	projectService, ok := container.Get("project").(*services.ProjectService)
	if !ok {
		return nil, fmt.Errorf("项目服务未正确初始化")
	}

	sceneService, ok := container.Get("scene").(*services.SceneService)
	if !ok {
		return nil, fmt.Errorf("场景服务未正确初始化")
	}

	assetService, ok := container.Get("asset").(*services.AssetService)
	if !ok {
		return nil, fmt.Errorf("资产服务未正确初始化")
	}

	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}

	statsService, ok := container.Get("stats").(*services.StatsService)
	if !ok {
		return nil, fmt.Errorf("统计服务未正确初始化")
	}

	handler := NewHandler(
		wizardService,
		projectService,
		sceneService,
		assetService,
		progressService,
		statsService,
	)

	r := gin.Default()

	r.Use(corsMiddleware())
	r.Use(RequestIDMiddleware())

	// 静态文件服务
	r.Static("/static", cfg.StaticDir)

	// WebSocket 支持
	r.GET("/ws/projects/:id", handler.WebSocketHandler.ProjectWebSocket)
	r.GET("/ws/progress/:taskID", handler.WebSocketHandler.ProgressWebSocket)
	r.GET("/ws/trim", handler.WebSocketHandler.TrimPreviewWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		// ===============================
		// 向导相关路由
		// ===============================
		wizardGroup := api.Group("/wizard/drafts")
		{
			wizardGroup.POST("", handler.CreateDraft)
			wizardGroup.GET("", handler.ListDrafts)
			wizardGroup.GET("/:id", handler.GetDraft)
			wizardGroup.PATCH("/:id", handler.UpdateDraft)
			wizardGroup.DELETE("/:id", handler.DeleteDraft)
			wizardGroup.GET("/:id/steps", handler.GetDraftSteps)
			wizardGroup.POST("/:id/steps/:step/enter", handler.EnterDraftStep)
			wizardGroup.POST("/:id/submit", GenerationRateLimit(), handler.SubmitDraft)
		}

		// ===============================
		// 项目相关路由
		// ===============================
		projectsGroup := api.Group("/projects/:id")
		{
			projectsGroup.GET("", handler.GetProject)
			projectsGroup.POST("/refresh", handler.RefreshProject)
			projectsGroup.POST("/polling/start", handler.StartProjectPolling)
			projectsGroup.POST("/polling/stop", handler.StopProjectPolling)
			projectsGroup.POST("/compose", GenerationRateLimit(), handler.ComposeProject)
			projectsGroup.GET("/jobs", handler.GetProjectJobs)
			projectsGroup.GET("/share/qr", handler.GetShareQR)

			// 场景相关路由
			scenesGroup := projectsGroup.Group("/scenes")
			{
				scenesGroup.POST("", handler.AddScene)
				scenesGroup.POST("/reorder", handler.ReorderScenes)
				scenesGroup.POST("/move", handler.MoveScene)
				scenesGroup.PATCH("/:seq", handler.UpdateScene)
				scenesGroup.DELETE("/:seq", handler.DeleteScene)
				scenesGroup.POST("/:seq/trim", handler.TrimScene)
				scenesGroup.POST("/:seq/regenerate", GenerationRateLimit(), handler.RegenerateScene)
				scenesGroup.POST("/:seq/lipsync", GenerationRateLimit(), handler.LipSyncScene)
			}
		}

		// ===============================
		// 资产相关路由
		// ===============================
		assetsGroup := api.Group("/assets")
		{
			assetsGroup.POST("/audio", handler.UploadAudio)
			assetsGroup.GET("/audio/:id", handler.GetAudioAsset)
			assetsGroup.POST("/audio/youtube", GenerationRateLimit(), handler.ConvertYouTubeAudio)
			assetsGroup.POST("/music", GenerationRateLimit(), handler.GenerateMusic)
			assetsGroup.POST("/reference-images", GenerationRateLimit(), handler.GenerateReferenceImages)
			assetsGroup.POST("/reference-images/upload", handler.UploadReferenceImage)
		}

		// ===============================
		// 进度与统计
		// ===============================
		api.GET("/progress/:taskID", handler.GetProgress)
		api.GET("/stats", handler.GetStats)
		api.GET("/health", handler.GetHealth)
	}

	return r, nil
}
