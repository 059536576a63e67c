// internal/app/app.go
package app

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/badapple-ai/badapple-studio/internal/config"
	"github.com/badapple-ai/badapple-studio/internal/db"
	"github.com/badapple-ai/badapple-studio/internal/di"
	"github.com/badapple-ai/badapple-studio/internal/pipeline"
	"github.com/badapple-ai/badapple-studio/internal/services"
	"github.com/badapple-ai/badapple-studio/internal/storage"
	"github.com/badapple-ai/badapple-studio/internal/utils"
)

// InitServices 按依赖顺序创建并注册所有服务。
// 顺序：存储/数据库 → 管线客户端 → 无依赖服务 → 依赖服务。
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()
	logger := utils.GetLogger()

	// 1. 文件存储（草稿、项目快照、资产）
	fileStorage, err := storage.NewFileStorage(filepath.Join(cfg.DataDir, "store"))
	if err != nil {
		return fmt.Errorf("初始化文件存储失败: %w", err)
	}
	container.Register("storage", fileStorage)

	// 2. 生成任务历史数据库
	jobStore, err := db.New(cfg.StatsDBPath)
	if err != nil {
		return fmt.Errorf("初始化任务历史数据库失败: %w", err)
	}
	container.Register("jobdb", jobStore)

	// 3. 管线后端客户端
	client := pipeline.NewClient(cfg.PipelineBaseURL, cfg.PipelineAPIKey, logger)
	container.Register("pipeline", client)

	// 4. 无依赖服务
	progressService := services.NewProgressService()
	container.Register("progress", progressService)

	statsService := services.NewStatsService(jobStore)
	container.Register("stats", statsService)

	// 5. 项目服务（持有缓存与轮询）
	projectService := services.NewProjectService(client, fileStorage, cfg.PollInterval())
	projectService.Progress = progressService
	projectService.Stats = statsService
	container.Register("project", projectService)

	// 6. 场景服务
	sceneService := services.NewSceneService(client, projectService)
	sceneService.Progress = progressService
	sceneService.Stats = statsService
	container.Register("scene", sceneService)

	// 7. 资产服务
	assetService := services.NewAssetService(client, fileStorage, cfg.PollInterval())
	assetService.Progress = progressService
	assetService.Stats = statsService
	container.Register("asset", assetService)

	// 8. 向导服务
	wizardService := services.NewWizardService(fileStorage, projectService, assetService)
	container.Register("wizard", wizardService)

	// 定期清理已完成的进度跟踪器
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			progressService.CleanupCompletedTasks(2 * time.Hour)
		}
	}()

	logger.Infof("services initialized: %v", container.GetNames())
	return nil
}

// Cleanup 释放需要显式关闭的资源
func Cleanup() {
	container := di.GetContainer()
	logger := utils.GetLogger()

	if store, ok := container.Get("jobdb").(*db.Store); ok && store != nil {
		if err := store.Close(); err != nil {
			logger.Warnf("close job database: %v", err)
		}
	}

	logger.Close()
}

// InitLogger 初始化日志系统，日志文件按日期命名
func InitLogger(logDir string) error {
	logFile := filepath.Join(logDir, fmt.Sprintf("studio_%s.log", time.Now().Format("2006-01-02")))
	return utils.InitLogger(logFile)
}
