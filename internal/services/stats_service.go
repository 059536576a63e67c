// internal/services/stats_service.go
package services

import (
	"context"
	"time"

	"github.com/badapple-ai/badapple-studio/internal/db"
	"github.com/badapple-ai/badapple-studio/internal/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSnapshot 当前主机资源状况，用于健康面板
type SystemSnapshot struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsedMB  uint64    `json:"memory_used_mb"`
	MemoryTotalMB uint64    `json:"memory_total_mb"`
	Timestamp     time.Time `json:"timestamp"`
}

// StatsOverview 统计总览：任务计数 + 系统快照
type StatsOverview struct {
	Jobs   *db.JobCounts   `json:"jobs"`
	System *SystemSnapshot `json:"system"`
}

// StatsService records generation-job history and reports system health.
type StatsService struct {
	store  *db.Store
	logger *utils.Logger
}

// NewStatsService 创建统计服务
func NewStatsService(store *db.Store) *StatsService {
	return &StatsService{
		store:  store,
		logger: utils.GetLogger(),
	}
}

// RecordStart 记录一个新任务开始
func (s *StatsService) RecordStart(jobID, projectID, kind string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.store.RecordStart(ctx, jobID, projectID, kind)
}

// RecordFinish 记录任务结束（jobErr 为 nil 表示成功）
func (s *StatsService) RecordFinish(jobID string, jobErr error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.store.RecordFinish(ctx, jobID, jobErr)
}

// RecentJobs 返回最近的任务历史，projectID 非空时只看该项目
func (s *StatsService) RecentJobs(ctx context.Context, projectID string, limit int) ([]db.JobRecord, error) {
	return s.store.RecentJobs(ctx, projectID, limit)
}

// Overview 汇总任务计数和系统资源快照
func (s *StatsService) Overview(ctx context.Context) (*StatsOverview, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsOverview{
		Jobs:   counts,
		System: s.SystemSnapshot(),
	}, nil
}

// SystemSnapshot samples CPU and memory. Sampling failures degrade to
// zero values rather than failing the request.
func (s *StatsService) SystemSnapshot() *SystemSnapshot {
	snap := &SystemSnapshot{Timestamp: time.Now()}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	} else if err != nil {
		s.logger.Debugf("sample cpu: %v", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryPercent = vm.UsedPercent
		snap.MemoryUsedMB = vm.Used / (1 << 20)
		snap.MemoryTotalMB = vm.Total / (1 << 20)
	} else {
		s.logger.Debugf("sample memory: %v", err)
	}

	return snap
}
