// Package metrics 进程内存采样与 Prometheus 暴露
//
// 📋 **组成**
//   - MemoryDoctor：周期性采样 runtime.MemStats 与各 MemoryReporter 的上报，
//     保留最近的样本窗口并更新 Prometheus 指标
//   - Server：可选的 /metrics HTTP 端点
package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	metricsiface "github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/metrics"
)

// MemoryDoctorConfig 采样配置
type MemoryDoctorConfig struct {
	SampleInterval time.Duration // 采样间隔
	WindowSize     int           // 保留的样本数
}

// HeapSample 一次采样
type HeapSample struct {
	Time         time.Time                        `json:"time"`
	HeapAlloc    uint64                           `json:"heap_alloc"`
	HeapInuse    uint64                           `json:"heap_inuse"`
	Sys          uint64                           `json:"sys"`
	NumGC        uint32                           `json:"num_gc"`
	NumGoroutine int                              `json:"num_goroutine"`
	Modules      []metricsiface.ModuleMemoryStats `json:"modules"`
}

// MemoryDoctor 内存采样组件
type MemoryDoctor struct {
	cfg       MemoryDoctorConfig
	logger    *zap.Logger
	reporters []metricsiface.MemoryReporter

	mu      sync.RWMutex
	history []HeapSample
}

// NewMemoryDoctor 创建 MemoryDoctor，零值配置取默认值
func NewMemoryDoctor(cfg MemoryDoctorConfig, reporters []metricsiface.MemoryReporter, logger *zap.Logger) *MemoryDoctor {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 10 * time.Second
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryDoctor{
		cfg:       cfg,
		logger:    logger,
		reporters: reporters,
		history:   make([]HeapSample, 0, cfg.WindowSize),
	}
}

// Start 运行采样循环，直到 ctx 取消
func (d *MemoryDoctor) Start(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.SampleInterval)
	defer ticker.Stop()

	d.logger.Debug("MemoryDoctor 启动",
		zap.Duration("sample_interval", d.cfg.SampleInterval),
		zap.Int("window_size", d.cfg.WindowSize))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.SampleOnce()
		}
	}
}

// SampleOnce 立即采样一次并返回样本
func (d *MemoryDoctor) SampleOnce() HeapSample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	s := HeapSample{
		Time:         time.Now(),
		HeapAlloc:    ms.HeapAlloc,
		HeapInuse:    ms.HeapInuse,
		Sys:          ms.Sys,
		NumGC:        ms.NumGC,
		NumGoroutine: runtime.NumGoroutine(),
	}
	for _, r := range d.reporters {
		if r == nil {
			continue
		}
		s.Modules = append(s.Modules, r.CollectMemoryStats())
	}

	d.mu.Lock()
	d.history = append(d.history, s)
	if len(d.history) > d.cfg.WindowSize {
		d.history = d.history[len(d.history)-d.cfg.WindowSize:]
	}
	d.mu.Unlock()

	observeSample(s)
	return s
}

// Latest 最近一次样本
func (d *MemoryDoctor) Latest() (HeapSample, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.history) == 0 {
		return HeapSample{}, false
	}
	return d.history[len(d.history)-1], true
}

// History 样本窗口的副本，按时间先后排列
func (d *MemoryDoctor) History() []HeapSample {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]HeapSample(nil), d.history...)
}
