// Package bridge 提供宿主桥接层（编排器、模块缓存、版本适配器）的配置
package bridge

import (
	"fmt"
	"time"

	"github.com/weisyn/hostbridge/pkg/types"
)

// BridgeOptions 宿主桥接配置选项
type BridgeOptions struct {
	CoreMaxProtocol       uint32   `json:"core_max_protocol"`
	Protocols             []uint32 `json:"protocols"`
	MarshallingDepthLimit uint32   `json:"marshalling_depth_limit"`
	EnableMetrics         bool     `json:"enable_metrics"`
	TraceLogging          bool     `json:"trace_logging"`

	ModuleCache ModuleCacheOptions `json:"module_cache"`
	Metrics     MetricsOptions     `json:"metrics"`
}

// ModuleCacheOptions 模块缓存配置选项
type ModuleCacheOptions struct {
	MemoryLimitPages   uint32        `json:"memory_limit_pages"`
	RecordLifeWindow   time.Duration `json:"record_life_window"`
	RecordMaxEntrySize int           `json:"record_max_entry_size"`
}

// MetricsOptions 内存采样与指标端点配置
type MetricsOptions struct {
	ListenAddr     string        `json:"listen_addr"` // 为空时不启动 HTTP 端点
	SampleInterval time.Duration `json:"sample_interval"`
	WindowSize     int           `json:"window_size"`
}

// Config 宿主桥接配置实现
type Config struct {
	options *BridgeOptions
}

// New 创建宿主桥接配置
func New(userConfig *types.UserBridgeConfig) *Config {
	options := createDefaultBridgeOptions()
	if userConfig != nil {
		applyUserBridgeConfig(options, userConfig)
	}
	return &Config{options: options}
}

// createDefaultBridgeOptions 创建默认配置
func createDefaultBridgeOptions() *BridgeOptions {
	lifeWindow, _ := time.ParseDuration(defaultRecordLifeWindow)
	return &BridgeOptions{
		CoreMaxProtocol:       defaultCoreMaxProtocol,
		Protocols:             append([]uint32(nil), defaultProtocols...),
		MarshallingDepthLimit: defaultMarshallingDepthLimit,
		EnableMetrics:         defaultEnableMetrics,
		TraceLogging:          defaultTraceLogging,
		ModuleCache: ModuleCacheOptions{
			MemoryLimitPages:   defaultMemoryLimitPages,
			RecordLifeWindow:   lifeWindow,
			RecordMaxEntrySize: defaultRecordMaxEntrySize,
		},
		Metrics: MetricsOptions{
			ListenAddr:     defaultMetricsListenAddr,
			SampleInterval: defaultMetricsSampleInterval,
			WindowSize:     defaultMetricsWindowSize,
		},
	}
}

// applyUserBridgeConfig 用配置文件中出现的字段覆盖默认值
func applyUserBridgeConfig(options *BridgeOptions, user *types.UserBridgeConfig) {
	if user.CoreMaxProtocol != nil {
		options.CoreMaxProtocol = *user.CoreMaxProtocol
	}
	if len(user.Protocols) > 0 {
		options.Protocols = append([]uint32(nil), user.Protocols...)
	}
	if user.MarshallingDepthLimit != nil {
		options.MarshallingDepthLimit = *user.MarshallingDepthLimit
	}
	if user.EnableMetrics != nil {
		options.EnableMetrics = *user.EnableMetrics
	}
	if user.TraceLogging != nil {
		options.TraceLogging = *user.TraceLogging
	}
	if mc := user.ModuleCache; mc != nil {
		if mc.MemoryLimitPages != nil {
			options.ModuleCache.MemoryLimitPages = *mc.MemoryLimitPages
		}
		if mc.RecordLifeWindow != nil {
			// 非法时长保留默认值
			if d, err := time.ParseDuration(*mc.RecordLifeWindow); err == nil && d > 0 {
				options.ModuleCache.RecordLifeWindow = d
			}
		}
		if mc.RecordMaxEntrySize != nil {
			options.ModuleCache.RecordMaxEntrySize = *mc.RecordMaxEntrySize
		}
	}
	if m := user.Metrics; m != nil {
		if m.ListenAddr != nil {
			options.Metrics.ListenAddr = *m.ListenAddr
		}
		if m.SampleInterval != nil {
			if d, err := time.ParseDuration(*m.SampleInterval); err == nil && d > 0 {
				options.Metrics.SampleInterval = d
			}
		}
		if m.WindowSize != nil && *m.WindowSize > 0 {
			options.Metrics.WindowSize = *m.WindowSize
		}
	}
}

// Validate 校验配置的一致性
func (c *Config) Validate() error {
	o := c.options
	if len(o.Protocols) == 0 {
		return fmt.Errorf("bridge.protocols 不能为空")
	}
	for _, p := range o.Protocols {
		if p > o.CoreMaxProtocol {
			return fmt.Errorf("bridge.protocols 包含 %d，高于 core_max_protocol=%d", p, o.CoreMaxProtocol)
		}
	}
	if o.MarshallingDepthLimit == 0 {
		return fmt.Errorf("bridge.marshalling_depth_limit 必须大于 0")
	}
	if o.ModuleCache.MemoryLimitPages == 0 || o.ModuleCache.MemoryLimitPages > 65536 {
		return fmt.Errorf("bridge.module_cache.memory_limit_pages 超出范围: %d", o.ModuleCache.MemoryLimitPages)
	}
	return nil
}

// GetOptions 获取完整配置
func (c *Config) GetOptions() *BridgeOptions {
	return c.options
}
