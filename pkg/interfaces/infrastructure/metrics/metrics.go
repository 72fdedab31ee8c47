// Package metrics 内存监控接口定义
//
// 持有大块内存的组件（如模块缓存）实现 MemoryReporter，
// 通过 fx 值组 "memory_reporters" 交给 internal/core/infrastructure/metrics 采样。
package metrics

// MemoryReporterGroup fx 值组名称
const MemoryReporterGroup = "memory_reporters"

// ModuleMemoryStats 模块自行上报的逻辑内存状态
//
// 不追求绝对精确，关键是反映趋势与相对大小。
type ModuleMemoryStats struct {
	Module      string `json:"module"`       // 模块名称：bridge.modulecache ...
	Objects     int64  `json:"objects"`      // 主要对象数
	ApproxBytes int64  `json:"approx_bytes"` // 模块估算的字节数
	CacheItems  int64  `json:"cache_items"`  // 缓存条目
}

// MemoryReporter 内存上报接口
type MemoryReporter interface {
	// ModuleName 返回模块名称
	ModuleName() string

	// CollectMemoryStats 收集当前模块的内存统计信息
	CollectMemoryStats() ModuleMemoryStats
}
