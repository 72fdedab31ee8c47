package modulecache

import (
	metricsiface "github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/metrics"
)

var _ metricsiface.MemoryReporter = (*Cache)(nil)

// ModuleName 内存上报名称
func (c *Cache) ModuleName() string {
	return "bridge.modulecache"
}

// CollectMemoryStats 上报条目数与本句柄累计的编译内存
func (c *Cache) CollectMemoryStats() metricsiface.ModuleMemoryStats {
	n := int64(c.Len())
	return metricsiface.ModuleMemoryStats{
		Module:      c.ModuleName(),
		Objects:     n,
		ApproxBytes: int64(c.MemoryConsumed()),
		CacheItems:  n,
	}
}
