package bridge

import "time"

// 宿主桥接配置默认值
const (
	// defaultCoreMaxProtocol 账本引擎当前支持的最高协议
	// 版本报告中用它判断某个宿主是否为"最新协议"
	defaultCoreMaxProtocol uint32 = 23

	// defaultMarshallingDepthLimit 编解码嵌套深度上限
	// 与账本引擎侧的解码栈深度保持一致
	defaultMarshallingDepthLimit uint32 = 1000

	// defaultEnableMetrics 默认注册 Prometheus 指标
	defaultEnableMetrics = true

	// defaultTraceLogging 默认关闭执行追踪
	// 追踪会为每次宿主函数分发输出一条 debug 日志，开销较大
	defaultTraceLogging = false

	// === 模块缓存 ===

	// defaultMemoryLimitPages 单个合约实例线性内存上限：1024页 = 64MiB
	defaultMemoryLimitPages uint32 = 1024

	// defaultRecordLifeWindow 编译记录在 bigcache 中的保留时长
	// 模块本身常驻，记录只用于观测，过期后 Record() 返回 false
	defaultRecordLifeWindow = "24h"

	// defaultRecordMaxEntrySize 单条编译记录的预估大小（字节）
	defaultRecordMaxEntrySize = 256

	// === 指标 ===

	// defaultMetricsListenAddr 默认不启动指标端点
	defaultMetricsListenAddr = ""

	// defaultMetricsSampleInterval 内存采样间隔
	defaultMetricsSampleInterval = 10 * time.Second

	// defaultMetricsWindowSize 保留的内存样本数
	defaultMetricsWindowSize = 30
)

// defaultProtocols 默认同时绑定的宿主协议版本
var defaultProtocols = []uint32{21, 22, 23}
