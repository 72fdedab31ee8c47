package types

// AppConfig 应用配置（对应 JSON 配置文件的顶层结构）
//
// 只声明配置文件中可能出现的字段，所有字段均为指针，
// 未出现的字段由各配置包的默认值补齐。
type AppConfig struct {
	// 日志配置 - 对应配置文件中的 log 字段
	Log *UserLogConfig `json:"log,omitempty"`

	// 宿主桥接配置 - 对应配置文件中的 bridge 字段
	Bridge *UserBridgeConfig `json:"bridge,omitempty"`
}

// UserLogConfig 用户日志配置
// 只包含JSON配置文件中实际出现的字段
type UserLogConfig struct {
	Level     *string `json:"level,omitempty"`      // 日志级别：debug, info, warn, error, fatal
	FilePath  *string `json:"file_path,omitempty"`  // 日志文件路径
	ToConsole *bool   `json:"to_console,omitempty"` // 是否输出到控制台
}

// UserBridgeConfig 用户宿主桥接配置
type UserBridgeConfig struct {
	// CoreMaxProtocol 账本引擎支持的最高协议版本
	CoreMaxProtocol *uint32 `json:"core_max_protocol,omitempty"`

	// Protocols 启用的宿主协议版本列表（如 [21, 22, 23]）
	Protocols []uint32 `json:"protocols,omitempty"`

	// MarshallingDepthLimit 编解码嵌套深度上限
	MarshallingDepthLimit *uint32 `json:"marshalling_depth_limit,omitempty"`

	// EnableMetrics 是否注册 Prometheus 指标
	EnableMetrics *bool `json:"enable_metrics,omitempty"`

	// TraceLogging 是否输出执行追踪日志（debug 级别）
	TraceLogging *bool `json:"trace_logging,omitempty"`

	// ModuleCache 模块缓存配置
	ModuleCache *UserModuleCacheConfig `json:"module_cache,omitempty"`

	// Metrics 内存采样与指标端点配置
	Metrics *UserMetricsConfig `json:"metrics,omitempty"`
}

// UserModuleCacheConfig 用户模块缓存配置
type UserModuleCacheConfig struct {
	MemoryLimitPages   *uint32 `json:"memory_limit_pages,omitempty"`    // 单实例线性内存页上限（64KiB/页）
	RecordLifeWindow   *string `json:"record_life_window,omitempty"`    // 编译记录保留时长，如 "24h"
	RecordMaxEntrySize *int    `json:"record_max_entry_size,omitempty"` // 单条编译记录最大字节数
}

// UserMetricsConfig 用户指标配置
type UserMetricsConfig struct {
	ListenAddr     *string `json:"listen_addr,omitempty"`     // 指标端点监听地址，如 "127.0.0.1:9464"
	SampleInterval *string `json:"sample_interval,omitempty"` // 内存采样间隔，如 "10s"
	WindowSize     *int    `json:"window_size,omitempty"`     // 保留的内存样本数
}
