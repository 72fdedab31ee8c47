package app

import (
	appconfig "github.com/weisyn/hostbridge/internal/config"
	bridgeconfig "github.com/weisyn/hostbridge/internal/config/bridge"
	"github.com/weisyn/hostbridge/pkg/interfaces/config"
	"github.com/weisyn/hostbridge/pkg/types"
)

// Option 应用程序选项函数类型
type Option func(*options)

// options 应用程序选项
// 实现config.AppOptions接口
type options struct {
	// 配置文件路径
	configFilePath string

	// 嵌入的配置内容（configFilePath 为空时使用）
	embeddedConfig []byte

	// 用户配置（优先级高于configFilePath）
	appConfig *types.AppConfig

	// 覆盖日志级别
	logLevel string

	// 覆盖启用的协议版本
	protocols []uint32

	// 打开执行追踪日志
	traceLogging bool
}

// 编译时校验options是否实现了config.AppOptions接口
var _ config.AppOptions = (*options)(nil)

// WithConfigFile 设置配置文件路径
func WithConfigFile(configPath string) Option {
	return func(o *options) {
		o.configFilePath = configPath
	}
}

// WithEmbeddedConfig 设置嵌入的配置内容
func WithEmbeddedConfig(data []byte) Option {
	return func(o *options) {
		o.embeddedConfig = data
	}
}

// WithAppConfig 直接使用已构造的配置
func WithAppConfig(appConfig *types.AppConfig) Option {
	return func(o *options) {
		o.appConfig = appConfig
	}
}

// WithLogLevel 覆盖配置文件中的日志级别
func WithLogLevel(level string) Option {
	return func(o *options) {
		o.logLevel = level
	}
}

// WithProtocols 只绑定指定的协议版本
func WithProtocols(protocols ...uint32) Option {
	return func(o *options) {
		o.protocols = append([]uint32(nil), protocols...)
	}
}

// WithTraceLogging 打开执行追踪日志
func WithTraceLogging() Option {
	return func(o *options) {
		o.traceLogging = true
	}
}

// newOptions 创建选项
func newOptions(opts ...Option) *options {
	options := &options{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// resolve 加载配置文件并叠加命令行覆盖项
func (o *options) resolve() error {
	if o.appConfig == nil && o.configFilePath != "" {
		appConfig, err := appconfig.LoadAppConfig(o.configFilePath)
		if err != nil {
			return err
		}
		o.appConfig = appConfig
	}
	if o.appConfig == nil && len(o.embeddedConfig) > 0 {
		appConfig, err := appconfig.ParseAppConfig(o.embeddedConfig)
		if err != nil {
			return err
		}
		o.appConfig = appConfig
	}
	if o.appConfig == nil {
		o.appConfig = &types.AppConfig{}
	}

	if o.logLevel != "" {
		level, err := types.ParseLogLevel(o.logLevel)
		if err != nil {
			return err
		}
		if o.appConfig.Log == nil {
			o.appConfig.Log = &types.UserLogConfig{}
		}
		levelStr := string(level)
		o.appConfig.Log.Level = &levelStr
	}
	if len(o.protocols) > 0 || o.traceLogging {
		if o.appConfig.Bridge == nil {
			o.appConfig.Bridge = &types.UserBridgeConfig{}
		}
		if len(o.protocols) > 0 {
			o.appConfig.Bridge.Protocols = o.protocols
		}
		if o.traceLogging {
			enabled := true
			o.appConfig.Bridge.TraceLogging = &enabled
		}
	}
	return bridgeconfig.New(o.appConfig.Bridge).Validate()
}

// GetAppConfig 返回应用程序配置
func (o *options) GetAppConfig() *types.AppConfig {
	return o.appConfig
}
