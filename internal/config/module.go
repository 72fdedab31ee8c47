// Package config 提供应用配置管理功能
package config

import (
	"go.uber.org/fx"

	bridgeconfig "github.com/weisyn/hostbridge/internal/config/bridge"
	logconfig "github.com/weisyn/hostbridge/internal/config/log"
	"github.com/weisyn/hostbridge/pkg/interfaces/config"
	"github.com/weisyn/hostbridge/pkg/types"
)

// ConfigParams 定义配置模块的依赖参数
type ConfigParams struct {
	fx.In

	// 应用配置选项
	AppOptions config.AppOptions `optional:"true"`
}

// ConfigOutput 定义配置模块的输出结构
type ConfigOutput struct {
	fx.Out

	// 配置提供者
	Provider config.Provider
}

// Module 返回配置模块
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			ProvideConfigServices,
			// 提供具体的配置类型用于依赖注入
			func(provider config.Provider) *bridgeconfig.BridgeOptions {
				return provider.GetBridge()
			},
			func(provider config.Provider) *logconfig.LogOptions {
				return provider.GetLog()
			},
		),
	)
}

// ProvideConfigServices 提供配置服务
func ProvideConfigServices(params ConfigParams) (ConfigOutput, error) {
	// 从应用配置选项获取用户配置
	var appConfig *types.AppConfig
	if params.AppOptions != nil {
		appConfig = params.AppOptions.GetAppConfig()
	}

	return ConfigOutput{
		Provider: NewProvider(appConfig),
	}, nil
}

// staticAppOptions 已加载的应用配置
type staticAppOptions struct {
	appConfig *types.AppConfig
}

func (o staticAppOptions) GetAppConfig() *types.AppConfig { return o.appConfig }

// NewAppOptions 把已加载的配置包装为 AppOptions
func NewAppOptions(appConfig *types.AppConfig) config.AppOptions {
	return staticAppOptions{appConfig: appConfig}
}
