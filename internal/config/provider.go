package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/weisyn/hostbridge/internal/config/bridge"
	"github.com/weisyn/hostbridge/internal/config/log"
	"github.com/weisyn/hostbridge/pkg/interfaces/config"
	"github.com/weisyn/hostbridge/pkg/types"
)

// Provider 实现配置提供者接口
type Provider struct {
	appConfig *types.AppConfig
}

var _ config.Provider = (*Provider)(nil)

// NewProvider 创建配置提供者（appConfig 可为 nil，此时全部使用默认值）
func NewProvider(appConfig *types.AppConfig) config.Provider {
	return &Provider{
		appConfig: appConfig,
	}
}

// GetLog 获取日志配置
func (p *Provider) GetLog() *log.LogOptions {
	var userLogConfig *types.UserLogConfig
	if p.appConfig != nil {
		userLogConfig = p.appConfig.Log
	}
	return log.New(userLogConfig).GetOptions()
}

// GetBridge 获取宿主桥接配置
func (p *Provider) GetBridge() *bridge.BridgeOptions {
	var userBridgeConfig *types.UserBridgeConfig
	if p.appConfig != nil {
		userBridgeConfig = p.appConfig.Bridge
	}
	return bridge.New(userBridgeConfig).GetOptions()
}

// LoadAppConfig 从 JSON 文件加载应用配置
//
// path 为空时返回空配置（全部默认值），文件不存在视为错误。
func LoadAppConfig(path string) (*types.AppConfig, error) {
	if path == "" {
		return &types.AppConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return ParseAppConfig(data)
}

// ParseAppConfig 解析 JSON 配置内容并校验
func ParseAppConfig(data []byte) (*types.AppConfig, error) {
	var appConfig types.AppConfig
	if err := json.Unmarshal(data, &appConfig); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := bridge.New(appConfig.Bridge).Validate(); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}

	return &appConfig, nil
}
