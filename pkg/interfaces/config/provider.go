// Package config provides configuration provider interfaces.
package config

import (
	bridgeconfig "github.com/weisyn/hostbridge/internal/config/bridge"
	logconfig "github.com/weisyn/hostbridge/internal/config/log"
)

// Provider 配置提供者接口
type Provider interface {
	// GetLog 获取日志配置
	GetLog() *logconfig.LogOptions

	// GetBridge 获取宿主桥接配置
	GetBridge() *bridgeconfig.BridgeOptions
}
