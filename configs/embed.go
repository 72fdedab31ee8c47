// Package configs 内置配置
package configs

import _ "embed"

// 嵌入默认配置
//
//go:embed hostbridge.json
var defaultConfig []byte

// GetDefaultConfig 获取内置默认配置
func GetDefaultConfig() []byte {
	return defaultConfig
}
