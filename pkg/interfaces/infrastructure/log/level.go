package log

import "github.com/weisyn/hostbridge/pkg/types"

// LogLevel 日志级别（定义在 pkg/types，避免配置层反向依赖接口层）
type LogLevel = types.LogLevel

const (
	DebugLevel = types.DebugLevel
	InfoLevel  = types.InfoLevel
	WarnLevel  = types.WarnLevel
	ErrorLevel = types.ErrorLevel
	FatalLevel = types.FatalLevel
)
