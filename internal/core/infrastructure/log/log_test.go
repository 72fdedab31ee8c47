package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	logconfig "github.com/weisyn/hostbridge/internal/config/log"
	"github.com/weisyn/hostbridge/pkg/types"
)

// TestNew_FileOutput 测试写文件（lumberjack）
func TestNew_FileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "bridge.log")

	logger, err := New(logconfig.New(&logconfig.LogOptions{
		Level:      DebugLevel,
		FilePath:   logPath,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	}))
	require.NoError(t, err)

	logger.Debug("调试日志")
	logger.Infof("信息日志 seq=%d", 42)
	logger.Warn("警告日志")
	_ = logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "调试日志")
	assert.Contains(t, text, "信息日志 seq=42")
	assert.Contains(t, text, "警告日志")
	assert.Contains(t, text, `"level":"warn"`)
}

// TestNew_LevelFilter 测试级别过滤
func TestNew_LevelFilter(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "bridge.log")
	level := "warn"

	cfg := logconfig.New(&types.UserLogConfig{Level: &level, FilePath: &logPath})
	assert.False(t, cfg.IsConsoleEnabled(), "指定文件路径时默认不输出到控制台")

	logger, err := New(cfg)
	require.NoError(t, err)

	logger.Info("不应出现")
	logger.Error("应该出现")
	_ = logger.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(content), "不应出现"))
	assert.Contains(t, string(content), "应该出现")
}

// TestWith_StructuredFields 测试结构化字段
func TestWith_StructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewFromZap(zap.New(core))

	NewModuleLogger(logger, "bridge").With("protocol", 22, "dangling").Info("结构化日志测试")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "结构化日志测试", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "bridge", fields["module"])
	assert.EqualValues(t, 22, fields["protocol"])
	_, hasDangling := fields["dangling"]
	assert.False(t, hasDangling, "奇数个参数时最后一个应被丢弃")
}

// TestSetLogger_IgnoresNil 测试全局实例替换
func TestSetLogger_IgnoresNil(t *testing.T) {
	before := GetLogger()
	SetLogger(nil)
	assert.Same(t, before, GetLogger())

	replacement := NewFromZap(zap.NewNop())
	SetLogger(replacement)
	defer SetLogger(before)
	assert.Same(t, replacement, GetLogger())
}
