package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/hostbridge/pkg/types"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New(nil)
	opts := cfg.GetOptions()

	assert.Equal(t, uint32(23), opts.CoreMaxProtocol)
	assert.Equal(t, []uint32{21, 22, 23}, opts.Protocols)
	assert.Equal(t, uint32(1000), opts.MarshallingDepthLimit)
	assert.True(t, opts.EnableMetrics)
	assert.False(t, opts.TraceLogging)
	assert.Equal(t, 24*time.Hour, opts.ModuleCache.RecordLifeWindow)
	assert.Empty(t, opts.Metrics.ListenAddr)
	assert.Equal(t, 10*time.Second, opts.Metrics.SampleInterval)
	require.NoError(t, cfg.Validate())
}

func TestNew_UserOverrides(t *testing.T) {
	depth := uint32(64)
	trace := true
	pages := uint32(16)
	window := "10m"
	badWindow := "soon"
	listen := "127.0.0.1:0"
	interval := "500ms"
	samples := 5

	tests := []struct {
		name   string
		user   *types.UserBridgeConfig
		verify func(t *testing.T, o *BridgeOptions)
	}{
		{
			name: "覆盖深度与追踪",
			user: &types.UserBridgeConfig{MarshallingDepthLimit: &depth, TraceLogging: &trace},
			verify: func(t *testing.T, o *BridgeOptions) {
				assert.Equal(t, depth, o.MarshallingDepthLimit)
				assert.True(t, o.TraceLogging)
				assert.True(t, o.EnableMetrics, "未出现的字段保留默认值")
			},
		},
		{
			name: "覆盖协议列表",
			user: &types.UserBridgeConfig{Protocols: []uint32{22}},
			verify: func(t *testing.T, o *BridgeOptions) {
				assert.Equal(t, []uint32{22}, o.Protocols)
			},
		},
		{
			name: "覆盖模块缓存",
			user: &types.UserBridgeConfig{ModuleCache: &types.UserModuleCacheConfig{
				MemoryLimitPages: &pages,
				RecordLifeWindow: &window,
			}},
			verify: func(t *testing.T, o *BridgeOptions) {
				assert.Equal(t, pages, o.ModuleCache.MemoryLimitPages)
				assert.Equal(t, 10*time.Minute, o.ModuleCache.RecordLifeWindow)
			},
		},
		{
			name: "非法时长保留默认值",
			user: &types.UserBridgeConfig{ModuleCache: &types.UserModuleCacheConfig{RecordLifeWindow: &badWindow}},
			verify: func(t *testing.T, o *BridgeOptions) {
				assert.Equal(t, 24*time.Hour, o.ModuleCache.RecordLifeWindow)
			},
		},
		{
			name: "覆盖指标端点",
			user: &types.UserBridgeConfig{Metrics: &types.UserMetricsConfig{
				ListenAddr:     &listen,
				SampleInterval: &interval,
				WindowSize:     &samples,
			}},
			verify: func(t *testing.T, o *BridgeOptions) {
				assert.Equal(t, listen, o.Metrics.ListenAddr)
				assert.Equal(t, 500*time.Millisecond, o.Metrics.SampleInterval)
				assert.Equal(t, samples, o.Metrics.WindowSize)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.verify(t, New(tt.user).GetOptions())
		})
	}
}

func TestValidate(t *testing.T) {
	core := uint32(22)
	zero := uint32(0)

	tests := []struct {
		name    string
		user    *types.UserBridgeConfig
		wantErr bool
	}{
		{name: "默认配置合法", user: nil},
		{name: "协议高于核心最高协议", user: &types.UserBridgeConfig{CoreMaxProtocol: &core}, wantErr: true},
		{name: "深度为零", user: &types.UserBridgeConfig{MarshallingDepthLimit: &zero}, wantErr: true},
		{
			name:    "内存页为零",
			user:    &types.UserBridgeConfig{ModuleCache: &types.UserModuleCacheConfig{MemoryLimitPages: &zero}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.user).Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
