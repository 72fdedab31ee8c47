// Package bridge 宿主桥接层的 fx 装配
//
// 🏗️ **依赖关系**
//
//	config.Provider ─┬─► protocol.Registry ─┬─► invoke.Orchestrator
//	log.Logger ──────┤                      ├─► protocol.VersionReport
//	MemoryStore ─────┘                      └─► modulecache.Cache（最高协议，同时作为 MemoryReporter）
//
// 注册表、模块缓存在 fx 停止时关闭。
package bridge

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/weisyn/hostbridge/internal/core/bridge/invoke"
	"github.com/weisyn/hostbridge/internal/core/bridge/modulecache"
	"github.com/weisyn/hostbridge/internal/core/bridge/protocol"
	logimpl "github.com/weisyn/hostbridge/internal/core/infrastructure/log"
	"github.com/weisyn/hostbridge/pkg/interfaces/config"
	"github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/log"
	metricsiface "github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/metrics"
	storage "github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/storage"
)

// ModuleInput 定义 bridge 模块的输入依赖
type ModuleInput struct {
	fx.In

	Lifecycle fx.Lifecycle
	Provider  config.Provider
	Logger    log.Logger
	Records   storage.MemoryStore `optional:"true"` // 编译记录存储，缺省时不记录
}

// ModuleOutput 定义 bridge 模块的输出服务
type ModuleOutput struct {
	fx.Out

	Registry      *protocol.Registry
	Orchestrator  *invoke.Orchestrator
	VersionReport protocol.VersionReport
	ModuleCache   *modulecache.Cache

	MemoryReporter metricsiface.MemoryReporter `group:"memory_reporters"`
}

// ProvideServices 构建协议注册表、编排器、版本报告与模块缓存
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	ctx := context.Background()
	logger := logimpl.NewModuleLogger(input.Logger, "bridge")
	opts := input.Provider.GetBridge()

	registry, err := protocol.NewRegistry(ctx, opts, logger)
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("创建协议注册表失败: %w", err)
	}
	latest := registry.Latest()
	if latest == nil {
		_ = registry.Close(ctx)
		return ModuleOutput{}, fmt.Errorf("bridge.protocols 为空")
	}

	cache, err := latest.NewModuleCache(ctx, input.Records)
	if err != nil {
		_ = registry.Close(ctx)
		return ModuleOutput{}, fmt.Errorf("创建模块缓存失败: %w", err)
	}

	input.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			cacheErr := cache.Close(ctx)
			if err := registry.Close(ctx); err != nil {
				return err
			}
			return cacheErr
		},
	})

	report := protocol.NewVersionReport(registry)
	for _, info := range report {
		logger.Infof("宿主 p%d: env=%s (%s) xdr=%s base=%s",
			info.EnvMaxProto, info.EnvPkgVer, info.EnvGitRev, info.XdrGitRev, info.XdrBaseGitRev)
	}

	return ModuleOutput{
		Registry:      registry,
		Orchestrator:  invoke.New(registry, opts, logger),
		VersionReport: report,
		ModuleCache:   cache,

		MemoryReporter: cache,
	}, nil
}

// Module 返回 bridge 模块的 fx 配置
func Module() fx.Option {
	return fx.Module("bridge",
		fx.Provide(ProvideServices),
	)
}
