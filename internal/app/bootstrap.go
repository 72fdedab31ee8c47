package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/weisyn/hostbridge/internal/config"
	"github.com/weisyn/hostbridge/internal/core/bridge"
	"github.com/weisyn/hostbridge/internal/core/infrastructure/log"
	"github.com/weisyn/hostbridge/internal/core/infrastructure/metrics"
	"github.com/weisyn/hostbridge/internal/core/infrastructure/storage"
	cfgiface "github.com/weisyn/hostbridge/pkg/interfaces/config"
)

// startTimeout 启动与停止的超时时间
const startTimeout = 30 * time.Second

// Bootstrap 应用引导程序
// 负责按层次组装 fx 模块
type Bootstrap struct {
	opts  *options
	fxApp *fx.App
	svc   *Services
}

// NewBootstrap 创建引导程序
func NewBootstrap(opts *options) *Bootstrap {
	return &Bootstrap{opts: opts, svc: &Services{}}
}

// SetupInfrastructureLayer 设置基础设施层模块
func (b *Bootstrap) SetupInfrastructureLayer() []fx.Option {
	// 加载顺序：配置 -> 日志 -> 存储 -> 指标
	return []fx.Option{
		fx.Provide(func() cfgiface.AppOptions { return b.opts }),
		config.Module(),
		log.Module(),
		storage.Module(),
		metrics.Module(),
	}
}

// SetupBusinessLayer 设置业务逻辑层模块
func (b *Bootstrap) SetupBusinessLayer() []fx.Option {
	return []fx.Option{
		bridge.Module(),
	}
}

// SetupModules 设置所有应用模块
func (b *Bootstrap) SetupModules() []fx.Option {
	var allModules []fx.Option
	allModules = append(allModules, b.SetupInfrastructureLayer()...)
	allModules = append(allModules, b.SetupBusinessLayer()...)
	return allModules
}

// CreateFxApp 创建并配置fx应用
func (b *Bootstrap) CreateFxApp() error {
	b.fxApp = fx.New(
		fx.Options(b.SetupModules()...),
		fx.NopLogger,
		fx.Populate(
			&b.svc.Orchestrator,
			&b.svc.Registry,
			&b.svc.VersionReport,
			&b.svc.ModuleCache,
			&b.svc.Options,
			&b.svc.MemoryDoctor,
			&b.svc.Logger,
		),
	)
	if err := b.fxApp.Err(); err != nil {
		return fmt.Errorf("装配模块失败: %w", err)
	}
	return nil
}

// StartApp 启动应用程序
func (b *Bootstrap) StartApp(ctx context.Context) error {
	if err := b.fxApp.Start(ctx); err != nil {
		return fmt.Errorf("启动应用失败: %w", err)
	}
	return nil
}

// StopApp 停止应用程序
func (b *Bootstrap) StopApp(ctx context.Context) error {
	if err := b.fxApp.Stop(ctx); err != nil {
		return fmt.Errorf("停止应用失败: %w", err)
	}
	return nil
}

// BootstrapApp 执行完整的引导过程并返回应用实例
func BootstrapApp(options ...Option) (App, error) {
	opts := newOptions(options...)
	if err := opts.resolve(); err != nil {
		return nil, err
	}

	bootstrap := NewBootstrap(opts)
	if err := bootstrap.CreateFxApp(); err != nil {
		return nil, fmt.Errorf("创建应用失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := bootstrap.StartApp(ctx); err != nil {
		return nil, err
	}

	return &internalApp{bootstrap: bootstrap}, nil
}
