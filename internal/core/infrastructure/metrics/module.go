package metrics

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	bridgeconfig "github.com/weisyn/hostbridge/internal/config/bridge"
	metricsiface "github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/metrics"
)

// ModuleInput metrics 模块的输入依赖
type ModuleInput struct {
	fx.In

	Lifecycle fx.Lifecycle
	Options   *bridgeconfig.BridgeOptions
	Logger    *zap.Logger                   `optional:"true"`
	Reporters []metricsiface.MemoryReporter `group:"memory_reporters"`
}

// ModuleOutput metrics 模块的输出服务
type ModuleOutput struct {
	fx.Out

	MemoryDoctor *MemoryDoctor
}

// Module 返回 metrics 模块
//
// EnableMetrics 关闭时不启动采样；Metrics.ListenAddr 为空时不启动 HTTP 端点。
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideServices),
	)
}

// ProvideServices 创建 MemoryDoctor 并挂接生命周期
func ProvideServices(input ModuleInput) ModuleOutput {
	logger := input.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("module", "metrics"))

	opts := input.Options.Metrics
	doctor := NewMemoryDoctor(MemoryDoctorConfig{
		SampleInterval: opts.SampleInterval,
		WindowSize:     opts.WindowSize,
	}, input.Reporters, logger)

	if !input.Options.EnableMetrics {
		return ModuleOutput{MemoryDoctor: doctor}
	}

	// 采样循环使用独立的 ctx，OnStart 的 ctx 在钩子返回后即失效
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var server *Server
	if opts.ListenAddr != "" {
		server = NewServer(opts.ListenAddr, doctor, logger)
	}

	input.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if server != nil {
				if err := server.Start(); err != nil {
					cancel()
					return err
				}
			}
			go func() {
				defer close(done)
				doctor.SampleOnce()
				doctor.Start(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			<-done
			if server != nil {
				return server.Stop(stopCtx)
			}
			return nil
		},
	})
	return ModuleOutput{MemoryDoctor: doctor}
}
