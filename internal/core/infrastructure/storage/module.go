// Package storage 提供存储管理功能
package storage

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/weisyn/hostbridge/internal/core/infrastructure/storage/memory"
	"github.com/weisyn/hostbridge/pkg/interfaces/config"
	"github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/log"
	storageInterface "github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/storage"
)

// ModuleParams 定义存储模块的依赖参数
type ModuleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Provider  config.Provider // 配置提供者
	Logger    log.Logger      // 日志记录器
}

// ModuleOutput 定义存储模块的输出结构
type ModuleOutput struct {
	fx.Out

	// MemoryStore 模块缓存编译记录使用的内存存储
	MemoryStore storageInterface.MemoryStore
}

// Module 返回存储模块
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideServices),
	)
}

// ProvideServices 创建内存存储并在停止时关闭
func ProvideServices(params ModuleParams) (ModuleOutput, error) {
	store, err := memory.New(params.Provider.GetBridge().ModuleCache, params.Logger)
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("创建内存存储失败: %w", err)
	}

	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})

	return ModuleOutput{MemoryStore: store}, nil
}
