// Package app 宿主桥接应用的装配与生命周期
//
// 命令行通过 BootstrapApp 获得一个已启动的 App，
// 使用 Services 访问编排器、协议注册表、版本报告与模块缓存，
// 结束时调用 Stop 释放 wazero 运行时与编译记录存储。
package app

import (
	"context"

	bridgeconfig "github.com/weisyn/hostbridge/internal/config/bridge"
	"github.com/weisyn/hostbridge/internal/core/bridge/invoke"
	"github.com/weisyn/hostbridge/internal/core/bridge/modulecache"
	"github.com/weisyn/hostbridge/internal/core/bridge/protocol"
	"github.com/weisyn/hostbridge/internal/core/infrastructure/metrics"
	"github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/log"
)

// App 应用程序接口
type App interface {
	// Services 返回已装配的服务
	Services() *Services

	// Stop 停止应用
	Stop(ctx context.Context) error
}

// Services 已装配的桥接服务
type Services struct {
	Orchestrator  *invoke.Orchestrator
	Registry      *protocol.Registry
	VersionReport protocol.VersionReport
	ModuleCache   *modulecache.Cache
	Options       *bridgeconfig.BridgeOptions
	MemoryDoctor  *metrics.MemoryDoctor
	Logger        log.Logger
}

// internalApp App 接口的实现
type internalApp struct {
	bootstrap *Bootstrap
}

// Services 返回已装配的服务
func (a *internalApp) Services() *Services {
	return a.bootstrap.svc
}

// Stop 停止应用
func (a *internalApp) Stop(ctx context.Context) error {
	return a.bootstrap.StopApp(ctx)
}
