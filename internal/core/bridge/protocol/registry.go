package protocol

import (
	"context"
	"errors"
	"fmt"
	"sort"

	bridgeconfig "github.com/weisyn/hostbridge/internal/config/bridge"
	"github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/log"
)

// ErrUnsupportedProtocol 未绑定的协议版本
var ErrUnsupportedProtocol = errors.New("unsupported protocol version")

// WrapUnsupportedProtocolError 包装协议版本错误
func WrapUnsupportedProtocolError(v uint32) error {
	return fmt.Errorf("%w: protocol=%d", ErrUnsupportedProtocol, v)
}

// Registry 协议版本到宿主的映射
type Registry struct {
	hosts   map[uint32]Host
	order   []uint32
	coreMax uint32
	logger  log.Logger
}

// NewRegistry 按配置中的协议列表构建全部宿主
func NewRegistry(ctx context.Context, opts *bridgeconfig.BridgeOptions, logger log.Logger) (*Registry, error) {
	r := &Registry{
		hosts:   make(map[uint32]Host, len(opts.Protocols)),
		coreMax: opts.CoreMaxProtocol,
		logger:  logger,
	}
	hostOpts := HostOptions{
		MemoryLimitPages: opts.ModuleCache.MemoryLimitPages,
		DepthLimit:       opts.MarshallingDepthLimit,
	}
	for _, v := range opts.Protocols {
		if _, dup := r.hosts[v]; dup {
			continue
		}
		p, ok := knownProfiles[v]
		if !ok {
			_ = r.Close(ctx)
			return nil, WrapUnsupportedProtocolError(v)
		}
		h, err := newHost(ctx, p, hostOpts, logger)
		if err != nil {
			_ = r.Close(ctx)
			return nil, fmt.Errorf("创建协议 %d 宿主失败: %w", v, err)
		}
		r.hosts[v] = h
		r.order = append(r.order, v)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	if logger != nil {
		logger.Infof("协议宿主已就绪: %v", r.order)
	}
	return r, nil
}

// ForProtocol 精确匹配协议版本
func (r *Registry) ForProtocol(v uint32) (Host, error) {
	h, ok := r.hosts[v]
	if !ok {
		return nil, WrapUnsupportedProtocolError(v)
	}
	return h, nil
}

// Hosts 按协议版本升序返回全部宿主
func (r *Registry) Hosts() []Host {
	out := make([]Host, 0, len(r.order))
	for _, v := range r.order {
		out = append(out, r.hosts[v])
	}
	return out
}

// Latest 最高协议版本的宿主
func (r *Registry) Latest() Host {
	if len(r.order) == 0 {
		return nil
	}
	return r.hosts[r.order[len(r.order)-1]]
}

// CoreMaxProtocol 调用方支持的最高协议
func (r *Registry) CoreMaxProtocol() uint32 { return r.coreMax }

// VersionReport 全部宿主的版本信息
func (r *Registry) VersionReport(coreMaxProto uint32) []VersionInfo {
	out := make([]VersionInfo, 0, len(r.order))
	for _, h := range r.Hosts() {
		out = append(out, h.VersionInfo(coreMaxProto))
	}
	return out
}

// Close 关闭全部宿主
func (r *Registry) Close(ctx context.Context) error {
	var errs []error
	for _, h := range r.hosts {
		if err := h.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// VersionReport 进程级版本信息，启动时生成一次
type VersionReport []VersionInfo

// NewVersionReport 以注册表配置的最高协议生成版本报告
func NewVersionReport(r *Registry) VersionReport {
	return r.VersionReport(r.coreMax)
}
