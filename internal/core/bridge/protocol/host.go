// Package protocol 协议版本适配器
//
// 🔀 **多版本绑定**
//
// 每个受支持的协议版本对应一个 Host。所有版本共用同一个 genericHost
// 实现，差异全部收敛在 profile 中：成本类别数、版本信息、资源与租金
// 配置的换算、代码条目租金口径与错误分类规则。编排代码因此只有一份。
package protocol

import (
	"context"
	"errors"

	"github.com/weisyn/hostbridge/internal/core/bridge/budget"
	"github.com/weisyn/hostbridge/internal/core/bridge/engine"
	"github.com/weisyn/hostbridge/internal/core/bridge/fees"
	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/modulecache"
	"github.com/weisyn/hostbridge/internal/core/bridge/wasmcost"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
	"github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/log"
	storage "github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/storage"
)

// Host 单个协议版本的宿主能力
type Host interface {
	// MaxProtocol 支持的最高协议版本
	MaxProtocol() uint32
	// NumCostTypes 成本类别数
	NumCostTypes() int
	// VersionInfo 版本信息，coreMaxProto 为调用方支持的最高协议
	VersionInfo(coreMaxProto uint32) VersionInfo

	// NewBudget 按本版本的成本类别数创建预算
	NewBudget(cpuLimit, memLimit uint64, cpu, mem xdr.ContractCostParams) (*budget.Budget, error)
	// InvokeHostFunction 执行宿主函数
	InvokeHostFunction(ctx context.Context, b *budget.Budget, req *engine.Request) *engine.Result
	// IsInternalError 判断失败是否属于宿主内部错误
	IsInternalError(e xdr.ScError) bool

	ComputeTransactionResourceFee(r fees.TransactionResources, c fees.FeeConfiguration) fees.FeePair
	ComputeRentFee(changes []fees.LedgerEntryRentChange, c fees.RentFeeConfiguration, currentLedger uint32) int64
	ComputeRentWriteFeePer1KB(stateSizeBytes int64, c fees.RentWriteFeeConfiguration) int64
	PlanTTLExtension(req fees.TTLExtensionRequest) (*fees.TTLExtensionPlan, error)

	// ContractCodeMemorySizeForRent 编码的代码条目在租金口径下的内存占用
	ContractCodeMemorySizeForRent(codeEntry, cpuParams, memParams []byte) (uint32, error)
	// CanParseTransaction 交易信封是否可在给定深度内解码
	CanParseTransaction(buf []byte, depthLimit uint32) bool

	// NewModuleCache 创建注册了宿主导入的模块缓存
	NewModuleCache(ctx context.Context, records storage.MemoryStore) (*modulecache.Cache, error)

	Close(ctx context.Context) error
}

// HostOptions 构造 Host 的运行参数
type HostOptions struct {
	MemoryLimitPages uint32
	DepthLimit       uint32
}

// genericHost 所有协议版本共用的 Host 实现
type genericHost struct {
	p      profile
	opts   HostOptions
	engine *engine.Engine
	logger log.Logger
}

var _ Host = (*genericHost)(nil)

func newHost(ctx context.Context, p profile, opts HostOptions, logger log.Logger) (*genericHost, error) {
	eng, err := engine.New(ctx, engine.Config{
		NumCostTypes:           p.numCostTypes,
		CodeRentIncludesMemory: p.codeRentIncludesMemory,
		MemoryLimitPages:       opts.MemoryLimitPages,
		DepthLimit:             opts.DepthLimit,
		Logger:                 logger,
	})
	if err != nil {
		return nil, err
	}
	return &genericHost{p: p, opts: opts, engine: eng, logger: logger}, nil
}

func (h *genericHost) MaxProtocol() uint32 { return h.p.maxProto }

func (h *genericHost) NumCostTypes() int { return h.p.numCostTypes }

func (h *genericHost) NewBudget(cpuLimit, memLimit uint64, cpu, mem xdr.ContractCostParams) (*budget.Budget, error) {
	return budget.New(cpuLimit, memLimit, cpu, mem, h.p.numCostTypes)
}

func (h *genericHost) InvokeHostFunction(ctx context.Context, b *budget.Budget, req *engine.Request) *engine.Result {
	return h.engine.Invoke(ctx, b, req)
}

// IsInternalError 错误码为 InternalError 即为内部错误；
// 自 22 起合约自身抛出的 InternalError 码不再计入。
func (h *genericHost) IsInternalError(e xdr.ScError) bool {
	if e.Code != xdr.ScErrorCodeInternalError {
		return false
	}
	return !h.p.contractErrorsNotInternal || e.Type != xdr.ScErrorTypeContract
}

// ==================== 费用 ====================

func (h *genericHost) ComputeTransactionResourceFee(r fees.TransactionResources, c fees.FeeConfiguration) fees.FeePair {
	return fees.ComputeTransactionResourceFee(h.p.convertResources(r), c)
}

func (h *genericHost) ComputeRentFee(changes []fees.LedgerEntryRentChange, c fees.RentFeeConfiguration, currentLedger uint32) int64 {
	return fees.ComputeRentFee(changes, h.p.convertRentConfig(c), currentLedger)
}

func (h *genericHost) ComputeRentWriteFeePer1KB(stateSizeBytes int64, c fees.RentWriteFeeConfiguration) int64 {
	return fees.ComputeRentWriteFeePer1KB(stateSizeBytes, c)
}

func (h *genericHost) PlanTTLExtension(req fees.TTLExtensionRequest) (*fees.TTLExtensionPlan, error) {
	req.RentConfig = h.p.convertRentConfig(req.RentConfig)
	return fees.PlanTTLExtension(req)
}

// ==================== 独立操作 ====================

func (h *genericHost) ContractCodeMemorySizeForRent(codeEntry, cpuParams, memParams []byte) (uint32, error) {
	var code xdr.ContractCodeEntry
	if err := xdr.UnmarshalTrusted(codeEntry, &code); err != nil {
		return 0, err
	}
	var cpu, mem xdr.ContractCostParams
	if err := xdr.UnmarshalTrusted(cpuParams, &cpu); err != nil {
		return 0, err
	}
	if err := xdr.UnmarshalTrusted(memParams, &mem); err != nil {
		return 0, err
	}
	size, err := wasmcost.MemorySizeForRent(cpu, mem, h.p.numCostTypes, &code)
	if errors.Is(err, budget.ErrConfig) {
		return 0, err
	}
	if err != nil {
		return 0, hosterror.Wrap(xdr.ScErrorTypeWasmVm, xdr.ScErrorCodeInvalidInput, err)
	}
	return size, nil
}

func (h *genericHost) CanParseTransaction(buf []byte, depthLimit uint32) bool {
	return xdr.CanParseTransaction(buf, depthLimit)
}

func (h *genericHost) NewModuleCache(ctx context.Context, records storage.MemoryStore) (*modulecache.Cache, error) {
	return modulecache.New(ctx, modulecache.Options{
		MemoryLimitPages: h.opts.MemoryLimitPages,
		NumCostTypes:     h.p.numCostTypes,
		Records:          records,
		HostModule:       engine.InstallHostModule,
		Logger:           h.logger,
	})
}

func (h *genericHost) Close(ctx context.Context) error {
	return h.engine.Close(ctx)
}
