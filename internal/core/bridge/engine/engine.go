// Package engine 基于 wazero 的参考执行引擎
//
// 🎯 **职责**
//
// 在一次调用内完成：
//   - 计量解码宿主函数、资源声明、源账户、授权条目与账本快照
//   - 在 footprint 上建立存储视图（越界、缺失、过期、归档检查）
//   - 执行宿主函数（上传代码、创建合约、调用合约）
//   - 产出逐键账本变更、合约事件与编码后的返回值
//
// 合约通过 "env" 模块中的宿主导入访问存储与事件。宿主导入在每个运行时
// 中只注册一次，单次调用的状态经由 context 传递。
//
// ⚠️ wazero 不计量指令：合约执行按模块指令数一次性计费，
// 每次宿主导入分派另计 DispatchHostFunction。
package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"

	"github.com/weisyn/hostbridge/internal/core/bridge/budget"
	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
	"github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/log"
)

// ==================== 输入输出 ====================

// LedgerInfo 单次调用内不变的账本快照
type LedgerInfo struct {
	ProtocolVersion  uint32
	SequenceNumber   uint32
	Timestamp        uint64
	NetworkID        []byte
	BaseReserve      uint32
	MinTemporaryTTL  uint32
	MinPersistentTTL uint32
	MaxEntryTTL      uint32
	MemoryLimit      uint64
	CPUCostParams    []byte
	MemCostParams    []byte
}

// ModuleCache 引擎使用的模块缓存视图
type ModuleCache interface {
	// Lookup 命中时返回的 release 在实例化完成后调用
	Lookup(key xdr.Hash) (wazero.CompiledModule, func(), bool)
	Runtime() wazero.Runtime
}

// Request 一次宿主函数执行的全部输入（均为编码后的交换缓冲区）
type Request struct {
	EnableDiagnostics      bool
	HostFunction           []byte
	Resources              []byte
	RestoredRWEntryIndices []uint32
	SourceAccount          []byte
	AuthEntries            [][]byte
	Ledger                 LedgerInfo
	LedgerEntries          [][]byte
	TTLEntries             [][]byte
	BasePRNGSeed           []byte
	// ModuleCache 可为 nil，此时每次调用临时编译
	ModuleCache ModuleCache
	// Trace 可为 nil
	Trace TraceHook
}

// TTLChange 条目存活期变化
type TTLChange struct {
	KeyHash            []byte
	Durability         xdr.ContractDataDurability
	OldLiveUntilLedger uint32
	NewLiveUntilLedger uint32
}

// LedgerEntryChange footprint 中一个键的最终状态
//
// EncodedNewValue 为 nil 表示只读或条目不存在；TTLChange 为 nil
// 表示条目不存在或没有存活期。
type LedgerEntryChange struct {
	ReadOnly            bool
	EncodedKey          []byte
	IsCodeEntry         bool
	OldEntrySizeForRent uint32
	NewEntrySizeForRent uint32
	EncodedNewValue     []byte
	TTLChange           *TTLChange
}

// Result 执行结果
//
// Err 非 nil 时执行失败，此时只有 DiagnosticEvents 有效。
type Result struct {
	Value            []byte
	Err              error
	LedgerChanges    []LedgerEntryChange
	ContractEvents   [][]byte
	DiagnosticEvents []xdr.DiagnosticEvent
}

// TraceEvent 引擎追踪事件
type TraceEvent struct {
	Stage  string
	Detail string
	CPU    uint64
	Mem    uint64
}

// TraceHook 接收引擎追踪事件
type TraceHook func(TraceEvent)

// ==================== 引擎 ====================

// Config 引擎配置，由协议版本适配器按版本给出
type Config struct {
	NumCostTypes int
	// CodeRentIncludesMemory 代码条目的租金大小是否计入其内存占用
	CodeRentIncludesMemory bool
	MemoryLimitPages       uint32
	DepthLimit             uint32
	Logger                 log.Logger
}

// Engine 参考执行引擎，可被并发调用
type Engine struct {
	cfg     Config
	runtime wazero.Runtime
	adhoc   adhocModules
	logger  log.Logger
}

// New 创建引擎及其临时编译运行时
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.DepthLimit == 0 {
		cfg.DepthLimit = xdr.MarshallingStackLimit
	}

	rcfg := wazero.NewRuntimeConfig().WithCompilationCache(wazero.NewCompilationCache())
	if cfg.MemoryLimitPages > 0 {
		rcfg = rcfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rcfg)
	if err := InstallHostModule(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("注册宿主模块失败: %w", err)
	}

	return &Engine{cfg: cfg, runtime: rt, logger: cfg.Logger}, nil
}

// Close 关闭临时编译运行时
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Invoke 执行一次宿主函数，总是返回非 nil 的结果
func (e *Engine) Invoke(ctx context.Context, b *budget.Budget, req *Request) *Result {
	f := &frame{eng: e, b: b, req: req}
	f.trace("begin", "")

	res, err := e.run(ctx, f)
	if err != nil {
		res = &Result{Err: err}
		f.trace("end", err.Error())
	} else {
		f.trace("end", "ok")
	}

	res.DiagnosticEvents = f.diagnostics
	for i := range res.DiagnosticEvents {
		res.DiagnosticEvents[i].InSuccessfulContractCall = err == nil
	}
	return res
}

func (e *Engine) run(ctx context.Context, f *frame) (*Result, error) {
	var hf xdr.HostFunction
	if err := f.decode(f.req.HostFunction, &hf); err != nil {
		return nil, err
	}
	var resources xdr.SorobanResources
	if err := f.decode(f.req.Resources, &resources); err != nil {
		return nil, err
	}
	var source xdr.AccountID
	if err := f.decode(f.req.SourceAccount, &source); err != nil {
		return nil, err
	}
	for _, buf := range f.req.AuthEntries {
		var entry xdr.SorobanAuthorizationEntry
		if err := f.decode(buf, &entry); err != nil {
			return nil, err
		}
	}
	f.source = source

	st, err := buildStorage(f, &resources.Footprint)
	if err != nil {
		return nil, err
	}
	f.storage = st

	if len(f.req.BasePRNGSeed) != 32 {
		return nil, hosterror.Newf(xdr.ScErrorTypeContext, xdr.ScErrorCodeInternalError,
			"base PRNG seed must be 32 bytes, got %d", len(f.req.BasePRNGSeed))
	}

	var val xdr.ScVal
	switch hf.Type {
	case xdr.HostFunctionTypeUploadContractWasm:
		val, err = e.uploadWasm(ctx, f, hf.Wasm)
	case xdr.HostFunctionTypeCreateContract:
		val, err = e.createContract(f, hf.CreateContract)
	case xdr.HostFunctionTypeInvokeContract:
		val, err = e.invokeContract(ctx, f, hf.InvokeContract)
	default:
		err = hosterror.Newf(xdr.ScErrorTypeValue, xdr.ScErrorCodeInvalidInput, "unknown host function %s", hf.Type)
	}
	if err != nil {
		return nil, err
	}
	return e.outputs(f, &val)
}

// outputs 生成逐键变更、编码事件与返回值
func (e *Engine) outputs(f *frame, val *xdr.ScVal) (*Result, error) {
	res := &Result{}

	encoded, err := xdr.MarshalTrusted(val)
	if err != nil {
		return nil, hosterror.Encode(err)
	}
	res.Value = encoded

	for i := range f.events {
		buf, err := xdr.MarshalTrusted(&f.events[i])
		if err != nil {
			return nil, hosterror.Encode(err)
		}
		res.ContractEvents = append(res.ContractEvents, buf)
	}

	changes, err := f.storage.changes(f)
	if err != nil {
		return nil, err
	}
	res.LedgerChanges = changes
	return res, nil
}
