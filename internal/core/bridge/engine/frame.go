package engine

import (
	"context"

	"github.com/weisyn/hostbridge/internal/core/bridge/budget"
	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

// frame 单次调用的执行状态
type frame struct {
	eng     *Engine
	b       *budget.Budget
	req     *Request
	source  xdr.AccountID
	storage *footprintStorage

	// contract 当前正在执行的合约
	contract    xdr.Hash
	events      []xdr.ContractEvent
	diagnostics []xdr.DiagnosticEvent

	// err 宿主导入中抛出的第一个错误
	err error

	costParams *costParams
}

type costParams struct {
	cpu, mem xdr.ContractCostParams
}

type frameKey struct{}

func withFrame(ctx context.Context, f *frame) context.Context {
	return context.WithValue(ctx, frameKey{}, f)
}

func frameFrom(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	if f == nil {
		panic(hosterror.New(xdr.ScErrorTypeContext, xdr.ScErrorCodeInternalError, "host import called outside an invocation"))
	}
	return f
}

// raise 记录错误并中止 WASM 执行，wazero 会把 panic 转为 Call 的错误返回
func (f *frame) raise(err error) {
	if f.err == nil {
		f.err = err
	}
	panic(err)
}

// check 非 nil 错误时中止执行
func (f *frame) check(err error) {
	if err != nil {
		f.raise(err)
	}
}

// decode 计量解码来自调用方的缓冲区
func (f *frame) decode(buf []byte, v xdr.Decodable) error {
	if err := f.b.Charge(xdr.CostValDeser, uint64(len(buf))); err != nil {
		return err
	}
	limits := xdr.Limits{Depth: f.eng.cfg.DepthLimit, Len: len(buf)}
	if err := xdr.Unmarshal(buf, v, limits); err != nil {
		return hosterror.MeteredDecode(err)
	}
	return nil
}

func (f *frame) trace(stage, detail string) {
	if f.req.Trace == nil {
		return
	}
	f.req.Trace(TraceEvent{
		Stage:  stage,
		Detail: detail,
		CPU:    f.b.CPUInsnsConsumed(),
		Mem:    f.b.MemBytesConsumed(),
	})
}

// diagnostic 诊断开启时记录一条诊断事件
func (f *frame) diagnostic(topics []xdr.ScVal, data xdr.ScVal) {
	if !f.req.EnableDiagnostics {
		return
	}
	var id *xdr.Hash
	if f.contract != (xdr.Hash{}) {
		c := f.contract
		id = &c
	}
	f.diagnostics = append(f.diagnostics, xdr.DiagnosticEvent{
		Event: xdr.ContractEvent{
			ContractID: id,
			Type:       xdr.ContractEventTypeDiagnostic,
			Topics:     topics,
			Data:       data,
		},
	})
}

// ledgerCostParams 按需解码账本快照中的成本参数表
func (f *frame) ledgerCostParams() (*costParams, error) {
	if f.costParams != nil {
		return f.costParams, nil
	}
	p := &costParams{}
	if err := xdr.UnmarshalTrusted(f.req.Ledger.CPUCostParams, &p.cpu); err != nil {
		return nil, hosterror.TrustedDecode(err)
	}
	if err := xdr.UnmarshalTrusted(f.req.Ledger.MemCostParams, &p.mem); err != nil {
		return nil, hosterror.TrustedDecode(err)
	}
	f.costParams = p
	return p, nil
}

// minLiveUntil 新条目的初始存活期
func (f *frame) minLiveUntil(persistent bool) uint32 {
	ttl := f.req.Ledger.MinTemporaryTTL
	if persistent {
		ttl = f.req.Ledger.MinPersistentTTL
	}
	if ttl == 0 {
		ttl = 1
	}
	return satAdd32(f.req.Ledger.SequenceNumber, ttl-1)
}

func satAdd32(a, b uint32) uint32 {
	if s := a + b; s >= a {
		return s
	}
	return ^uint32(0)
}
