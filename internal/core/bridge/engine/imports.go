package engine

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

// HostModuleName 宿主导入所在的模块名
const HostModuleName = "env"

// InstallHostModule 在运行时中注册宿主导入模块
//
// 每个运行时只需注册一次；导入函数从 context 中取出当前调用的状态。
func InstallHostModule(ctx context.Context, r wazero.Runtime) error {
	_, err := r.NewHostModuleBuilder(HostModuleName).
		NewFunctionBuilder().WithFunc(hostPut).Export("put").
		NewFunctionBuilder().WithFunc(hostGet).Export("get").
		NewFunctionBuilder().WithFunc(hostHas).Export("has").
		NewFunctionBuilder().WithFunc(hostExtendTTL).Export("extend_ttl").
		NewFunctionBuilder().WithFunc(hostEmit).Export("emit").
		NewFunctionBuilder().WithFunc(hostLog).Export("log").
		NewFunctionBuilder().WithFunc(hostFail).Export("fail").
		Instantiate(ctx)
	return err
}

// dispatch 宿主导入入口：计费并记录追踪
func dispatch(ctx context.Context, name string) *frame {
	f := frameFrom(ctx)
	f.check(f.b.Charge(xdr.CostDispatchHostFunction, 0))
	f.trace("dispatch", name)
	return f
}

func durabilityArg(f *frame, v uint32) xdr.ContractDataDurability {
	if v > uint32(xdr.DurabilityPersistent) {
		f.raise(hosterror.Newf(xdr.ScErrorTypeValue, xdr.ScErrorCodeInvalidInput, "invalid durability %d", v))
	}
	return xdr.ContractDataDurability(v)
}

func dataKey(f *frame, key uint64, dur uint32) xdr.LedgerKey {
	return xdr.ContractDataKey(f.contract, xdr.ScValU64(key), durabilityArg(f, dur))
}

// ==================== 存储 ====================

func hostPut(ctx context.Context, key, val uint64, dur uint32) {
	f := dispatch(ctx, "put")
	lk := dataKey(f, key, dur)
	st, err := f.storage.writable(&lk)
	f.check(err)
	f.check(f.b.Charge(xdr.CostMemAlloc, 16))

	f.storage.put(f, st, &xdr.LedgerEntry{
		ContractData: &xdr.ContractDataEntry{
			Contract:   f.contract,
			Key:        lk.Key,
			Durability: lk.Durability,
			Val:        xdr.ScValI64(int64(val)),
		},
	})
}

func hostGet(ctx context.Context, key uint64, dur uint32) uint64 {
	f := dispatch(ctx, "get")
	lk := dataKey(f, key, dur)
	st, err := f.storage.get(&lk)
	f.check(err)

	v := st.entry.ContractData.Val
	if v.Type != xdr.ScValTypeI64 {
		f.raise(hosterror.Newf(xdr.ScErrorTypeValue, xdr.ScErrorCodeUnexpectedType, "stored value is %d, want I64", v.Type))
	}
	return uint64(v.I64)
}

func hostHas(ctx context.Context, key uint64, dur uint32) uint32 {
	f := dispatch(ctx, "has")
	lk := dataKey(f, key, dur)
	st, err := f.storage.lookup(&lk)
	f.check(err)
	if st.entry != nil {
		return 1
	}
	return 0
}

// hostExtendTTL 把条目存活期延长到 当前账本 + extendTo，只读条目同样可以续期
func hostExtendTTL(ctx context.Context, key uint64, dur uint32, extendTo uint32) {
	f := dispatch(ctx, "extend_ttl")
	lk := dataKey(f, key, dur)
	st, err := f.storage.get(&lk)
	f.check(err)

	if maxTTL := f.req.Ledger.MaxEntryTTL; maxTTL > 0 && extendTo > maxTTL-1 {
		f.raise(hosterror.Newf(xdr.ScErrorTypeStorage, xdr.ScErrorCodeInvalidInput,
			"extend_to %d exceeds max entry TTL %d", extendTo, maxTTL))
	}
	if newLive := satAdd32(f.req.Ledger.SequenceNumber, extendTo); newLive > st.liveUntil {
		st.liveUntil = newLive
	}
}

// ==================== 事件 ====================

func hostEmit(ctx context.Context, topic, data uint64) {
	f := dispatch(ctx, "emit")
	f.check(f.b.Charge(xdr.CostMemAlloc, 64))
	id := f.contract
	f.events = append(f.events, xdr.ContractEvent{
		ContractID: &id,
		Type:       xdr.ContractEventTypeContract,
		Topics:     []xdr.ScVal{xdr.ScValU64(topic)},
		Data:       xdr.ScValI64(int64(data)),
	})
}

func hostLog(ctx context.Context, v uint64) {
	f := dispatch(ctx, "log")
	f.diagnostic([]xdr.ScVal{xdr.ScValSymbol("log")}, xdr.ScValI64(int64(v)))
}

func hostFail(ctx context.Context, code uint32) {
	f := dispatch(ctx, "fail")
	f.raise(hosterror.New(xdr.ScErrorTypeContract, xdr.ScErrorCode(code), "contract failed"))
}
