package engine

import (
	"context"
	"crypto/sha256"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/wasmcost"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

// ==================== 上传代码 ====================

func (e *Engine) uploadWasm(ctx context.Context, f *frame, wasm []byte) (xdr.ScVal, error) {
	if err := f.b.Charge(xdr.CostComputeSha256Hash, uint64(len(wasm))); err != nil {
		return xdr.ScVal{}, err
	}
	hash := xdr.Hash(sha256.Sum256(wasm))
	key := xdr.ContractCodeKey(hash)
	st, err := f.storage.writable(&key)
	if err != nil {
		return xdr.ScVal{}, err
	}

	ci, err := wasmcost.ParseCostInputs(wasm)
	if err != nil {
		return xdr.ScVal{}, hosterror.Wrap(xdr.ScErrorTypeWasmVm, xdr.ScErrorCodeInvalidInput, err)
	}
	if err := wasmcost.ChargeParse(f.b, ci); err != nil {
		return xdr.ScVal{}, err
	}

	// 编译一次以校验字节码
	stop := f.b.TimeScope(xdr.CostVmInstantiation)
	_, release, err := e.compile(ctx, hash, wasm)
	stop()
	if err != nil {
		return xdr.ScVal{}, hosterror.Wrap(xdr.ScErrorTypeWasmVm, xdr.ScErrorCodeInvalidInput, err)
	}
	release()

	switch {
	case st.entry == nil:
		f.storage.put(f, st, &xdr.LedgerEntry{
			ContractCode: &xdr.ContractCodeEntry{Hash: hash, Code: wasm, CostInputs: &ci},
		})
	case st.entry.ContractCode != nil && st.entry.ContractCode.CostInputs == nil:
		// 已存在但缺少成本输入的旧条目补全
		updated := *st.entry.ContractCode
		updated.CostInputs = &ci
		f.storage.put(f, st, &xdr.LedgerEntry{ContractCode: &updated})
	}

	f.trace("upload", hash.String())
	return xdr.ScValBytes(hash[:]), nil
}

// ==================== 创建合约 ====================

// ContractID 合约标识：sha256(网络标识 ‖ 部署者 ‖ salt)
func ContractID(networkID []byte, deployer xdr.AccountID, salt xdr.Hash) xdr.Hash {
	h := sha256.New()
	h.Write(networkID)
	h.Write(deployer.Ed25519[:])
	h.Write(salt[:])
	var id xdr.Hash
	copy(id[:], h.Sum(nil))
	return id
}

func (e *Engine) createContract(f *frame, args *xdr.CreateContractArgs) (xdr.ScVal, error) {
	if err := f.b.Charge(xdr.CostComputeSha256Hash, uint64(len(f.req.Ledger.NetworkID)+64)); err != nil {
		return xdr.ScVal{}, err
	}
	id := ContractID(f.req.Ledger.NetworkID, f.source, args.Salt)

	codeKey := xdr.ContractCodeKey(args.WasmHash)
	if _, err := f.storage.get(&codeKey); err != nil {
		return xdr.ScVal{}, err
	}

	instKey := xdr.ContractDataKey(id, xdr.ScValContractInstanceKey(), xdr.DurabilityPersistent)
	st, err := f.storage.writable(&instKey)
	if err != nil {
		return xdr.ScVal{}, err
	}
	if st.entry != nil {
		return xdr.ScVal{}, hosterror.New(xdr.ScErrorTypeStorage, xdr.ScErrorCodeExistingValue, "contract already exists")
	}

	f.storage.put(f, st, &xdr.LedgerEntry{
		ContractData: &xdr.ContractDataEntry{
			Contract:   id,
			Key:        instKey.Key,
			Durability: xdr.DurabilityPersistent,
			Val:        xdr.ScValBytes(append([]byte(nil), args.WasmHash[:]...)),
		},
	})
	f.trace("create", id.String())
	return xdr.ScValAddress(id), nil
}

// ==================== 调用合约 ====================

func (e *Engine) invokeContract(ctx context.Context, f *frame, args *xdr.InvokeContractArgs) (xdr.ScVal, error) {
	if err := xdr.ValidateSymbol(args.FunctionName); err != nil {
		return xdr.ScVal{}, hosterror.Wrap(xdr.ScErrorTypeValue, xdr.ScErrorCodeInvalidInput, err)
	}

	instKey := xdr.ContractDataKey(args.ContractAddress, xdr.ScValContractInstanceKey(), xdr.DurabilityPersistent)
	inst, err := f.storage.get(&instKey)
	if err != nil {
		return xdr.ScVal{}, err
	}
	ref := inst.entry.ContractData.Val
	if ref.Type != xdr.ScValTypeBytes || len(ref.Bytes) != len(xdr.Hash{}) {
		return xdr.ScVal{}, hosterror.New(xdr.ScErrorTypeValue, xdr.ScErrorCodeUnexpectedType, "malformed contract instance")
	}
	var wasmHash xdr.Hash
	copy(wasmHash[:], ref.Bytes)

	codeKey := xdr.ContractCodeKey(wasmHash)
	code, err := f.storage.get(&codeKey)
	if err != nil {
		return xdr.ScVal{}, err
	}

	f.contract = args.ContractAddress
	f.diagnostic(
		[]xdr.ScVal{xdr.ScValSymbol("fn_call"), xdr.ScValBytes(append([]byte(nil), args.ContractAddress[:]...)), xdr.ScValSymbol(args.FunctionName)},
		xdr.ScValVec(args.Args...),
	)

	mod, ci, err := e.instantiate(ctx, f, wasmHash, code.entry.ContractCode)
	if err != nil {
		return xdr.ScVal{}, err
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(args.FunctionName)
	if fn == nil {
		return xdr.ScVal{}, hosterror.Newf(xdr.ScErrorTypeWasmVm, xdr.ScErrorCodeMissingValue, "function %q not exported", args.FunctionName)
	}
	params, err := wasmParams(fn.Definition(), args.Args)
	if err != nil {
		return xdr.ScVal{}, err
	}

	if err := f.b.Charge(xdr.CostInvokeVmFunction, 0); err != nil {
		return xdr.ScVal{}, err
	}
	if err := f.b.ChargeN(xdr.CostWasmInsnExec, uint64(ci.NInstructions), 0); err != nil {
		return xdr.ScVal{}, err
	}

	results, callErr := fn.Call(withFrame(ctx, f), params...)
	if f.err != nil {
		return xdr.ScVal{}, f.err
	}
	if callErr != nil {
		return xdr.ScVal{}, hosterror.Wrap(xdr.ScErrorTypeWasmVm, xdr.ScErrorCodeInvalidAction, callErr)
	}

	val, err := wasmResult(fn.Definition(), results)
	if err != nil {
		return xdr.ScVal{}, err
	}
	f.diagnostic([]xdr.ScVal{xdr.ScValSymbol("fn_return"), xdr.ScValSymbol(args.FunctionName)}, val)
	return val, nil
}

// instantiate 优先从模块缓存实例化，未命中时临时编译
func (e *Engine) instantiate(ctx context.Context, f *frame, hash xdr.Hash, code *xdr.ContractCodeEntry) (api.Module, xdr.ContractCodeCostInputs, error) {
	var ci xdr.ContractCodeCostInputs
	if code.CostInputs != nil {
		ci = *code.CostInputs
	} else {
		parsed, err := wasmcost.ParseCostInputs(code.Code)
		if err != nil {
			return nil, ci, hosterror.Wrap(xdr.ScErrorTypeWasmVm, xdr.ScErrorCodeInvalidInput, err)
		}
		ci = parsed
	}

	rt := e.runtime
	var compiled wazero.CompiledModule
	release := func() {}
	defer func() { release() }()

	if cache := f.req.ModuleCache; cache != nil {
		if c, done, ok := cache.Lookup(hash); ok {
			compiled, rt, release = c, cache.Runtime(), done
			if err := f.b.Charge(xdr.CostVmCachedInstantiation, 0); err != nil {
				return nil, ci, err
			}
			f.trace("instantiate", "cached")
		}
	}

	stop := func() {}
	if compiled == nil {
		stop = f.b.TimeScope(xdr.CostVmInstantiation)
		if err := f.b.Charge(xdr.CostVmInstantiation, uint64(len(code.Code))); err != nil {
			stop()
			return nil, ci, err
		}
		if err := wasmcost.ChargeParse(f.b, ci); err != nil {
			stop()
			return nil, ci, err
		}
		c, done, err := e.compile(ctx, hash, code.Code)
		if err != nil {
			stop()
			return nil, ci, hosterror.Wrap(xdr.ScErrorTypeWasmVm, xdr.ScErrorCodeInvalidInput, err)
		}
		compiled, release = c, done
		f.trace("instantiate", "compiled")
	}
	defer stop()

	if err := wasmcost.ChargeInstantiate(f.b, ci); err != nil {
		return nil, ci, err
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		return nil, ci, hosterror.Wrap(xdr.ScErrorTypeWasmVm, xdr.ScErrorCodeInvalidAction, err)
	}
	return mod, ci, nil
}

// wasmParams 把参数按导出函数的签名转换为 WASM 值
//
// i32 接受 U32/I32，i64 接受 U64/I64。
func wasmParams(def api.FunctionDefinition, args []xdr.ScVal) ([]uint64, error) {
	types := def.ParamTypes()
	if len(types) != len(args) {
		return nil, hosterror.Newf(xdr.ScErrorTypeValue, xdr.ScErrorCodeUnexpectedSize,
			"function %s takes %d arguments, got %d", def.Name(), len(types), len(args))
	}
	params := make([]uint64, len(args))
	for i, a := range args {
		switch {
		case types[i] == api.ValueTypeI32 && a.Type == xdr.ScValTypeU32:
			params[i] = api.EncodeU32(a.U32)
		case types[i] == api.ValueTypeI32 && a.Type == xdr.ScValTypeI32:
			params[i] = api.EncodeI32(a.I32)
		case types[i] == api.ValueTypeI64 && a.Type == xdr.ScValTypeU64:
			params[i] = a.U64
		case types[i] == api.ValueTypeI64 && a.Type == xdr.ScValTypeI64:
			params[i] = api.EncodeI64(a.I64)
		default:
			return nil, hosterror.Newf(xdr.ScErrorTypeValue, xdr.ScErrorCodeUnexpectedType,
				"argument %d has type %d, parameter is %s", i, a.Type, api.ValueTypeName(types[i]))
		}
	}
	return params, nil
}

// wasmResult 无返回值为 Void，i32 为 U32，i64 为 I64
func wasmResult(def api.FunctionDefinition, results []uint64) (xdr.ScVal, error) {
	types := def.ResultTypes()
	switch {
	case len(types) == 0:
		return xdr.ScValVoid(), nil
	case len(types) == 1 && len(results) == 1 && types[0] == api.ValueTypeI32:
		return xdr.ScValU32(api.DecodeU32(results[0])), nil
	case len(types) == 1 && len(results) == 1 && types[0] == api.ValueTypeI64:
		return xdr.ScValI64(int64(results[0])), nil
	default:
		return xdr.ScVal{}, hosterror.Newf(xdr.ScErrorTypeValue, xdr.ScErrorCodeUnexpectedType,
			"unsupported result signature of %s", def.Name())
	}
}
