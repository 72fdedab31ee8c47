package testutil

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

// ==================== 测试数据 Fixtures ====================

// 宿主导入在测试合约中的函数下标
const (
	importPut uint32 = iota
	importGet
	importHas
	importExtendTTL
	importEmit
	importLog
	importFail
)

func imports(m *WasmModule) {
	m.Import("env", "put", []ValType{I64, I64, I32}, nil)
	m.Import("env", "get", []ValType{I64, I32}, []ValType{I64})
	m.Import("env", "has", []ValType{I64, I32}, []ValType{I32})
	m.Import("env", "extend_ttl", []ValType{I64, I32, I32}, nil)
	m.Import("env", "emit", []ValType{I64, I64}, nil)
	m.Import("env", "log", []ValType{I64}, nil)
	m.Import("env", "fail", []ValType{I32}, nil)
}

func call(idx uint32) []byte { return []byte{OpCall, byte(idx)} }

func local(i byte) []byte { return []byte{OpLocalGet, i} }

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// AddWasm 只导出 add(i64, i64) -> i64、没有导入的模块
func AddWasm() []byte {
	m := NewWasmModule()
	m.Func("add", []ValType{I64, I64}, []ValType{I64}, cat(local(0), local(1), []byte{OpI64Add})...)
	return m.Bytes()
}

// ContractWasm 使用全部宿主导入的测试合约
//
// 导出函数：
//   - add(a, b) -> a+b
//   - store(k, v)：持久写入并发出合约事件
//   - store_temp(k, v)：临时写入
//   - load(k) -> v
//   - has(k) -> 0/1
//   - bump(k, extend_to)：续期持久条目
//   - echo(v) -> v，同时记录日志
//   - trap()：执行 unreachable
//   - fail(code)：以合约错误码失败
func ContractWasm() []byte {
	m := NewWasmModule()
	imports(m)
	persistent := I32Const(int32(xdr.DurabilityPersistent))
	temporary := I32Const(int32(xdr.DurabilityTemporary))

	m.Func("add", []ValType{I64, I64}, []ValType{I64}, cat(local(0), local(1), []byte{OpI64Add})...)
	m.Func("store", []ValType{I64, I64}, nil,
		cat(local(0), local(1), persistent, call(importPut), local(0), local(1), call(importEmit))...)
	m.Func("store_temp", []ValType{I64, I64}, nil,
		cat(local(0), local(1), temporary, call(importPut))...)
	m.Func("load", []ValType{I64}, []ValType{I64}, cat(local(0), persistent, call(importGet))...)
	m.Func("has", []ValType{I64}, []ValType{I32}, cat(local(0), persistent, call(importHas))...)
	m.Func("bump", []ValType{I64, I32}, nil, cat(local(0), persistent, local(1), call(importExtendTTL))...)
	m.Func("echo", []ValType{I64}, []ValType{I64}, cat(local(0), call(importLog), local(0))...)
	m.Func("trap", nil, nil, OpUnreachable)
	m.Func("fail", []ValType{I32}, nil, cat(local(0), call(importFail))...)
	return m.Bytes()
}

// WasmHash 计算代码哈希
func WasmHash(code []byte) xdr.Hash {
	return sha256.Sum256(code)
}

// NetworkID 固定的测试网络标识
func NetworkID() []byte {
	h := sha256.Sum256([]byte("hostbridge test network"))
	return h[:]
}

// SourceAccount 固定的测试源账户
func SourceAccount() xdr.AccountID {
	return xdr.AccountID{Ed25519: sha256.Sum256([]byte("source"))}
}

// PRNGSeed 固定的 32 字节随机种子
func PRNGSeed() []byte {
	return make([]byte, 32)
}

// MustMarshal 编码测试数据，失败时终止测试
func MustMarshal(t testing.TB, v xdr.Encodable) []byte {
	t.Helper()
	buf, err := xdr.MarshalTrusted(v)
	require.NoError(t, err)
	return buf
}

// MustUnmarshal 解码测试数据，失败时终止测试
func MustUnmarshal(t testing.TB, buf []byte, v xdr.Decodable) {
	t.Helper()
	require.NoError(t, xdr.UnmarshalTrusted(buf, v))
}
