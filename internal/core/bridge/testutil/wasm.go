package testutil

// ==================== 测试合约构造 ====================

// ValType WASM 值类型
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

// 常用操作码
const (
	OpUnreachable byte = 0x00
	OpCall        byte = 0x10
	OpDrop        byte = 0x1a
	OpLocalGet    byte = 0x20
	OpI32Const    byte = 0x41
	OpI64Add      byte = 0x7c
	opEnd         byte = 0x0b
)

type funcType struct {
	params  []ValType
	results []ValType
}

type wasmImport struct {
	module, name string
	typeIdx      uint32
}

type wasmFunc struct {
	export  string
	typeIdx uint32
	body    []byte
}

type dataSegment struct {
	offset uint32
	data   []byte
}

// WasmModule 最小 WASM 模块构造器
//
// 只支持函数导入、导出函数、单个内存与主动数据段，足以构造测试合约。
// 导入必须先于函数声明。
type WasmModule struct {
	types   []funcType
	imports []wasmImport
	funcs   []wasmFunc
	memory  bool
	data    []dataSegment
}

// NewWasmModule 创建空模块
func NewWasmModule() *WasmModule {
	return &WasmModule{}
}

func (m *WasmModule) addType(params, results []ValType) uint32 {
	m.types = append(m.types, funcType{params: params, results: results})
	return uint32(len(m.types) - 1)
}

// Import 声明一个函数导入，返回其函数下标
func (m *WasmModule) Import(module, name string, params, results []ValType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasm imports must precede functions")
	}
	m.imports = append(m.imports, wasmImport{module: module, name: name, typeIdx: m.addType(params, results)})
	return uint32(len(m.imports) - 1)
}

// Func 声明一个函数，export 非空时导出，返回其函数下标
func (m *WasmModule) Func(export string, params, results []ValType, body ...byte) uint32 {
	m.funcs = append(m.funcs, wasmFunc{export: export, typeIdx: m.addType(params, results), body: body})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Data 添加一个主动数据段（同时声明一页内存）
func (m *WasmModule) Data(offset uint32, data []byte) *WasmModule {
	m.memory = true
	m.data = append(m.data, dataSegment{offset: offset, data: data})
	return m
}

// Bytes 编码为 WASM 二进制
func (m *WasmModule) Bytes() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var sec []byte
	sec = uleb(sec, uint32(len(m.types)))
	for _, t := range m.types {
		sec = append(sec, 0x60)
		sec = valTypes(sec, t.params)
		sec = valTypes(sec, t.results)
	}
	out = section(out, 1, sec)

	if len(m.imports) > 0 {
		sec = uleb(nil, uint32(len(m.imports)))
		for _, im := range m.imports {
			sec = name(sec, im.module)
			sec = name(sec, im.name)
			sec = append(sec, 0x00)
			sec = uleb(sec, im.typeIdx)
		}
		out = section(out, 2, sec)
	}

	sec = uleb(nil, uint32(len(m.funcs)))
	for _, f := range m.funcs {
		sec = uleb(sec, f.typeIdx)
	}
	out = section(out, 3, sec)

	if m.memory {
		out = section(out, 5, []byte{0x01, 0x00, 0x01})
	}

	var exports []byte
	n := uint32(0)
	for i, f := range m.funcs {
		if f.export == "" {
			continue
		}
		exports = name(exports, f.export)
		exports = append(exports, 0x00)
		exports = uleb(exports, uint32(len(m.imports)+i))
		n++
	}
	out = section(out, 7, append(uleb(nil, n), exports...))

	sec = uleb(nil, uint32(len(m.funcs)))
	for _, f := range m.funcs {
		body := append([]byte{0x00}, f.body...) // 无局部变量
		body = append(body, opEnd)
		sec = uleb(sec, uint32(len(body)))
		sec = append(sec, body...)
	}
	out = section(out, 10, sec)

	if len(m.data) > 0 {
		sec = uleb(nil, uint32(len(m.data)))
		for _, d := range m.data {
			sec = append(sec, 0x00, OpI32Const)
			sec = sleb(sec, int64(d.offset))
			sec = append(sec, opEnd)
			sec = uleb(sec, uint32(len(d.data)))
			sec = append(sec, d.data...)
		}
		out = section(out, 11, sec)
	}
	return out
}

func section(out []byte, id byte, body []byte) []byte {
	out = append(out, id)
	out = uleb(out, uint32(len(body)))
	return append(out, body...)
}

func valTypes(out []byte, ts []ValType) []byte {
	out = uleb(out, uint32(len(ts)))
	for _, t := range ts {
		out = append(out, byte(t))
	}
	return out
}

func name(out []byte, s string) []byte {
	out = uleb(out, uint32(len(s)))
	return append(out, s...)
}

func uleb(out []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(out []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

// I32Const 编码 i32.const 指令
func I32Const(v int32) []byte {
	return sleb([]byte{OpI32Const}, int64(v))
}
