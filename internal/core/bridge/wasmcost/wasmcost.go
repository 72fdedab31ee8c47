// Package wasmcost 从 WASM 字节码推导解析/实例化成本输入并计费
//
// 只扫描段头与少量段内容，不做完整校验：完整校验由 wazero 编译完成。
// 指令数以代码段函数体字节数近似。
package wasmcost

import (
	"errors"
	"fmt"
	"math"

	"github.com/weisyn/hostbridge/internal/core/bridge/budget"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

var (
	errBadMagic   = errors.New("not a wasm module")
	errTruncated  = errors.New("truncated wasm module")
	errBadLEB     = errors.New("malformed LEB128")
	errConstExpr  = errors.New("unsupported constant expression")
	errSectionLen = errors.New("section length mismatch")
)

const (
	sectionCustom   = 0
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionTable    = 4
	sectionGlobal   = 6
	sectionExport   = 7
	sectionElement  = 9
	sectionCode     = 10
	sectionData     = 11
)

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// ParseCostInputs 扫描模块段头，统计成本输入
func ParseCostInputs(wasm []byte) (xdr.ContractCodeCostInputs, error) {
	var ci xdr.ContractCodeCostInputs
	if len(wasm) < len(wasmHeader) {
		return ci, errBadMagic
	}
	for i, b := range wasmHeader {
		if wasm[i] != b {
			return ci, errBadMagic
		}
	}

	r := &reader{b: wasm[len(wasmHeader):]}
	for !r.done() {
		id, err := r.byte()
		if err != nil {
			return ci, err
		}
		size, err := r.u32()
		if err != nil {
			return ci, err
		}
		body, err := r.take(size)
		if err != nil {
			return ci, err
		}
		if err := scanSection(id, &reader{b: body}, &ci); err != nil {
			return ci, fmt.Errorf("section %d: %w", id, err)
		}
	}
	return ci, nil
}

func scanSection(id byte, r *reader, ci *xdr.ContractCodeCostInputs) error {
	if id == sectionCustom {
		return nil
	}

	switch id {
	case sectionType, sectionImport, sectionFunction, sectionGlobal, sectionExport, sectionElement:
		n, err := r.u32()
		if err != nil {
			return err
		}
		switch id {
		case sectionType:
			ci.NTypes = n
		case sectionImport:
			ci.NImports = n
		case sectionFunction:
			ci.NFunctions = n
		case sectionGlobal:
			ci.NGlobals = n
		case sectionExport:
			ci.NExports = n
		case sectionElement:
			ci.NElemSegments = n
		}
	case sectionTable:
		return scanTables(r, ci)
	case sectionCode:
		return scanCode(r, ci)
	case sectionData:
		return scanData(r, ci)
	}
	return nil
}

// scanTables 表项数取各表的最小长度之和
func scanTables(r *reader, ci *xdr.ContractCodeCostInputs) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		if _, err := r.byte(); err != nil { // 引用类型
			return err
		}
		flag, err := r.byte()
		if err != nil {
			return err
		}
		min, err := r.u32()
		if err != nil {
			return err
		}
		if flag&1 == 1 {
			if _, err := r.u32(); err != nil {
				return err
			}
		}
		ci.NTableEntries = satAdd32(ci.NTableEntries, min)
	}
	return nil
}

func scanCode(r *reader, ci *xdr.ContractCodeCostInputs) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		size, err := r.u32()
		if err != nil {
			return err
		}
		if _, err := r.take(size); err != nil {
			return err
		}
		ci.NInstructions = satAdd32(ci.NInstructions, size)
	}
	if !r.done() {
		return errSectionLen
	}
	return nil
}

func scanData(r *reader, ci *xdr.ContractCodeCostInputs) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	ci.NDataSegments = n
	for i := uint32(0); i < n; i++ {
		flag, err := r.u32()
		if err != nil {
			return err
		}
		switch flag {
		case 0:
			err = r.constExpr()
		case 1:
		case 2:
			if _, err = r.u32(); err == nil {
				err = r.constExpr()
			}
		default:
			err = fmt.Errorf("unknown data segment flag %d", flag)
		}
		if err != nil {
			return err
		}
		size, err := r.u32()
		if err != nil {
			return err
		}
		if _, err := r.take(size); err != nil {
			return err
		}
		ci.NDataSegmentBytes = satAdd32(ci.NDataSegmentBytes, size)
	}
	return nil
}

// ==================== 计费 ====================

// ChargeParse 按成本输入对解析阶段计费
func ChargeParse(b *budget.Budget, ci xdr.ContractCodeCostInputs) error {
	return chargeAll(b, []charge{
		{xdr.CostParseWasmInstructions, ci.NInstructions},
		{xdr.CostParseWasmFunctions, ci.NFunctions},
		{xdr.CostParseWasmGlobals, ci.NGlobals},
		{xdr.CostParseWasmTableEntries, ci.NTableEntries},
		{xdr.CostParseWasmTypes, ci.NTypes},
		{xdr.CostParseWasmDataSegments, ci.NDataSegments},
		{xdr.CostParseWasmElemSegments, ci.NElemSegments},
		{xdr.CostParseWasmImports, ci.NImports},
		{xdr.CostParseWasmExports, ci.NExports},
		{xdr.CostParseWasmDataSegmentBytes, ci.NDataSegmentBytes},
	})
}

// ChargeInstantiate 按成本输入对实例化阶段计费
func ChargeInstantiate(b *budget.Budget, ci xdr.ContractCodeCostInputs) error {
	return chargeAll(b, []charge{
		{xdr.CostInstantiateWasmInstructions, ci.NInstructions},
		{xdr.CostInstantiateWasmFunctions, ci.NFunctions},
		{xdr.CostInstantiateWasmGlobals, ci.NGlobals},
		{xdr.CostInstantiateWasmTableEntries, ci.NTableEntries},
		{xdr.CostInstantiateWasmTypes, ci.NTypes},
		{xdr.CostInstantiateWasmDataSegments, ci.NDataSegments},
		{xdr.CostInstantiateWasmElemSegments, ci.NElemSegments},
		{xdr.CostInstantiateWasmImports, ci.NImports},
		{xdr.CostInstantiateWasmExports, ci.NExports},
		{xdr.CostInstantiateWasmDataSegmentBytes, ci.NDataSegmentBytes},
	})
}

type charge struct {
	ty    xdr.ContractCostType
	input uint32
}

func chargeAll(b *budget.Budget, charges []charge) error {
	for _, c := range charges {
		if err := b.Charge(c.ty, uint64(c.input)); err != nil {
			return err
		}
	}
	return nil
}

// MemorySizeForRent 合约代码的内存占用（租金口径）
//
// 使用独立的无上限预算，只对解析阶段计费，返回消耗的内存字节数，
// 超出 uint32 时截断为最大值。
func MemorySizeForRent(cpu, mem xdr.ContractCostParams, numCostTypes int, code *xdr.ContractCodeEntry) (uint32, error) {
	b, err := budget.New(math.MaxUint64, math.MaxUint64, cpu, mem, numCostTypes)
	if err != nil {
		return 0, err
	}

	var ci xdr.ContractCodeCostInputs
	if code.CostInputs != nil {
		ci = *code.CostInputs
	} else if ci, err = ParseCostInputs(code.Code); err != nil {
		return 0, err
	}

	if err := ChargeParse(b, ci); err != nil {
		return 0, err
	}
	if m := b.MemBytesConsumed(); m <= math.MaxUint32 {
		return uint32(m), nil
	}
	return math.MaxUint32, nil
}

// ==================== 读取器 ====================

type reader struct {
	b []byte
}

func (r *reader) done() bool { return len(r.b) == 0 }

func (r *reader) byte() (byte, error) {
	if len(r.b) == 0 {
		return 0, errTruncated
	}
	v := r.b[0]
	r.b = r.b[1:]
	return v, nil
}

func (r *reader) take(n uint32) ([]byte, error) {
	if uint64(n) > uint64(len(r.b)) {
		return nil, errTruncated
	}
	v := r.b[:n]
	r.b = r.b[n:]
	return v, nil
}

// u32 读取无符号 LEB128
func (r *reader) u32() (uint32, error) {
	var v uint32
	for shift := uint(0); shift < 35; shift += 7 {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		if shift == 28 && b > 0x0f {
			return 0, errBadLEB
		}
		v |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, errBadLEB
}

// skipLEB 跳过一个有符号或无符号 LEB128
func (r *reader) skipLEB(maxBytes int) error {
	for i := 0; i < maxBytes; i++ {
		b, err := r.byte()
		if err != nil {
			return err
		}
		if b&0x80 == 0 {
			return nil
		}
	}
	return errBadLEB
}

// constExpr 跳过数据段偏移的常量表达式（i32.const / i64.const / global.get）
func (r *reader) constExpr() error {
	op, err := r.byte()
	if err != nil {
		return err
	}
	switch op {
	case 0x41, 0x23:
		err = r.skipLEB(5)
	case 0x42:
		err = r.skipLEB(10)
	default:
		return errConstExpr
	}
	if err != nil {
		return err
	}
	end, err := r.byte()
	if err != nil {
		return err
	}
	if end != 0x0b {
		return errConstExpr
	}
	return nil
}

func satAdd32(a, b uint32) uint32 {
	if a > math.MaxUint32-b {
		return math.MaxUint32
	}
	return a + b
}
