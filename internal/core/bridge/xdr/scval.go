package xdr

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ScValType 合约值类型
type ScValType int32

const (
	ScValTypeVoid ScValType = iota
	ScValTypeBool
	ScValTypeError
	ScValTypeU32
	ScValTypeI32
	ScValTypeU64
	ScValTypeI64
	ScValTypeBytes
	ScValTypeSymbol
	ScValTypeVec
	ScValTypeMap
	ScValTypeAddress
	ScValTypeLedgerKeyContractInstance
)

// ScSymbolMaxLen 符号最大长度
const ScSymbolMaxLen = 32

// ScVal 合约值（联合体，按 Type 取对应字段）
type ScVal struct {
	Type    ScValType
	B       bool
	Error   ScError
	U32     uint32
	I32     int32
	U64     uint64
	I64     int64
	Bytes   []byte
	Sym     string
	Vec     []ScVal
	Map     []ScMapEntry
	Address Hash
}

// ScMapEntry 映射条目
type ScMapEntry struct {
	Key ScVal
	Val ScVal
}

func ScValVoid() ScVal                 { return ScVal{Type: ScValTypeVoid} }
func ScValBool(b bool) ScVal           { return ScVal{Type: ScValTypeBool, B: b} }
func ScValFromError(e ScError) ScVal   { return ScVal{Type: ScValTypeError, Error: e} }
func ScValU32(v uint32) ScVal          { return ScVal{Type: ScValTypeU32, U32: v} }
func ScValI32(v int32) ScVal           { return ScVal{Type: ScValTypeI32, I32: v} }
func ScValU64(v uint64) ScVal          { return ScVal{Type: ScValTypeU64, U64: v} }
func ScValI64(v int64) ScVal           { return ScVal{Type: ScValTypeI64, I64: v} }
func ScValSymbol(s string) ScVal       { return ScVal{Type: ScValTypeSymbol, Sym: s} }
func ScValVec(items ...ScVal) ScVal    { return ScVal{Type: ScValTypeVec, Vec: items} }
func ScValAddress(h Hash) ScVal        { return ScVal{Type: ScValTypeAddress, Address: h} }
func ScValContractInstanceKey() ScVal  { return ScVal{Type: ScValTypeLedgerKeyContractInstance} }
func ScValMap(es ...ScMapEntry) ScVal  { return ScVal{Type: ScValTypeMap, Map: es} }

// ScValBytes nil 规范化为空切片，与解码结果一致
func ScValBytes(b []byte) ScVal {
	if b == nil {
		b = []byte{}
	}
	return ScVal{Type: ScValTypeBytes, Bytes: b}
}

// ValidateSymbol 校验符号：最长 32 字节，仅允许 [A-Za-z0-9_]
func ValidateSymbol(s string) error {
	if len(s) > ScSymbolMaxLen {
		return fmt.Errorf("symbol too long: %d", len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return fmt.Errorf("invalid symbol character %q", c)
		}
	}
	return nil
}

func (v *ScVal) encode(w *Writer) error {
	switch v.Type {
	case ScValTypeVoid:
		return w.message(1, emptyMessage{})
	case ScValTypeBool:
		if v.B {
			w.forceVarint(2, 1)
		} else {
			w.forceVarint(2, 0)
		}
	case ScValTypeError:
		return w.message(3, &v.Error)
	case ScValTypeU32:
		w.forceVarint(4, uint64(v.U32))
	case ScValTypeI32:
		w.forceVarint(5, protowire.EncodeZigZag(int64(v.I32)))
	case ScValTypeU64:
		w.forceVarint(6, v.U64)
	case ScValTypeI64:
		w.forceVarint(7, protowire.EncodeZigZag(v.I64))
	case ScValTypeBytes:
		return w.forceBytes(8, v.Bytes)
	case ScValTypeSymbol:
		if err := ValidateSymbol(v.Sym); err != nil {
			return err
		}
		return w.forceBytes(9, []byte(v.Sym))
	case ScValTypeVec:
		return w.message(10, scVec(v.Vec))
	case ScValTypeMap:
		return w.message(11, scMap(v.Map))
	case ScValTypeAddress:
		return w.hash(12, v.Address)
	case ScValTypeLedgerKeyContractInstance:
		return w.message(13, emptyMessage{})
	default:
		return fmt.Errorf("unknown ScVal type %d", v.Type)
	}
	return nil
}

func (v *ScVal) decode(r *Reader) error {
	armSet := false
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if armSet {
			return errMultiUnionArm
		}
		armSet = true

		var err error
		switch num {
		case 1:
			v.Type = ScValTypeVoid
			err = r.message(typ, emptyMessage{})
		case 2:
			v.Type = ScValTypeBool
			v.B, err = r.bool(typ)
		case 3:
			v.Type = ScValTypeError
			err = r.message(typ, &v.Error)
		case 4:
			v.Type = ScValTypeU32
			v.U32, err = r.uint32(typ)
		case 5:
			v.Type = ScValTypeI32
			v.I32, err = r.int32(typ)
		case 6:
			v.Type = ScValTypeU64
			v.U64, err = r.varint(typ)
		case 7:
			v.Type = ScValTypeI64
			v.I64, err = r.int64(typ)
		case 8:
			v.Type = ScValTypeBytes
			v.Bytes, err = r.bytes(typ)
		case 9:
			v.Type = ScValTypeSymbol
			if v.Sym, err = r.string(typ); err == nil {
				err = ValidateSymbol(v.Sym)
			}
		case 10:
			v.Type = ScValTypeVec
			var vec scVec
			err = r.message(typ, &vec)
			v.Vec = vec
		case 11:
			v.Type = ScValTypeMap
			var m scMap
			err = r.message(typ, &m)
			v.Map = m
		case 12:
			v.Type = ScValTypeAddress
			v.Address, err = r.hash(typ)
		case 13:
			v.Type = ScValTypeLedgerKeyContractInstance
			err = r.message(typ, emptyMessage{})
		default:
			return errUnknownField
		}
		return err
	})
	if err != nil {
		return err
	}
	if !armSet {
		return errNoUnionArm
	}
	return nil
}

// scVec 值向量的消息形式：repeated ScVal = 1
type scVec []ScVal

func (s scVec) encode(w *Writer) error {
	for i := range s {
		if err := w.message(1, &s[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *scVec) decode(r *Reader) error {
	return r.fields(func(num protowire.Number, typ protowire.Type) error {
		if num != 1 {
			return errUnknownField
		}
		var item ScVal
		if err := r.message(typ, &item); err != nil {
			return err
		}
		*s = append(*s, item)
		return nil
	})
}

// scMap 映射的消息形式：repeated ScMapEntry = 1
type scMap []ScMapEntry

func (m scMap) encode(w *Writer) error {
	for i := range m {
		if err := w.message(1, &m[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *scMap) decode(r *Reader) error {
	return r.fields(func(num protowire.Number, typ protowire.Type) error {
		if num != 1 {
			return errUnknownField
		}
		var e ScMapEntry
		if err := r.message(typ, &e); err != nil {
			return err
		}
		*m = append(*m, e)
		return nil
	})
}

func (e *ScMapEntry) encode(w *Writer) error {
	if err := w.message(1, &e.Key); err != nil {
		return err
	}
	return w.message(2, &e.Val)
}

func (e *ScMapEntry) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		switch num {
		case 1:
			return r.message(typ, &e.Key)
		case 2:
			return r.message(typ, &e.Val)
		default:
			return errUnknownField
		}
	})
	if err != nil {
		return err
	}
	if r.seen != 1<<1|1<<2 {
		return fmt.Errorf("map entry requires key and val")
	}
	return nil
}

// emptyMessage 无字段的消息（Void 等联合体分支）
type emptyMessage struct{}

func (emptyMessage) encode(*Writer) error { return nil }

func (emptyMessage) decode(r *Reader) error {
	if len(r.b) != 0 {
		return errUnknownField
	}
	return nil
}
