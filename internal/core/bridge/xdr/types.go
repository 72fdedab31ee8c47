package xdr

import (
	"encoding/hex"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Hash 32 字节内容哈希
type Hash [32]byte

// String 返回十六进制表示
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash 解析 64 位十六进制哈希
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ScErrorType 宿主错误类别
type ScErrorType uint32

const (
	ScErrorTypeContract ScErrorType = iota
	ScErrorTypeWasmVm
	ScErrorTypeContext
	ScErrorTypeStorage
	ScErrorTypeObject
	ScErrorTypeCrypto
	ScErrorTypeEvents
	ScErrorTypeBudget
	ScErrorTypeValue
	ScErrorTypeAuth
)

var scErrorTypeNames = [...]string{
	"Contract", "WasmVm", "Context", "Storage", "Object",
	"Crypto", "Events", "Budget", "Value", "Auth",
}

func (t ScErrorType) String() string {
	if int(t) < len(scErrorTypeNames) {
		return scErrorTypeNames[t]
	}
	return fmt.Sprintf("ScErrorType(%d)", uint32(t))
}

// ScErrorCode 宿主错误码（Contract 类别下为合约自定义码）
type ScErrorCode uint32

const (
	ScErrorCodeArithDomain ScErrorCode = iota
	ScErrorCodeIndexBounds
	ScErrorCodeInvalidInput
	ScErrorCodeMissingValue
	ScErrorCodeExistingValue
	ScErrorCodeExceededLimit
	ScErrorCodeInvalidAction
	ScErrorCodeInternalError
	ScErrorCodeUnexpectedType
	ScErrorCodeUnexpectedSize
)

var scErrorCodeNames = [...]string{
	"ArithDomain", "IndexBounds", "InvalidInput", "MissingValue", "ExistingValue",
	"ExceededLimit", "InvalidAction", "InternalError", "UnexpectedType", "UnexpectedSize",
}

func (c ScErrorCode) String() string {
	if int(c) < len(scErrorCodeNames) {
		return scErrorCodeNames[c]
	}
	return fmt.Sprintf("ScErrorCode(%d)", uint32(c))
}

// ScError 结构化宿主错误值（类别 + 错误码）
type ScError struct {
	Type ScErrorType
	Code ScErrorCode
}

func (e ScError) String() string {
	if e.Type == ScErrorTypeContract {
		return fmt.Sprintf("Error(Contract, #%d)", uint32(e.Code))
	}
	return fmt.Sprintf("Error(%s, %s)", e.Type, e.Code)
}

// IsCode 判断错误码
func (e ScError) IsCode(code ScErrorCode) bool { return e.Code == code }

// IsType 判断错误类别
func (e ScError) IsType(t ScErrorType) bool { return e.Type == t }

func (e *ScError) encode(w *Writer) error {
	w.varint(1, uint64(e.Type))
	w.varint(2, uint64(e.Code))
	return nil
}

func (e *ScError) decode(r *Reader) error {
	return r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		var err error
		var v uint32
		switch num {
		case 1:
			if v, err = r.uint32(typ); err == nil {
				if v > uint32(ScErrorTypeAuth) {
					return fmt.Errorf("invalid error type %d", v)
				}
				e.Type = ScErrorType(v)
			}
		case 2:
			if v, err = r.uint32(typ); err == nil {
				e.Code = ScErrorCode(v)
			}
		default:
			return errUnknownField
		}
		return err
	})
}

// ContractDataDurability 合约数据持久性
type ContractDataDurability uint32

const (
	DurabilityTemporary ContractDataDurability = iota
	DurabilityPersistent
)

func (d ContractDataDurability) String() string {
	if d == DurabilityPersistent {
		return "Persistent"
	}
	return "Temporary"
}

func decodeDurability(r *Reader, typ protowire.Type) (ContractDataDurability, error) {
	v, err := r.uint32(typ)
	if err != nil {
		return 0, err
	}
	if v > uint32(DurabilityPersistent) {
		return 0, fmt.Errorf("invalid durability %d", v)
	}
	return ContractDataDurability(v), nil
}
