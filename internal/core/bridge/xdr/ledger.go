package xdr

import (
	"crypto/sha256"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// LedgerEntryType 账本条目类型
type LedgerEntryType int32

const (
	LedgerEntryTypeContractData LedgerEntryType = iota
	LedgerEntryTypeContractCode
	LedgerEntryTypeTTL
)

func (t LedgerEntryType) String() string {
	switch t {
	case LedgerEntryTypeContractData:
		return "ContractData"
	case LedgerEntryTypeContractCode:
		return "ContractCode"
	case LedgerEntryTypeTTL:
		return "Ttl"
	default:
		return fmt.Sprintf("LedgerEntryType(%d)", int32(t))
	}
}

// LedgerKey 账本键
//
// 按 Type 使用字段：
//   - ContractData: Contract / Key / Durability
//   - ContractCode: Hash（代码哈希）
//   - Ttl: Hash（被管理条目的键哈希）
type LedgerKey struct {
	Type       LedgerEntryType
	Contract   Hash
	Key        ScVal
	Durability ContractDataDurability
	Hash       Hash
}

// ContractDataKey 构造合约数据键
func ContractDataKey(contract Hash, key ScVal, durability ContractDataDurability) LedgerKey {
	return LedgerKey{Type: LedgerEntryTypeContractData, Contract: contract, Key: key, Durability: durability}
}

// ContractCodeKey 构造合约代码键
func ContractCodeKey(hash Hash) LedgerKey {
	return LedgerKey{Type: LedgerEntryTypeContractCode, Hash: hash}
}

// TTLKey 构造 TTL 键
func TTLKey(keyHash Hash) LedgerKey {
	return LedgerKey{Type: LedgerEntryTypeTTL, Hash: keyHash}
}

// IsPersistent 合约代码与持久数据为持久条目
func (k *LedgerKey) IsPersistent() bool {
	switch k.Type {
	case LedgerEntryTypeContractCode:
		return true
	case LedgerEntryTypeContractData:
		return k.Durability == DurabilityPersistent
	default:
		return false
	}
}

// HasTTL TTL 条目自身没有 TTL
func (k *LedgerKey) HasTTL() bool {
	return k.Type != LedgerEntryTypeTTL
}

func (k *LedgerKey) encode(w *Writer) error {
	switch k.Type {
	case LedgerEntryTypeContractData:
		return w.message(1, &contractDataKey{k})
	case LedgerEntryTypeContractCode:
		return w.message(2, hashMessage{&k.Hash})
	case LedgerEntryTypeTTL:
		return w.message(3, hashMessage{&k.Hash})
	default:
		return fmt.Errorf("unknown ledger key type %d", k.Type)
	}
}

func (k *LedgerKey) decode(r *Reader) error {
	armSet := false
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if armSet {
			return errMultiUnionArm
		}
		armSet = true
		switch num {
		case 1:
			k.Type = LedgerEntryTypeContractData
			return r.message(typ, &contractDataKey{k})
		case 2:
			k.Type = LedgerEntryTypeContractCode
			return r.message(typ, hashMessage{&k.Hash})
		case 3:
			k.Type = LedgerEntryTypeTTL
			return r.message(typ, hashMessage{&k.Hash})
		default:
			return errUnknownField
		}
	})
	if err != nil {
		return err
	}
	if !armSet {
		return errNoUnionArm
	}
	return nil
}

// contractDataKey 合约数据键分支：{1 contract, 2 key, 3 durability}
type contractDataKey struct{ k *LedgerKey }

func (c *contractDataKey) encode(w *Writer) error {
	if err := w.hash(1, c.k.Contract); err != nil {
		return err
	}
	if err := w.message(2, &c.k.Key); err != nil {
		return err
	}
	w.varint(3, uint64(c.k.Durability))
	return nil
}

func (c *contractDataKey) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		var err error
		switch num {
		case 1:
			c.k.Contract, err = r.hash(typ)
		case 2:
			err = r.message(typ, &c.k.Key)
		case 3:
			c.k.Durability, err = decodeDurability(r, typ)
		default:
			return errUnknownField
		}
		return err
	})
	if err != nil {
		return err
	}
	return requireFields(r, 1, 2)
}

// hashMessage 仅含一个 32 字节哈希（字段 1）的消息
type hashMessage struct{ h *Hash }

func (m hashMessage) encode(w *Writer) error { return w.hash(1, *m.h) }

func (m hashMessage) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		if num != 1 {
			return errUnknownField
		}
		var err error
		*m.h, err = r.hash(typ)
		return err
	})
	if err != nil {
		return err
	}
	return requireFields(r, 1)
}

// requireFields 校验必填字段均已出现
func requireFields(r *Reader, nums ...protowire.Number) error {
	for _, n := range nums {
		if r.seen&(uint64(1)<<uint(n)) == 0 {
			return fmt.Errorf("missing required field %d", n)
		}
	}
	return nil
}

// ============================================================================
//                               账本条目
// ============================================================================

// ContractCodeCostInputs 合约代码的解析/实例化成本输入
type ContractCodeCostInputs struct {
	NInstructions     uint32
	NFunctions        uint32
	NGlobals          uint32
	NTableEntries     uint32
	NTypes            uint32
	NDataSegments     uint32
	NElemSegments     uint32
	NImports          uint32
	NExports          uint32
	NDataSegmentBytes uint32
}

func (c *ContractCodeCostInputs) fieldPtrs() []*uint32 {
	return []*uint32{
		&c.NInstructions, &c.NFunctions, &c.NGlobals, &c.NTableEntries, &c.NTypes,
		&c.NDataSegments, &c.NElemSegments, &c.NImports, &c.NExports, &c.NDataSegmentBytes,
	}
}

func (c *ContractCodeCostInputs) encode(w *Writer) error {
	for i, p := range c.fieldPtrs() {
		w.varint(protowire.Number(i+1), uint64(*p))
	}
	return nil
}

func (c *ContractCodeCostInputs) decode(r *Reader) error {
	ptrs := c.fieldPtrs()
	return r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		if num < 1 || int(num) > len(ptrs) {
			return errUnknownField
		}
		v, err := r.uint32(typ)
		if err != nil {
			return err
		}
		*ptrs[num-1] = v
		return nil
	})
}

// ContractDataEntry 合约数据条目
type ContractDataEntry struct {
	Contract   Hash
	Key        ScVal
	Durability ContractDataDurability
	Val        ScVal
}

// ContractCodeEntry 合约代码条目，CostInputs 可缺省
type ContractCodeEntry struct {
	Hash       Hash
	Code       []byte
	CostInputs *ContractCodeCostInputs
}

// TTLEntry 条目存活期
type TTLEntry struct {
	KeyHash            Hash
	LiveUntilLedgerSeq uint32
}

// LedgerEntry 账本条目（三选一）
type LedgerEntry struct {
	LastModifiedLedgerSeq uint32
	ContractData          *ContractDataEntry
	ContractCode          *ContractCodeEntry
	TTL                   *TTLEntry
}

// Type 返回条目类型
func (e *LedgerEntry) Type() LedgerEntryType {
	switch {
	case e.ContractCode != nil:
		return LedgerEntryTypeContractCode
	case e.TTL != nil:
		return LedgerEntryTypeTTL
	default:
		return LedgerEntryTypeContractData
	}
}

// Key 返回条目对应的账本键
func (e *LedgerEntry) Key() LedgerKey {
	switch {
	case e.ContractData != nil:
		return ContractDataKey(e.ContractData.Contract, e.ContractData.Key, e.ContractData.Durability)
	case e.ContractCode != nil:
		return ContractCodeKey(e.ContractCode.Hash)
	case e.TTL != nil:
		return TTLKey(e.TTL.KeyHash)
	default:
		return LedgerKey{}
	}
}

func (e *LedgerEntry) encode(w *Writer) error {
	w.varint(1, uint64(e.LastModifiedLedgerSeq))
	arms := 0
	if e.ContractData != nil {
		arms++
		if err := w.message(2, e.ContractData); err != nil {
			return err
		}
	}
	if e.ContractCode != nil {
		arms++
		if err := w.message(3, e.ContractCode); err != nil {
			return err
		}
	}
	if e.TTL != nil {
		arms++
		if err := w.message(4, e.TTL); err != nil {
			return err
		}
	}
	switch arms {
	case 0:
		return errNoUnionArm
	case 1:
		return nil
	default:
		return errMultiUnionArm
	}
}

func (e *LedgerEntry) decode(r *Reader) error {
	armSet := false
	arm := func() error {
		if armSet {
			return errMultiUnionArm
		}
		armSet = true
		return nil
	}
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		var err error
		switch num {
		case 1:
			if err = r.once(num); err == nil {
				e.LastModifiedLedgerSeq, err = r.uint32(typ)
			}
		case 2:
			if err = arm(); err == nil {
				e.ContractData = &ContractDataEntry{}
				err = r.message(typ, e.ContractData)
			}
		case 3:
			if err = arm(); err == nil {
				e.ContractCode = &ContractCodeEntry{}
				err = r.message(typ, e.ContractCode)
			}
		case 4:
			if err = arm(); err == nil {
				e.TTL = &TTLEntry{}
				err = r.message(typ, e.TTL)
			}
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

func (d *ContractDataEntry) encode(w *Writer) error {
	if err := w.hash(1, d.Contract); err != nil {
		return err
	}
	if err := w.message(2, &d.Key); err != nil {
		return err
	}
	w.varint(3, uint64(d.Durability))
	return w.message(4, &d.Val)
}

func (d *ContractDataEntry) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		var err error
		switch num {
		case 1:
			d.Contract, err = r.hash(typ)
		case 2:
			err = r.message(typ, &d.Key)
		case 3:
			d.Durability, err = decodeDurability(r, typ)
		case 4:
			err = r.message(typ, &d.Val)
		default:
			return errUnknownField
		}
		return err
	})
	if err != nil {
		return err
	}
	return requireFields(r, 1, 2, 4)
}

func (c *ContractCodeEntry) encode(w *Writer) error {
	if err := w.hash(1, c.Hash); err != nil {
		return err
	}
	if err := w.bytes(2, c.Code); err != nil {
		return err
	}
	if c.CostInputs != nil {
		return w.message(3, c.CostInputs)
	}
	return nil
}

func (c *ContractCodeEntry) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		var err error
		switch num {
		case 1:
			c.Hash, err = r.hash(typ)
		case 2:
			c.Code, err = r.bytes(typ)
		case 3:
			c.CostInputs = &ContractCodeCostInputs{}
			err = r.message(typ, c.CostInputs)
		default:
			return errUnknownField
		}
		return err
	})
	if err != nil {
		return err
	}
	return requireFields(r, 1)
}

func (t *TTLEntry) encode(w *Writer) error {
	if err := w.hash(1, t.KeyHash); err != nil {
		return err
	}
	w.varint(2, uint64(t.LiveUntilLedgerSeq))
	return nil
}

func (t *TTLEntry) decode(r *Reader) error {
	err := r.fields(func(num protowire.Number, typ protowire.Type) error {
		if err := r.once(num); err != nil {
			return err
		}
		var err error
		switch num {
		case 1:
			t.KeyHash, err = r.hash(typ)
		case 2:
			t.LiveUntilLedgerSeq, err = r.uint32(typ)
		default:
			return errUnknownField
		}
		return err
	})
	if err != nil {
		return err
	}
	return requireFields(r, 1)
}

// KeyHash 计算账本键的 TTL 键哈希：sha256(编码后的键)
func KeyHash(key *LedgerKey) (Hash, error) {
	buf, err := MarshalTrusted(key)
	if err != nil {
		return Hash{}, err
	}
	return sha256.Sum256(buf), nil
}
