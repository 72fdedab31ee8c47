package engine

import (
	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/wasmcost"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

// entryState footprint 中一个键的状态
type entryState struct {
	key        xdr.LedgerKey
	encodedKey []byte
	keyHash    xdr.Hash
	readOnly   bool

	// entry 当前值，nil 表示不存在
	entry *xdr.LedgerEntry
	// oldSize 初始条目的租金计费大小，新建或恢复的条目为 0
	oldSize      uint32
	oldLiveUntil uint32
	liveUntil    uint32
}

func (s *entryState) durability() xdr.ContractDataDurability {
	if s.key.IsPersistent() {
		return xdr.DurabilityPersistent
	}
	return xdr.DurabilityTemporary
}

// footprintStorage 调用可见的存储视图
type footprintStorage struct {
	order []*entryState
	byKey map[string]*entryState
}

// buildStorage 按 footprint 建立存储视图并载入账本快照
func buildStorage(f *frame, fp *xdr.LedgerFootprint) (*footprintStorage, error) {
	s := &footprintStorage{byKey: make(map[string]*entryState, len(fp.ReadOnly)+len(fp.ReadWrite))}
	rw := make([]*entryState, 0, len(fp.ReadWrite))

	add := func(key xdr.LedgerKey, readOnly bool) (*entryState, error) {
		if !key.HasTTL() {
			return nil, hosterror.New(xdr.ScErrorTypeStorage, xdr.ScErrorCodeInvalidInput, "TTL keys are not allowed in the footprint")
		}
		enc, err := xdr.MarshalTrusted(&key)
		if err != nil {
			return nil, hosterror.Encode(err)
		}
		if _, dup := s.byKey[string(enc)]; dup {
			return nil, hosterror.New(xdr.ScErrorTypeStorage, xdr.ScErrorCodeInvalidInput, "duplicate key in footprint")
		}
		hash, err := xdr.KeyHash(&key)
		if err != nil {
			return nil, hosterror.Encode(err)
		}
		st := &entryState{key: key, encodedKey: enc, keyHash: hash, readOnly: readOnly}
		s.byKey[string(enc)] = st
		s.order = append(s.order, st)
		return st, nil
	}
	for _, k := range fp.ReadOnly {
		if _, err := add(k, true); err != nil {
			return nil, err
		}
	}
	for _, k := range fp.ReadWrite {
		st, err := add(k, false)
		if err != nil {
			return nil, err
		}
		rw = append(rw, st)
	}

	restored := make(map[*entryState]bool, len(f.req.RestoredRWEntryIndices))
	for _, idx := range f.req.RestoredRWEntryIndices {
		if int(idx) >= len(rw) {
			return nil, hosterror.Newf(xdr.ScErrorTypeStorage, xdr.ScErrorCodeInternalError,
				"restored entry index %d out of range", idx)
		}
		restored[rw[idx]] = true
	}

	if len(f.req.LedgerEntries) != len(f.req.TTLEntries) {
		return nil, hosterror.Newf(xdr.ScErrorTypeStorage, xdr.ScErrorCodeInternalError,
			"%d ledger entries but %d TTL entries", len(f.req.LedgerEntries), len(f.req.TTLEntries))
	}

	seen := make(map[*entryState]bool, len(f.req.LedgerEntries))
	for i, buf := range f.req.LedgerEntries {
		var entry xdr.LedgerEntry
		if err := f.decode(buf, &entry); err != nil {
			return nil, err
		}
		key := entry.Key()
		st, err := s.lookup(&key)
		if err != nil {
			return nil, err
		}
		if seen[st] {
			return nil, hosterror.New(xdr.ScErrorTypeStorage, xdr.ScErrorCodeInternalError, "duplicate ledger entry")
		}
		seen[st] = true

		var ttl xdr.LedgerEntry
		if err := f.decode(f.req.TTLEntries[i], &ttl); err != nil {
			return nil, err
		}
		if ttl.TTL == nil || ttl.TTL.KeyHash != st.keyHash {
			return nil, hosterror.New(xdr.ScErrorTypeStorage, xdr.ScErrorCodeInternalError, "TTL entry does not match ledger entry")
		}

		live := ttl.TTL.LiveUntilLedgerSeq
		if live < f.req.Ledger.SequenceNumber {
			if !st.key.IsPersistent() {
				// 过期的临时条目视为不存在
				continue
			}
			if !restored[st] {
				return nil, hosterror.New(xdr.ScErrorTypeStorage, xdr.ScErrorCodeInternalError,
					"archived entry accessed without restoration")
			}
			// 恢复的条目按新建条目计租
			st.entry = &entry
			st.liveUntil = f.minLiveUntil(true)
			continue
		}

		size, err := f.rentSize(&entry, len(buf))
		if err != nil {
			return nil, err
		}
		st.entry = &entry
		st.oldSize = size
		st.oldLiveUntil = live
		st.liveUntil = live
	}
	return s, nil
}

// lookup 取出键对应的状态，footprint 之外的键返回 (Storage, ExceededLimit)
func (s *footprintStorage) lookup(key *xdr.LedgerKey) (*entryState, error) {
	enc, err := xdr.MarshalTrusted(key)
	if err != nil {
		return nil, hosterror.Encode(err)
	}
	st, ok := s.byKey[string(enc)]
	if !ok {
		return nil, hosterror.New(xdr.ScErrorTypeStorage, xdr.ScErrorCodeExceededLimit, "key is outside the footprint")
	}
	return st, nil
}

// get 取出已存在的条目
func (s *footprintStorage) get(key *xdr.LedgerKey) (*entryState, error) {
	st, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	if st.entry == nil {
		return nil, hosterror.Newf(xdr.ScErrorTypeStorage, xdr.ScErrorCodeMissingValue, "%s entry is missing", key.Type)
	}
	return st, nil
}

// writable 取出可写的状态
func (s *footprintStorage) writable(key *xdr.LedgerKey) (*entryState, error) {
	st, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	if st.readOnly {
		return nil, hosterror.New(xdr.ScErrorTypeStorage, xdr.ScErrorCodeExceededLimit, "write to a read-only footprint key")
	}
	return st, nil
}

// put 写入条目，新条目获得最小存活期
func (s *footprintStorage) put(f *frame, st *entryState, entry *xdr.LedgerEntry) {
	if st.entry == nil {
		st.liveUntil = f.minLiveUntil(st.key.IsPersistent())
	}
	entry.LastModifiedLedgerSeq = f.req.Ledger.SequenceNumber
	st.entry = entry
}

// changes 按 footprint 顺序（只读在前）生成最终变更
func (s *footprintStorage) changes(f *frame) ([]LedgerEntryChange, error) {
	out := make([]LedgerEntryChange, 0, len(s.order))
	for _, st := range s.order {
		c := LedgerEntryChange{
			ReadOnly:            st.readOnly,
			EncodedKey:          st.encodedKey,
			IsCodeEntry:         st.key.Type == xdr.LedgerEntryTypeContractCode,
			OldEntrySizeForRent: st.oldSize,
		}
		if st.entry != nil {
			c.NewEntrySizeForRent = st.oldSize
			if !st.readOnly {
				buf, err := xdr.MarshalTrusted(st.entry)
				if err != nil {
					return nil, hosterror.Encode(err)
				}
				size, err := f.rentSize(st.entry, len(buf))
				if err != nil {
					return nil, err
				}
				c.EncodedNewValue = buf
				c.NewEntrySizeForRent = size
			}
			c.TTLChange = &TTLChange{
				KeyHash:            append([]byte(nil), st.keyHash[:]...),
				Durability:         st.durability(),
				OldLiveUntilLedger: st.oldLiveUntil,
				NewLiveUntilLedger: st.liveUntil,
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// rentSize 条目的租金计费大小
//
// 启用 CodeRentIncludesMemory 时，代码条目额外计入其解析后的内存占用。
func (f *frame) rentSize(entry *xdr.LedgerEntry, encodedLen int) (uint32, error) {
	size := uint32(encodedLen)
	if !f.eng.cfg.CodeRentIncludesMemory || entry.ContractCode == nil {
		return size, nil
	}
	p, err := f.ledgerCostParams()
	if err != nil {
		return 0, err
	}
	mem, err := wasmcost.MemorySizeForRent(p.cpu, p.mem, f.eng.cfg.NumCostTypes, entry.ContractCode)
	if err != nil {
		return 0, hosterror.Wrap(xdr.ScErrorTypeWasmVm, xdr.ScErrorCodeInvalidInput, err)
	}
	return satAdd32(size, mem), nil
}
