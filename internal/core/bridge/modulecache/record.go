package modulecache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

const recordPrefix = "module/"

// Record 一次成功编译的记录
type Record struct {
	Key        xdr.Hash
	Size       uint32
	CostInputs xdr.ContractCodeCostInputs
	MemBytes   uint64
}

var errBadRecord = errors.New("malformed compile record")

func recordKey(key xdr.Hash) string {
	return recordPrefix + key.String()
}

func (c *Cache) putRecord(ctx context.Context, key xdr.Hash, rec Record) error {
	if c.shared.records == nil {
		return nil
	}
	inputs, err := xdr.MarshalTrusted(&rec.CostInputs)
	if err != nil {
		return err
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Size))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, rec.MemBytes)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, inputs)
	return c.shared.records.Set(ctx, recordKey(key), b)
}

func decodeRecord(key xdr.Hash, b []byte) (*Record, error) {
	rec := &Record{Key: key}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errBadRecord
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, errBadRecord
			}
			rec.Size = uint32(v)
			n = m
		case num == 2 && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, errBadRecord
			}
			rec.MemBytes = v
			n = m
		case num == 3 && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, errBadRecord
			}
			if err := xdr.UnmarshalTrusted(v, &rec.CostInputs); err != nil {
				return nil, err
			}
			n = m
		default:
			return nil, fmt.Errorf("%w: unexpected field %d", errBadRecord, num)
		}
		b = b[n:]
	}
	return rec, nil
}

// Record 读取编译记录，记录可能已因过期被淘汰
func (c *Cache) Record(ctx context.Context, key xdr.Hash) (*Record, bool, error) {
	if c.shared.records == nil {
		return nil, false, nil
	}
	b, ok, err := c.shared.records.Get(ctx, recordKey(key))
	if err != nil || !ok {
		return nil, false, err
	}
	rec, err := decodeRecord(key, b)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Records 列出所有仍在缓存中的条目的编译记录，按键排序
func (c *Cache) Records(ctx context.Context) ([]*Record, error) {
	if c.shared.records == nil {
		return nil, nil
	}
	keys, err := c.shared.records.GetKeys(ctx, recordPrefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	out := make([]*Record, 0, len(keys))
	for _, k := range keys {
		key, err := xdr.ParseHash(strings.TrimPrefix(k, recordPrefix))
		if err != nil {
			continue
		}
		if !c.Contains(key) {
			continue
		}
		rec, ok, err := c.Record(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
