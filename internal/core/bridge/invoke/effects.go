package invoke

import (
	"github.com/weisyn/hostbridge/internal/core/bridge/engine"
	"github.com/weisyn/hostbridge/internal/core/bridge/fees"
	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

// ttlLastModifiedLedger 合成 TTL 记录的最后修改账本，由调用方回填
const ttlLastModifiedLedger = 0

// extractLedgerEffects 从逐键变更中重建需要写回账本的条目
//
// 可写且有新值的条目输出新值；存活期严格增加的条目另外合成一条 TTL 记录。
func extractLedgerEffects(changes []engine.LedgerEntryChange) ([][]byte, error) {
	var out [][]byte
	for i := range changes {
		c := &changes[i]
		if !c.ReadOnly && c.EncodedNewValue != nil {
			out = append(out, c.EncodedNewValue)
		}

		ttl := c.TTLChange
		if ttl == nil || ttl.NewLiveUntilLedger <= ttl.OldLiveUntilLedger {
			continue
		}
		if len(ttl.KeyHash) != len(xdr.Hash{}) {
			return nil, hosterror.Newf(xdr.ScErrorTypeValue, xdr.ScErrorCodeInternalError,
				"unexpected TTL key hash length %d", len(ttl.KeyHash))
		}
		var keyHash xdr.Hash
		copy(keyHash[:], ttl.KeyHash)

		buf, err := xdr.MarshalTrusted(&xdr.LedgerEntry{
			LastModifiedLedgerSeq: ttlLastModifiedLedger,
			TTL: &xdr.TTLEntry{
				KeyHash:            keyHash,
				LiveUntilLedgerSeq: ttl.NewLiveUntilLedger,
			},
		})
		if err != nil {
			return nil, hosterror.Wrap(xdr.ScErrorTypeValue, xdr.ScErrorCodeInternalError, err)
		}
		out = append(out, buf)
	}
	return out, nil
}

// extractRentChanges 提取需要计租的变更：存活期延长或条目变大
func extractRentChanges(changes []engine.LedgerEntryChange) []fees.LedgerEntryRentChange {
	var out []fees.LedgerEntryRentChange
	for i := range changes {
		c := &changes[i]
		ttl := c.TTLChange
		if ttl == nil {
			continue
		}
		newSize := c.OldEntrySizeForRent
		if c.EncodedNewValue != nil {
			newSize = c.NewEntrySizeForRent
		}
		if ttl.OldLiveUntilLedger >= ttl.NewLiveUntilLedger && c.OldEntrySizeForRent >= newSize {
			continue
		}
		out = append(out, fees.LedgerEntryRentChange{
			IsPersistent:       ttl.Durability == xdr.DurabilityPersistent,
			IsCodeEntry:        c.IsCodeEntry,
			OldSizeBytes:       c.OldEntrySizeForRent,
			NewSizeBytes:       newSize,
			OldLiveUntilLedger: ttl.OldLiveUntilLedger,
			NewLiveUntilLedger: ttl.NewLiveUntilLedger,
		})
	}
	return out
}
