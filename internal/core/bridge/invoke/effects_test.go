package invoke

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/hostbridge/internal/core/bridge/engine"
	"github.com/weisyn/hostbridge/internal/core/bridge/fees"
	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/testutil"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

var testKeyHash = xdr.Hash{0xab, 0xcd}

func ttlChange(oldLive, newLive uint32) *engine.TTLChange {
	return &engine.TTLChange{
		KeyHash:            testKeyHash[:],
		Durability:         xdr.DurabilityPersistent,
		OldLiveUntilLedger: oldLive,
		NewLiveUntilLedger: newLive,
	}
}

func TestExtractLedgerEffects(t *testing.T) {
	newValue := []byte{0x01, 0x02, 0x03}

	tests := []struct {
		name      string
		change    engine.LedgerEntryChange
		wantValue bool
		wantTTL   uint32
	}{
		{
			name:   "只读条目存活期未变",
			change: engine.LedgerEntryChange{ReadOnly: true, TTLChange: ttlChange(500, 500)},
		},
		{
			name:    "只读条目续期100个账本",
			change:  engine.LedgerEntryChange{ReadOnly: true, TTLChange: ttlChange(500, 600)},
			wantTTL: 600,
		},
		{
			name:   "存活期缩短不输出",
			change: engine.LedgerEntryChange{ReadOnly: true, TTLChange: ttlChange(600, 500)},
		},
		{
			name:      "可写条目新值且存活期不变",
			change:    engine.LedgerEntryChange{EncodedNewValue: newValue, TTLChange: ttlChange(500, 500)},
			wantValue: true,
		},
		{
			name:      "新建条目输出新值与TTL记录",
			change:    engine.LedgerEntryChange{EncodedNewValue: newValue, TTLChange: ttlChange(0, 4195)},
			wantValue: true,
			wantTTL:   4195,
		},
		{
			name:   "可写但已删除且无存活期",
			change: engine.LedgerEntryChange{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := extractLedgerEffects([]engine.LedgerEntryChange{tt.change})
			require.NoError(t, err)

			want := 0
			if tt.wantValue {
				want++
			}
			if tt.wantTTL > 0 {
				want++
			}
			require.Len(t, out, want)

			if tt.wantValue {
				assert.Equal(t, newValue, out[0])
			}
			if tt.wantTTL > 0 {
				var entry xdr.LedgerEntry
				testutil.MustUnmarshal(t, out[len(out)-1], &entry)
				require.NotNil(t, entry.TTL)
				assert.Equal(t, testKeyHash, entry.TTL.KeyHash)
				assert.Equal(t, tt.wantTTL, entry.TTL.LiveUntilLedgerSeq)
				assert.Equal(t, uint32(ttlLastModifiedLedger), entry.LastModifiedLedgerSeq)
			}
		})
	}

	t.Run("保持变更顺序", func(t *testing.T) {
		out, err := extractLedgerEffects([]engine.LedgerEntryChange{
			{EncodedNewValue: []byte{1}},
			{ReadOnly: true},
			{EncodedNewValue: []byte{2}},
		})
		require.NoError(t, err)
		assert.Equal(t, [][]byte{{1}, {2}}, out)
	})

	t.Run("键哈希长度错误", func(t *testing.T) {
		c := engine.LedgerEntryChange{ReadOnly: true, TTLChange: ttlChange(1, 2)}
		c.TTLChange.KeyHash = []byte{1, 2, 3}
		_, err := extractLedgerEffects([]engine.LedgerEntryChange{c})
		he, ok := hosterror.As(err)
		require.True(t, ok)
		assert.Equal(t, xdr.ScError{Type: xdr.ScErrorTypeValue, Code: xdr.ScErrorCodeInternalError}, he.Err)
	})
}

func TestExtractRentChanges(t *testing.T) {
	tests := []struct {
		name   string
		change engine.LedgerEntryChange
		want   []fees.LedgerEntryRentChange
	}{
		{
			name:   "无存活期信息",
			change: engine.LedgerEntryChange{EncodedNewValue: []byte{1}, NewEntrySizeForRent: 10},
		},
		{
			name: "存活期与大小均未增加",
			change: engine.LedgerEntryChange{
				ReadOnly: true, OldEntrySizeForRent: 100, NewEntrySizeForRent: 100, TTLChange: ttlChange(500, 500),
			},
		},
		{
			name: "只读条目续期",
			change: engine.LedgerEntryChange{
				ReadOnly: true, OldEntrySizeForRent: 100, NewEntrySizeForRent: 100, TTLChange: ttlChange(500, 900),
			},
			want: []fees.LedgerEntryRentChange{{
				IsPersistent: true, OldSizeBytes: 100, NewSizeBytes: 100, OldLiveUntilLedger: 500, NewLiveUntilLedger: 900,
			}},
		},
		{
			name: "条目变大",
			change: engine.LedgerEntryChange{
				EncodedNewValue: []byte{1}, OldEntrySizeForRent: 100, NewEntrySizeForRent: 180, TTLChange: ttlChange(500, 500),
			},
			want: []fees.LedgerEntryRentChange{{
				IsPersistent: true, OldSizeBytes: 100, NewSizeBytes: 180, OldLiveUntilLedger: 500, NewLiveUntilLedger: 500,
			}},
		},
		{
			name: "无新值时沿用旧大小",
			change: engine.LedgerEntryChange{
				OldEntrySizeForRent: 100, NewEntrySizeForRent: 999, TTLChange: ttlChange(500, 500),
			},
		},
		{
			name: "新建临时条目",
			change: engine.LedgerEntryChange{
				EncodedNewValue: []byte{1}, NewEntrySizeForRent: 64,
				TTLChange: &engine.TTLChange{KeyHash: testKeyHash[:], Durability: xdr.DurabilityTemporary, NewLiveUntilLedger: 115},
			},
			want: []fees.LedgerEntryRentChange{{
				NewSizeBytes: 64, NewLiveUntilLedger: 115,
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractRentChanges([]engine.LedgerEntryChange{tt.change}))
		})
	}
}
