package fees

import (
	"errors"
	"fmt"

	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

// ErrReadBytesExceeded 续期读取的字节数超过声明的读取资源
var ErrReadBytesExceeded = errors.New("operation byte-read resources exceeds amount specified")

// TTLExtensionEntry 只读 footprint 中的一个条目
//
// Exists 为 false 表示条目（或其 TTL）不存在。EntrySize 为租金计费大小，
// 代码条目在 23 及以后的协议中应已计入其内存占用。
type TTLExtensionEntry struct {
	KeyHash         xdr.Hash
	Exists          bool
	IsPersistent    bool
	IsCodeEntry     bool
	EntrySize       uint32
	LiveUntilLedger uint32
}

// TTLExtensionRequest 续期请求
type TTLExtensionRequest struct {
	Entries       []TTLExtensionEntry
	ExtendTo      uint32
	CurrentLedger uint32
	// DiskReadBytes 声明的读取字节上限，0 表示不检查
	DiskReadBytes uint32
	RentConfig    RentFeeConfiguration
}

// TTLExtension 一条续期结果
type TTLExtension struct {
	KeyHash      xdr.Hash
	OldLiveUntil uint32
	NewLiveUntil uint32
}

// TTLExtensionPlan 续期规划结果
type TTLExtensionPlan struct {
	RentChanges []LedgerEntryRentChange
	Extended    []TTLExtension
	Skipped     int
	ReadBytes   uint32
	RentFee     int64
}

// PlanTTLExtension 为只读 footprint 规划续期
//
// 新的到期账本为 CurrentLedger + ExtendTo。缺失或已归档的条目直接跳过
// （归档条目必须先恢复），存活期已足够的条目同样跳过。条目大小不变，
// 只对延长的账本收取租金。
func PlanTTLExtension(req TTLExtensionRequest) (*TTLExtensionPlan, error) {
	newLiveUntil := satAddU32(req.CurrentLedger, req.ExtendTo)
	plan := &TTLExtensionPlan{}

	for _, e := range req.Entries {
		if !e.Exists || e.LiveUntilLedger < req.CurrentLedger {
			plan.Skipped++
			continue
		}
		if e.LiveUntilLedger >= newLiveUntil {
			plan.Skipped++
			continue
		}

		plan.ReadBytes = satAddU32(plan.ReadBytes, e.EntrySize)
		if req.DiskReadBytes > 0 && plan.ReadBytes > req.DiskReadBytes {
			return nil, fmt.Errorf("%w: read %d, declared %d", ErrReadBytesExceeded, plan.ReadBytes, req.DiskReadBytes)
		}

		plan.RentChanges = append(plan.RentChanges, LedgerEntryRentChange{
			IsPersistent:       e.IsPersistent,
			IsCodeEntry:        e.IsCodeEntry,
			OldSizeBytes:       e.EntrySize,
			NewSizeBytes:       e.EntrySize,
			OldLiveUntilLedger: e.LiveUntilLedger,
			NewLiveUntilLedger: newLiveUntil,
		})
		plan.Extended = append(plan.Extended, TTLExtension{
			KeyHash:      e.KeyHash,
			OldLiveUntil: e.LiveUntilLedger,
			NewLiveUntil: newLiveUntil,
		})
	}

	plan.RentFee = ComputeRentFee(plan.RentChanges, req.RentConfig, req.CurrentLedger)
	return plan, nil
}
