package invoke

import (
	"errors"
	"fmt"

	"github.com/weisyn/hostbridge/internal/core/bridge/engine"
	"github.com/weisyn/hostbridge/internal/core/bridge/fees"
)

// LedgerInfo 账本快照
type LedgerInfo = engine.LedgerInfo

// ErrInvalidLedgerInfo 账本快照不完整
var ErrInvalidLedgerInfo = errors.New("invalid ledger info")

// WrapInvalidLedgerInfoError 包装账本快照错误
func WrapInvalidLedgerInfoError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidLedgerInfo, fmt.Sprintf(format, args...))
}

// InvokeRequest 一次调用的全部输入
//
// 除 Ledger、RentFeeConfig 与 ModuleCache 外均为编码后的交换缓冲区。
type InvokeRequest struct {
	EnableDiagnostics      bool
	InstructionLimit       uint64
	HostFunction           []byte
	Resources              []byte
	RestoredRWEntryIndices []uint32
	SourceAccount          []byte
	AuthEntries            [][]byte
	Ledger                 LedgerInfo
	LedgerEntries          [][]byte
	TTLEntries             [][]byte
	BasePRNGSeed           []byte
	RentFeeConfig          fees.RentFeeConfiguration
	// ModuleCache 可为 nil
	ModuleCache engine.ModuleCache
}

// InvocationOutput 调用结果
//
// 失败时 ResultValue、ModifiedLedgerEntries、ContractEvents 为空，
// RentFee 为 0，计量字段仍为失败前的实际消耗。
type InvocationOutput struct {
	Success         bool `json:"success"`
	IsInternalError bool `json:"is_internal_error"`

	DiagnosticEvents [][]byte `json:"diagnostic_events"`

	CPUInsns                          uint64 `json:"cpu_insns"`
	CPUInsnsExcludingVmInstantiation  uint64 `json:"cpu_insns_excluding_vm_instantiation"`
	MemBytes                          uint64 `json:"mem_bytes"`
	TimeNsecs                         uint64 `json:"time_nsecs"`
	TimeNsecsExcludingVmInstantiation uint64 `json:"time_nsecs_excluding_vm_instantiation"`

	ResultValue           []byte   `json:"result_value"`
	ModifiedLedgerEntries [][]byte `json:"modified_ledger_entries"`
	ContractEvents        [][]byte `json:"contract_events"`
	RentFee               int64    `json:"rent_fee"`
}

func validateLedgerInfo(li *LedgerInfo) error {
	if len(li.NetworkID) != 32 {
		return WrapInvalidLedgerInfoError("network id must be 32 bytes, got %d", len(li.NetworkID))
	}
	return nil
}
