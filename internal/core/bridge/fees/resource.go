// Package fees 实现协议定义的费用公式
//
// 📋 **费用公式**
//   - 资源费：按声明的指令数、读写条目、读写字节、交易大小与事件大小计费，
//     拆分为不可退还与可退还两部分
//   - 租金费：按 TTL 延长的账本数与条目大小计费
//   - 每 1KB 租金写入费率：随链上状态规模增长
//   - TTL 延长规划：只读 footprint 的批量续期
//
// 所有函数都是纯函数，不依赖编排器，运算饱和且不会产生负值。
package fees

import "math"

const (
	// InstructionsIncrement 计算费的指令计价单位
	InstructionsIncrement int64 = 10000

	// DataSize1KBIncrement 字节类费用的计价单位
	DataSize1KBIncrement int64 = 1024

	// TxBaseResultSize 交易结果的基准大小，计入历史存储费
	TxBaseResultSize uint32 = 300

	// TTLEntrySize TTL 条目的固定大小，用于续期的写入费
	TTLEntrySize uint32 = 48

	// MinimumRentWriteFeePer1KB 每 1KB 租金写入费率下限
	MinimumRentWriteFeePer1KB int64 = 1000
)

// TransactionResources 交易声明的资源用量
type TransactionResources struct {
	Instructions            uint32 `json:"instructions"`
	DiskReadEntries         uint32 `json:"disk_read_entries"`
	WriteEntries            uint32 `json:"write_entries"`
	DiskReadBytes           uint32 `json:"disk_read_bytes"`
	WriteBytes              uint32 `json:"write_bytes"`
	ContractEventsSizeBytes uint32 `json:"contract_events_size_bytes"`
	TransactionSizeBytes    uint32 `json:"transaction_size_bytes"`
}

// FeeConfiguration 资源费率配置
type FeeConfiguration struct {
	FeePerInstructionIncrement int64 `json:"fee_per_instruction_increment"`
	FeePerDiskReadEntry        int64 `json:"fee_per_disk_read_entry"`
	FeePerWriteEntry           int64 `json:"fee_per_write_entry"`
	FeePerDiskRead1KB          int64 `json:"fee_per_disk_read_1kb"`
	FeePerWrite1KB             int64 `json:"fee_per_write_1kb"`
	FeePerHistorical1KB        int64 `json:"fee_per_historical_1kb"`
	FeePerContractEvent1KB     int64 `json:"fee_per_contract_event_1kb"`
	FeePerTransactionSize1KB   int64 `json:"fee_per_transaction_size_1kb"`
}

// FeePair 资源费：不可退还部分与可退还部分
type FeePair struct {
	NonRefundable int64 `json:"non_refundable"`
	Refundable    int64 `json:"refundable"`
}

// ComputeTransactionResourceFee 计算交易资源费
//
// 租金费不在这里计算，由调用方在执行后加到可退还部分。
func ComputeTransactionResourceFee(r TransactionResources, c FeeConfiguration) FeePair {
	computeFee := feePerIncrement(r.Instructions, c.FeePerInstructionIncrement, InstructionsIncrement)
	readEntryFee := satMul(clampFee(c.FeePerDiskReadEntry), int64(r.DiskReadEntries))
	writeEntryFee := satMul(clampFee(c.FeePerWriteEntry), int64(r.WriteEntries))
	readBytesFee := feePerIncrement(r.DiskReadBytes, c.FeePerDiskRead1KB, DataSize1KBIncrement)
	writeBytesFee := feePerIncrement(r.WriteBytes, c.FeePerWrite1KB, DataSize1KBIncrement)
	historicalFee := feePerIncrement(satAddU32(r.TransactionSizeBytes, TxBaseResultSize), c.FeePerHistorical1KB, DataSize1KBIncrement)
	bandwidthFee := feePerIncrement(r.TransactionSizeBytes, c.FeePerTransactionSize1KB, DataSize1KBIncrement)
	eventsFee := feePerIncrement(r.ContractEventsSizeBytes, c.FeePerContractEvent1KB, DataSize1KBIncrement)

	nonRefundable := satAdd(computeFee, readEntryFee)
	nonRefundable = satAdd(nonRefundable, writeEntryFee)
	nonRefundable = satAdd(nonRefundable, readBytesFee)
	nonRefundable = satAdd(nonRefundable, writeBytesFee)
	nonRefundable = satAdd(nonRefundable, historicalFee)
	nonRefundable = satAdd(nonRefundable, bandwidthFee)

	return FeePair{NonRefundable: nonRefundable, Refundable: eventsFee}
}

// feePerIncrement ceil(value * rate / increment)
func feePerIncrement(value uint32, rate, increment int64) int64 {
	return divCeil(satMul(int64(value), clampFee(rate)), max64(increment, 1))
}

// ==================== 饱和运算 ====================

func clampFee(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// 以下运算的操作数均为非负数
func satAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func satMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

func satSub(a, b int64) int64 {
	if b > a {
		return 0
	}
	return a - b
}

func satAddU32(a, b uint32) uint32 {
	if a > math.MaxUint32-b {
		return math.MaxUint32
	}
	return a + b
}

func divCeil(n, d int64) int64 {
	if n == 0 {
		return 0
	}
	return (n-1)/d + 1
}
