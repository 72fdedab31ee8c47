package fees

// LedgerEntryRentChange 单个条目的租金相关变化
//
// OldSizeBytes 与 OldLiveUntilLedger 同为 0 表示新建条目。
type LedgerEntryRentChange struct {
	IsPersistent       bool   `json:"is_persistent"`
	IsCodeEntry        bool   `json:"is_code_entry"`
	OldSizeBytes       uint32 `json:"old_size_bytes"`
	NewSizeBytes       uint32 `json:"new_size_bytes"`
	OldLiveUntilLedger uint32 `json:"old_live_until_ledger"`
	NewLiveUntilLedger uint32 `json:"new_live_until_ledger"`
}

// RentFeeConfiguration 租金费率配置
//
// FeePerRent1KB 为每 1KB 每账本的基础租金费率，按存储类型的分母折算。
type RentFeeConfiguration struct {
	FeePerRent1KB                 int64 `json:"fee_per_rent_1kb"`
	FeePerWriteEntry              int64 `json:"fee_per_write_entry"`
	FeePerWrite1KB                int64 `json:"fee_per_write_1kb"`
	PersistentRentRateDenominator int64 `json:"persistent_rent_rate_denominator"`
	TemporaryRentRateDenominator  int64 `json:"temporary_rent_rate_denominator"`
}

// IsNew 是否为本次调用新建的条目
func (c LedgerEntryRentChange) IsNew() bool {
	return c.OldSizeBytes == 0 && c.OldLiveUntilLedger == 0
}

// extensionLedgers 需要付费的延长账本数
//
// 新条目从当前账本的前一个账本开始计算，因为当前账本也需要付租金。
func (c LedgerEntryRentChange) extensionLedgers(currentLedger uint32) uint32 {
	if c.IsNew() {
		d, _ := exclusiveLedgerDiff(satSubU32(currentLedger, 1), c.NewLiveUntilLedger)
		return d
	}
	d, _ := exclusiveLedgerDiff(c.OldLiveUntilLedger, c.NewLiveUntilLedger)
	return d
}

// prepaidLedgers 条目已预付的账本数，条目增大时需要为增量补付
func (c LedgerEntryRentChange) prepaidLedgers(currentLedger uint32) (uint32, bool) {
	if c.IsNew() {
		return 0, false
	}
	return exclusiveLedgerDiff(satSubU32(currentLedger, 1), c.OldLiveUntilLedger)
}

// ComputeRentFee 计算一组条目变化的租金费
func ComputeRentFee(changes []LedgerEntryRentChange, cfg RentFeeConfiguration, currentLedger uint32) int64 {
	var fee int64
	var extendedEntries int64
	var extendedKeyBytes uint32

	for _, c := range changes {
		fee = satAdd(fee, rentFeePerEntryChange(c, cfg, currentLedger))
		if c.OldLiveUntilLedger < c.NewLiveUntilLedger {
			extendedEntries++
			extendedKeyBytes = satAddU32(extendedKeyBytes, TTLEntrySize)
		}
	}

	fee = satAdd(fee, satMul(clampFee(cfg.FeePerWriteEntry), extendedEntries))
	fee = satAdd(fee, feePerIncrement(extendedKeyBytes, cfg.FeePerWrite1KB, DataSize1KBIncrement))
	return fee
}

func rentFeePerEntryChange(c LedgerEntryRentChange, cfg RentFeeConfiguration, currentLedger uint32) int64 {
	var fee int64
	if c.OldLiveUntilLedger < c.NewLiveUntilLedger {
		fee = satAdd(fee, rentFeeForSizeAndLedgers(c.IsPersistent, c.NewSizeBytes, c.extensionLedgers(currentLedger), cfg))
	}
	if ledgers, ok := c.prepaidLedgers(currentLedger); ok && c.NewSizeBytes > c.OldSizeBytes {
		fee = satAdd(fee, rentFeeForSizeAndLedgers(c.IsPersistent, c.NewSizeBytes-c.OldSizeBytes, ledgers, cfg))
	}
	return fee
}

// rentFeeForSizeAndLedgers ceil(size * rate * ledgers / (1024 * denominator))
func rentFeeForSizeAndLedgers(isPersistent bool, size, ledgers uint32, cfg RentFeeConfiguration) int64 {
	num := satMul(int64(size), clampFee(cfg.FeePerRent1KB))
	num = satMul(num, int64(ledgers))

	coef := cfg.TemporaryRentRateDenominator
	if isPersistent {
		coef = cfg.PersistentRentRateDenominator
	}
	denom := satMul(DataSize1KBIncrement, clampFee(coef))
	return divCeil(num, max64(denom, 1))
}

// exclusiveLedgerDiff hi - lo，hi < lo 时不存在
func exclusiveLedgerDiff(lo, hi uint32) (uint32, bool) {
	if hi < lo {
		return 0, false
	}
	return hi - lo, true
}

func satSubU32(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}

// ============================================================================
//                          每 1KB 租金写入费率
// ============================================================================

// RentWriteFeeConfiguration 租金写入费率随状态规模增长的配置
type RentWriteFeeConfiguration struct {
	StateTargetSizeBytes         int64  `json:"state_target_size_bytes"`
	RentFee1KBStateSizeLow       int64  `json:"rent_fee_1kb_state_size_low"`
	RentFee1KBStateSizeHigh      int64  `json:"rent_fee_1kb_state_size_high"`
	StateSizeRentFeeGrowthFactor uint32 `json:"state_size_rent_fee_growth_factor"`
}

// ComputeRentWriteFeePer1KB 按当前状态规模计算每 1KB 的租金写入费率
//
// 低于目标规模时在 low 与 high 之间线性插值；超过目标后以 growth 倍的
// 斜率继续增长。结果不低于 MinimumRentWriteFeePer1KB。
func ComputeRentWriteFeePer1KB(stateSizeBytes int64, cfg RentWriteFeeConfiguration) int64 {
	stateSizeBytes = clampFee(stateSizeBytes)
	multiplier := clampFee(satSub(clampFee(cfg.RentFee1KBStateSizeHigh), clampFee(cfg.RentFee1KBStateSizeLow)))
	target := max64(cfg.StateTargetSizeBytes, 1)

	var fee int64
	if stateSizeBytes < cfg.StateTargetSizeBytes {
		fee = divCeil(satMul(multiplier, stateSizeBytes), target)
		fee = satAdd(fee, clampFee(cfg.RentFee1KBStateSizeLow))
	} else {
		fee = clampFee(cfg.RentFee1KBStateSizeHigh)
		over := satSub(stateSizeBytes, clampFee(cfg.StateTargetSizeBytes))
		post := satMul(satMul(multiplier, over), int64(cfg.StateSizeRentFeeGrowthFactor))
		fee = satAdd(fee, divCeil(post, target))
	}
	return max64(fee, MinimumRentWriteFeePer1KB)
}
