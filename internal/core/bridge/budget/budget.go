// Package budget 实现单次调用的资源预算
//
// 📋 **计量模型**
//
// 每个成本类别有一对 CPU/内存成本模型：
//
//	cost(input) = ConstTerm + (LinearTerm * input) >> 7
//
// 所有运算饱和，不会溢出回绕。每个类别单独记录迭代次数、输入量、
// CPU、内存与墙钟时间，"VM 实例化"类别的时间单独计时，供编排器
// 计算扣除实例化后的执行指标。
//
// ⚠️ Budget 不是并发安全的：一次调用独占一个 Budget，调用结束即丢弃。
package budget

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

// ErrConfig 预算或成本参数配置非法
var ErrConfig = errors.New("invalid budget configuration")

// WrapConfigError 包装配置错误
func WrapConfigError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// CostModel 单个类别的成本模型
type CostModel struct {
	ConstTerm  uint64
	LinearTerm uint64
}

// Evaluate 计算 iterations 次、总输入量为 input 的成本
func (m CostModel) Evaluate(iterations, input uint64) uint64 {
	c := satMul(m.ConstTerm, iterations)
	hi, lo := bits.Mul64(m.LinearTerm, input)
	var lin uint64
	if hi>>7 != 0 {
		lin = math.MaxUint64
	} else {
		lin = hi<<57 | lo>>7
	}
	return satAdd(c, lin)
}

// Tracker 单个类别的累计消耗
type Tracker struct {
	Iterations uint64
	Inputs     uint64
	CPU        uint64
	Mem        uint64
}

// Budget 单次调用的资源预算
type Budget struct {
	numCostTypes int

	cpuLimit uint64
	memLimit uint64
	cpuTotal uint64
	memTotal uint64

	cpuModels []CostModel
	memModels []CostModel
	trackers  []Tracker
	times     []time.Duration
}

// New 按给定上限与成本参数表创建预算
//
// 先载入内置默认模型，再用 cpu/mem 参数表按下标覆盖。参数表长度超过
// numCostTypes 或存在负数项时返回 ErrConfig。
func New(cpuLimit, memLimit uint64, cpu, mem xdr.ContractCostParams, numCostTypes int) (*Budget, error) {
	if numCostTypes <= 0 || numCostTypes > xdr.NumContractCostTypes {
		return nil, WrapConfigError("cost type count %d out of range", numCostTypes)
	}

	cpuModels, err := buildModels(defaultCPUModels[:numCostTypes], cpu, numCostTypes, "cpu")
	if err != nil {
		return nil, err
	}
	memModels, err := buildModels(defaultMemModels[:numCostTypes], mem, numCostTypes, "mem")
	if err != nil {
		return nil, err
	}

	return &Budget{
		numCostTypes: numCostTypes,
		cpuLimit:     cpuLimit,
		memLimit:     memLimit,
		cpuModels:    cpuModels,
		memModels:    memModels,
		trackers:     make([]Tracker, numCostTypes),
		times:        make([]time.Duration, numCostTypes),
	}, nil
}

// NewUnlimited 创建不设上限、使用默认模型的预算
func NewUnlimited(numCostTypes int) *Budget {
	b, err := New(math.MaxUint64, math.MaxUint64, nil, nil, numCostTypes)
	if err != nil {
		// numCostTypes 来自各协议的常量配置
		panic(err)
	}
	return b
}

func buildModels(defaults []CostModel, params xdr.ContractCostParams, n int, side string) ([]CostModel, error) {
	if len(params) > n {
		return nil, WrapConfigError("%s cost params has %d entries, protocol supports %d", side, len(params), n)
	}
	models := append([]CostModel(nil), defaults...)
	for i, p := range params {
		if p.ConstTerm < 0 || p.LinearTerm < 0 {
			return nil, WrapConfigError("%s cost params entry %s has negative term", side, xdr.ContractCostType(i))
		}
		models[i] = CostModel{ConstTerm: uint64(p.ConstTerm), LinearTerm: uint64(p.LinearTerm)}
	}
	return models, nil
}

// Charge 按一次迭代计费
func (b *Budget) Charge(ty xdr.ContractCostType, input uint64) error {
	return b.ChargeN(ty, 1, input)
}

// ChargeN 按 iterations 次迭代、总输入量 input 计费
//
// 超过上限时消耗依旧被记录，并返回 (Budget, ExceededLimit)。
func (b *Budget) ChargeN(ty xdr.ContractCostType, iterations, input uint64) error {
	if ty < 0 || int(ty) >= b.numCostTypes {
		return hosterror.Newf(xdr.ScErrorTypeBudget, xdr.ScErrorCodeInternalError, "unknown cost type %d", int(ty))
	}

	cpu := b.cpuModels[ty].Evaluate(iterations, input)
	mem := b.memModels[ty].Evaluate(iterations, input)

	t := &b.trackers[ty]
	t.Iterations = satAdd(t.Iterations, iterations)
	t.Inputs = satAdd(t.Inputs, input)
	t.CPU = satAdd(t.CPU, cpu)
	t.Mem = satAdd(t.Mem, mem)

	b.cpuTotal = satAdd(b.cpuTotal, cpu)
	b.memTotal = satAdd(b.memTotal, mem)

	if b.cpuTotal > b.cpuLimit {
		return hosterror.BudgetExceeded(fmt.Sprintf("cpu limit exceeded: %d > %d (%s)", b.cpuTotal, b.cpuLimit, ty))
	}
	if b.memTotal > b.memLimit {
		return hosterror.BudgetExceeded(fmt.Sprintf("mem limit exceeded: %d > %d (%s)", b.memTotal, b.memLimit, ty))
	}
	return nil
}

// NumCostTypes 预算支持的成本类别数
func (b *Budget) NumCostTypes() int { return b.numCostTypes }

// CPUInsnsConsumed 已消耗的 CPU 指令数
func (b *Budget) CPUInsnsConsumed() uint64 { return b.cpuTotal }

// MemBytesConsumed 已消耗的内存字节数
func (b *Budget) MemBytesConsumed() uint64 { return b.memTotal }

// CPULimit CPU 指令上限
func (b *Budget) CPULimit() uint64 { return b.cpuLimit }

// MemLimit 内存字节上限
func (b *Budget) MemLimit() uint64 { return b.memLimit }

// CPURemaining 剩余 CPU 指令
func (b *Budget) CPURemaining() uint64 { return satSub(b.cpuLimit, b.cpuTotal) }

// Tracker 返回某个类别的累计消耗，未知类别返回零值
func (b *Budget) Tracker(ty xdr.ContractCostType) Tracker {
	if ty < 0 || int(ty) >= b.numCostTypes {
		return Tracker{}
	}
	return b.trackers[ty]
}

// Time 返回某个类别累计的墙钟时间
func (b *Budget) Time(ty xdr.ContractCostType) time.Duration {
	if ty < 0 || int(ty) >= b.numCostTypes {
		return 0
	}
	return b.times[ty]
}

// TimeScope 开始为某个类别计时，返回的函数结束计时并累加
func (b *Budget) TimeScope(ty xdr.ContractCostType) func() {
	start := time.Now()
	return func() {
		if ty >= 0 && int(ty) < b.numCostTypes {
			b.times[ty] += time.Since(start)
		}
	}
}

// ==================== 饱和运算 ====================

func satAdd(a, b uint64) uint64 {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return s
}

func satMul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// SaturatingSub 饱和减法，结果不小于 0
func SaturatingSub(a, b uint64) uint64 { return satSub(a, b) }
