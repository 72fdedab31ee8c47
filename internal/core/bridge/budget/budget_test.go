package budget

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

func TestCostModel_Evaluate(t *testing.T) {
	tests := []struct {
		name       string
		model      CostModel
		iterations uint64
		input      uint64
		want       uint64
	}{
		{"仅常数项", CostModel{ConstTerm: 10}, 3, 100, 30},
		{"线性项右移7位", CostModel{LinearTerm: 128}, 1, 5, 5},
		{"常数加线性", CostModel{ConstTerm: 4, LinearTerm: 256}, 1, 10, 24},
		{"乘法饱和", CostModel{ConstTerm: math.MaxUint64}, 2, 0, math.MaxUint64},
		{"线性饱和", CostModel{LinearTerm: math.MaxUint64}, 1, math.MaxUint64, math.MaxUint64},
		{"加法饱和", CostModel{ConstTerm: math.MaxUint64, LinearTerm: 1 << 7}, 1, 1, math.MaxUint64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.model.Evaluate(tt.iterations, tt.input))
		})
	}
}

func TestNew_Config(t *testing.T) {
	t.Run("参数覆盖默认模型", func(t *testing.T) {
		cpu := xdr.ContractCostParams{{ConstTerm: 7, LinearTerm: 0}}
		b, err := New(1000, 1000, cpu, nil, 45)
		require.NoError(t, err)
		require.NoError(t, b.Charge(xdr.CostWasmInsnExec, 0))
		assert.Equal(t, uint64(7), b.CPUInsnsConsumed())
	})

	t.Run("参数表过长", func(t *testing.T) {
		params := make(xdr.ContractCostParams, 46)
		_, err := New(1, 1, params, nil, 45)
		assert.True(t, errors.Is(err, ErrConfig))
	})

	t.Run("负数项", func(t *testing.T) {
		mem := xdr.ContractCostParams{{ConstTerm: -1}}
		_, err := New(1, 1, nil, mem, 70)
		assert.True(t, errors.Is(err, ErrConfig))
	})

	t.Run("类别数越界", func(t *testing.T) {
		_, err := New(1, 1, nil, nil, 0)
		assert.True(t, errors.Is(err, ErrConfig))
		_, err = New(1, 1, nil, nil, xdr.NumContractCostTypes+1)
		assert.True(t, errors.Is(err, ErrConfig))
	})
}

func TestBudget_Charge(t *testing.T) {
	t.Run("超出CPU上限仍记录消耗", func(t *testing.T) {
		cpu := xdr.ContractCostParams{{ConstTerm: 60}}
		b, err := New(100, math.MaxUint64, cpu, nil, 45)
		require.NoError(t, err)

		require.NoError(t, b.Charge(xdr.CostWasmInsnExec, 0))
		err = b.Charge(xdr.CostWasmInsnExec, 0)
		require.Error(t, err)

		he, ok := hosterror.As(err)
		require.True(t, ok)
		assert.Equal(t, xdr.ScErrorTypeBudget, he.Err.Type)
		assert.Equal(t, xdr.ScErrorCodeExceededLimit, he.Err.Code)
		assert.Equal(t, uint64(120), b.CPUInsnsConsumed())
		assert.Equal(t, uint64(0), b.CPURemaining())
		assert.Equal(t, uint64(2), b.Tracker(xdr.CostWasmInsnExec).Iterations)
	})

	t.Run("超出内存上限", func(t *testing.T) {
		b, err := New(math.MaxUint64, 10, nil, nil, 45)
		require.NoError(t, err)
		err = b.Charge(xdr.CostMemAlloc, 1024)
		assert.True(t, errors.Is(err, hosterror.BudgetExceeded("")))
	})

	t.Run("协议不支持的类别", func(t *testing.T) {
		b := NewUnlimited(45)
		err := b.Charge(xdr.CostBls12381FrInv, 1)
		he, ok := hosterror.As(err)
		require.True(t, ok)
		assert.Equal(t, xdr.ScErrorCodeInternalError, he.Err.Code)
		assert.Equal(t, Tracker{}, b.Tracker(xdr.CostBls12381FrInv))
	})

	t.Run("按类别累计", func(t *testing.T) {
		b := NewUnlimited(70)
		require.NoError(t, b.ChargeN(xdr.CostVmInstantiation, 1, 10))
		require.NoError(t, b.Charge(xdr.CostDispatchHostFunction, 0))

		vm := b.Tracker(xdr.CostVmInstantiation)
		assert.Equal(t, uint64(10), vm.Inputs)
		assert.Equal(t, defaultCPUModels[xdr.CostVmInstantiation].Evaluate(1, 10), vm.CPU)
		assert.Equal(t, vm.CPU+310, b.CPUInsnsConsumed())
		assert.Equal(t, 70, b.NumCostTypes())
	})
}

func TestBudget_TimeScope(t *testing.T) {
	b := NewUnlimited(45)
	stop := b.TimeScope(xdr.CostVmInstantiation)
	time.Sleep(2 * time.Millisecond)
	stop()

	assert.GreaterOrEqual(t, b.Time(xdr.CostVmInstantiation), 2*time.Millisecond)
	assert.Equal(t, time.Duration(0), b.Time(xdr.CostInvokeVmFunction))
	assert.Equal(t, time.Duration(0), b.Time(xdr.ContractCostType(99)))
}

func TestSaturatingSub(t *testing.T) {
	assert.Equal(t, uint64(0), SaturatingSub(3, 5))
	assert.Equal(t, uint64(2), SaturatingSub(5, 3))
}
