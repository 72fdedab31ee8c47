package invoke

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeconfig "github.com/weisyn/hostbridge/internal/config/bridge"
	"github.com/weisyn/hostbridge/internal/core/bridge/budget"
	"github.com/weisyn/hostbridge/internal/core/bridge/engine"
	"github.com/weisyn/hostbridge/internal/core/bridge/fees"
	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/protocol"
	"github.com/weisyn/hostbridge/internal/core/bridge/testutil"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
	"github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/log"
)

const testSeq = 100

var testContract = xdr.Hash{0xc0, 0xde}

func testOptions() *bridgeconfig.BridgeOptions {
	opts := bridgeconfig.New(nil).GetOptions()
	opts.Protocols = []uint32{21, 22, 23}
	opts.CoreMaxProtocol = 23
	opts.EnableMetrics = true
	return opts
}

func newTestRegistry(t *testing.T) *protocol.Registry {
	t.Helper()
	r, err := protocol.NewRegistry(context.Background(), testOptions(), testutil.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func newTestOrchestrator(t *testing.T, logger log.Logger) *Orchestrator {
	return New(newTestRegistry(t), testOptions(), logger)
}

func testRentConfig() fees.RentFeeConfiguration {
	return fees.RentFeeConfiguration{
		FeePerRent1KB:                 1000,
		FeePerWriteEntry:              100,
		FeePerWrite1KB:                2000,
		PersistentRentRateDenominator: 1000,
		TemporaryRentRateDenominator:  2000,
	}
}

// testRequest 在已部署测试合约的账本上调用 fn
func testRequest(t *testing.T, proto uint32, rw []xdr.LedgerKey, fn string, args ...xdr.ScVal) *InvokeRequest {
	t.Helper()
	code := testutil.ContractWasm()
	hash := testutil.WasmHash(code)

	var entries, ttls [][]byte
	add := func(e xdr.LedgerEntry) {
		key := e.Key()
		kh, err := xdr.KeyHash(&key)
		require.NoError(t, err)
		entries = append(entries, testutil.MustMarshal(t, &e))
		ttls = append(ttls, testutil.MustMarshal(t, &xdr.LedgerEntry{TTL: &xdr.TTLEntry{KeyHash: kh, LiveUntilLedgerSeq: 5000}}))
	}
	add(xdr.LedgerEntry{ContractData: &xdr.ContractDataEntry{
		Contract: testContract, Key: xdr.ScValContractInstanceKey(), Durability: xdr.DurabilityPersistent, Val: xdr.ScValBytes(hash[:]),
	}})
	add(xdr.LedgerEntry{ContractCode: &xdr.ContractCodeEntry{Hash: hash, Code: code}})

	hf := xdr.HostFunction{
		Type:           xdr.HostFunctionTypeInvokeContract,
		InvokeContract: &xdr.InvokeContractArgs{ContractAddress: testContract, FunctionName: fn, Args: args},
	}
	res := xdr.SorobanResources{Footprint: xdr.LedgerFootprint{
		ReadOnly: []xdr.LedgerKey{
			xdr.ContractDataKey(testContract, xdr.ScValContractInstanceKey(), xdr.DurabilityPersistent),
			xdr.ContractCodeKey(hash),
		},
		ReadWrite: rw,
	}}
	source := testutil.SourceAccount()
	empty := testutil.MustMarshal(t, xdr.ContractCostParams{})

	return &InvokeRequest{
		EnableDiagnostics: true,
		InstructionLimit:  100_000_000,
		HostFunction:      testutil.MustMarshal(t, &hf),
		Resources:         testutil.MustMarshal(t, &res),
		SourceAccount:     testutil.MustMarshal(t, &source),
		Ledger: LedgerInfo{
			ProtocolVersion:  proto,
			SequenceNumber:   testSeq,
			NetworkID:        testutil.NetworkID(),
			MinTemporaryTTL:  16,
			MinPersistentTTL: 4096,
			MaxEntryTTL:      1_000_000,
			MemoryLimit:      64 << 20,
			CPUCostParams:    empty,
			MemCostParams:    empty,
		},
		LedgerEntries: entries,
		TTLEntries:    ttls,
		BasePRNGSeed:  testutil.PRNGSeed(),
		RentFeeConfig: testRentConfig(),
	}
}

func decodeDiagnostic(t *testing.T, buf []byte) xdr.DiagnosticEvent {
	var ev xdr.DiagnosticEvent
	testutil.MustUnmarshal(t, buf, &ev)
	return ev
}

func TestInvokeSuccess(t *testing.T) {
	o := newTestOrchestrator(t, testutil.NewTestLogger())
	key := xdr.ContractDataKey(testContract, xdr.ScValU64(7), xdr.DurabilityPersistent)

	out, err := o.Invoke(context.Background(), testRequest(t, 23, []xdr.LedgerKey{key}, "store", xdr.ScValU64(7), xdr.ScValI64(42)))
	require.NoError(t, err)
	require.True(t, out.Success)
	assert.False(t, out.IsInternalError)

	assert.Greater(t, out.CPUInsns, uint64(0))
	assert.Greater(t, out.MemBytes, uint64(0))
	assert.LessOrEqual(t, out.CPUInsnsExcludingVmInstantiation, out.CPUInsns)
	assert.LessOrEqual(t, out.TimeNsecsExcludingVmInstantiation, out.TimeNsecs)
	assert.Greater(t, out.RentFee, int64(0))

	var val xdr.ScVal
	testutil.MustUnmarshal(t, out.ResultValue, &val)
	assert.Equal(t, xdr.ScValTypeVoid, val.Type)
	assert.Len(t, out.ContractEvents, 1)

	// 新建条目：新值 + TTL 记录
	require.Len(t, out.ModifiedLedgerEntries, 2)
	var data, ttl xdr.LedgerEntry
	testutil.MustUnmarshal(t, out.ModifiedLedgerEntries[0], &data)
	testutil.MustUnmarshal(t, out.ModifiedLedgerEntries[1], &ttl)
	require.NotNil(t, data.ContractData)
	assert.Equal(t, xdr.ScValI64(42), data.ContractData.Val)
	require.NotNil(t, ttl.TTL)
	wantHash, err := xdr.KeyHash(&key)
	require.NoError(t, err)
	assert.Equal(t, wantHash, ttl.TTL.KeyHash)
	assert.Equal(t, uint32(testSeq+4096-1), ttl.TTL.LiveUntilLedgerSeq)

	require.NotEmpty(t, out.DiagnosticEvents)
	for _, buf := range out.DiagnosticEvents {
		assert.True(t, decodeDiagnostic(t, buf).InSuccessfulContractCall)
	}
}

func TestInvokeFailureClassification(t *testing.T) {
	o := newTestOrchestrator(t, testutil.NewTestLogger())
	internalCode := xdr.ScValU32(uint32(xdr.ScErrorCodeInternalError))

	tests := []struct {
		name         string
		proto        uint32
		fn           string
		args         []xdr.ScVal
		wantInternal bool
	}{
		{"协议21合约抛出InternalError码", 21, "fail", []xdr.ScVal{internalCode}, true},
		{"协议22合约抛出InternalError码", 22, "fail", []xdr.ScVal{internalCode}, false},
		{"协议23合约抛出InternalError码", 23, "fail", []xdr.ScVal{internalCode}, false},
		{"协议22普通合约错误", 22, "fail", []xdr.ScVal{xdr.ScValU32(3)}, false},
		{"执行陷阱", 22, "trap", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := o.Invoke(context.Background(), testRequest(t, tt.proto, nil, tt.fn, tt.args...))
			require.NoError(t, err)
			assert.False(t, out.Success)
			assert.Equal(t, tt.wantInternal, out.IsInternalError)

			assert.Nil(t, out.ResultValue)
			assert.Nil(t, out.ModifiedLedgerEntries)
			assert.Nil(t, out.ContractEvents)
			assert.Zero(t, out.RentFee)
			assert.Greater(t, out.CPUInsns, uint64(0))

			require.NotEmpty(t, out.DiagnosticEvents)
			last := decodeDiagnostic(t, out.DiagnosticEvents[len(out.DiagnosticEvents)-1])
			assert.False(t, last.InSuccessfulContractCall)
			assert.Equal(t, xdr.ContractEventTypeDiagnostic, last.Event.Type)
			require.Len(t, last.Event.Topics, 2)
			assert.Equal(t, xdr.ScValSymbol("host_fn_failed"), last.Event.Topics[0])
			assert.Equal(t, xdr.ScValTypeError, last.Event.Topics[1].Type)
		})
	}

	t.Run("关闭诊断时不合成失败事件", func(t *testing.T) {
		req := testRequest(t, 22, nil, "trap")
		req.EnableDiagnostics = false
		out, err := o.Invoke(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, out.Success)
		assert.Empty(t, out.DiagnosticEvents)
	})

	t.Run("预算耗尽", func(t *testing.T) {
		req := testRequest(t, 22, nil, "add", xdr.ScValI64(1), xdr.ScValI64(2))
		req.InstructionLimit = 10
		out, err := o.Invoke(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, out.Success)
		assert.False(t, out.IsInternalError)
	})
}

func TestInvokeAborts(t *testing.T) {
	o := newTestOrchestrator(t, testutil.NewTestLogger())

	tests := []struct {
		name    string
		mutate  func(r *InvokeRequest)
		wantErr error
	}{
		{"网络标识长度错误", func(r *InvokeRequest) { r.Ledger.NetworkID = []byte{1} }, ErrInvalidLedgerInfo},
		{"协议版本不受支持", func(r *InvokeRequest) { r.Ledger.ProtocolVersion = 20 }, protocol.ErrUnsupportedProtocol},
		{"成本参数表无法解码", func(r *InvokeRequest) { r.Ledger.CPUCostParams = []byte{0xff} }, xdr.ErrMarshalling},
		{"成本参数表超长", func(r *InvokeRequest) {
			r.Ledger.MemCostParams = testutil.MustMarshal(t, make(xdr.ContractCostParams, 46))
			r.Ledger.ProtocolVersion = 21
		}, budget.ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(t, 23, nil, "add", xdr.ScValI64(1), xdr.ScValI64(2))
			tt.mutate(req)
			out, err := o.Invoke(context.Background(), req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, out)
		})
	}
}

// panicHost 在执行宿主函数时 panic
type panicHost struct {
	protocol.Host
	value interface{}
}

func (h *panicHost) InvokeHostFunction(context.Context, *budget.Budget, *engine.Request) *engine.Result {
	panic(h.value)
}

// switchSelector 第一次选择返回注入的宿主，之后回到真实注册表
type switchSelector struct {
	real     *protocol.Registry
	injected protocol.Host
}

func (s *switchSelector) ForProtocol(v uint32) (protocol.Host, error) {
	if h := s.injected; h != nil {
		s.injected = nil
		return h, nil
	}
	return s.real.ForProtocol(v)
}

type panickingSelector struct{}

func (panickingSelector) ForProtocol(uint32) (protocol.Host, error) { panic("selector broken") }

func TestInvokeFaultBarrier(t *testing.T) {
	reg := newTestRegistry(t)
	p22, err := reg.ForProtocol(22)
	require.NoError(t, err)

	sel := &switchSelector{real: reg, injected: &panicHost{Host: p22, value: "boom"}}
	o := New(sel, testOptions(), testutil.NewTestLogger())

	out, err := o.Invoke(context.Background(), testRequest(t, 22, nil, "add", xdr.ScValI64(1), xdr.ScValI64(2)))
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.True(t, out.IsInternalError)
	require.Len(t, out.DiagnosticEvents, 1)
	failed := decodeDiagnostic(t, out.DiagnosticEvents[0])
	assert.Equal(t, xdr.ScValFromError(xdr.ScError{Type: xdr.ScErrorTypeContext, Code: xdr.ScErrorCodeInternalError}), failed.Event.Topics[1])

	// 同一进程中后续调用不受影响
	out, err = o.Invoke(context.Background(), testRequest(t, 22, nil, "add", xdr.ScValI64(1), xdr.ScValI64(2)))
	require.NoError(t, err)
	require.True(t, out.Success)
	var val xdr.ScVal
	testutil.MustUnmarshal(t, out.ResultValue, &val)
	assert.Equal(t, xdr.ScValI64(3), val)

	t.Run("屏障之外的panic", func(t *testing.T) {
		o := New(panickingSelector{}, testOptions(), testutil.NewTestLogger())
		out, err := o.Invoke(context.Background(), testRequest(t, 22, nil, "add", xdr.ScValI64(1), xdr.ScValI64(2)))
		require.ErrorIs(t, err, hosterror.ErrHostPanicked)
		assert.Contains(t, err.Error(), "selector broken")
		assert.Nil(t, out)
	})
}

func TestInvokeTraceLogging(t *testing.T) {
	logger := testutil.NewTestBehavioralLogger()
	opts := testOptions()
	opts.TraceLogging = true
	o := New(newTestRegistry(t), opts, logger)

	out, err := o.Invoke(context.Background(), testRequest(t, 23, nil, "echo", xdr.ScValI64(9)))
	require.NoError(t, err)
	require.True(t, out.Success)

	var stages []string
	for _, line := range logger.GetLogs() {
		if strings.Contains(line, "[trace ") {
			stages = append(stages, line)
		}
	}
	require.NotEmpty(t, stages)
	assert.Contains(t, stages[0], " begin ")
	assert.Contains(t, stages[len(stages)-1], " end ok")
}

func TestInvokeWithModuleCache(t *testing.T) {
	reg := newTestRegistry(t)
	host, err := reg.ForProtocol(23)
	require.NoError(t, err)

	cache, err := host.NewModuleCache(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close(context.Background()) })
	require.NoError(t, cache.Compile(context.Background(), testutil.ContractWasm()))

	o := New(reg, testOptions(), testutil.NewTestLogger())
	cold, err := o.Invoke(context.Background(), testRequest(t, 23, nil, "add", xdr.ScValI64(1), xdr.ScValI64(2)))
	require.NoError(t, err)
	req := testRequest(t, 23, nil, "add", xdr.ScValI64(1), xdr.ScValI64(2))
	req.ModuleCache = cache
	warm, err := o.Invoke(context.Background(), req)
	require.NoError(t, err)

	require.True(t, cold.Success)
	require.True(t, warm.Success)
	assert.Equal(t, cold.ResultValue, warm.ResultValue)
	assert.Less(t, warm.CPUInsns, cold.CPUInsns)
	assert.Greater(t, cold.CPUInsns, cold.CPUInsnsExcludingVmInstantiation)
}
