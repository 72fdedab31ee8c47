package protocol

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeconfig "github.com/weisyn/hostbridge/internal/config/bridge"
	"github.com/weisyn/hostbridge/internal/core/bridge/budget"
	"github.com/weisyn/hostbridge/internal/core/bridge/fees"
	"github.com/weisyn/hostbridge/internal/core/bridge/testutil"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	opts := bridgeconfig.New(nil).GetOptions()
	opts.Protocols = []uint32{23, 21, 22}
	opts.CoreMaxProtocol = 23
	r, err := NewRegistry(context.Background(), opts, testutil.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func mustHost(t *testing.T, r *Registry, v uint32) Host {
	t.Helper()
	h, err := r.ForProtocol(v)
	require.NoError(t, err)
	return h
}

func TestRegistryForProtocol(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name         string
		proto        uint32
		numCostTypes int
		wantErr      bool
	}{
		{"协议21", 21, 45, false},
		{"协议22", 22, 70, false},
		{"协议23", 23, 70, false},
		{"低于支持范围", 20, 0, true},
		{"高于支持范围", 24, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := r.ForProtocol(tt.proto)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedProtocol)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.proto, h.MaxProtocol())
			assert.Equal(t, tt.numCostTypes, h.NumCostTypes())
		})
	}

	hosts := r.Hosts()
	require.Len(t, hosts, 3)
	for i, want := range []uint32{21, 22, 23} {
		assert.Equal(t, want, hosts[i].MaxProtocol())
	}
	assert.Equal(t, uint32(23), r.Latest().MaxProtocol())
}

func TestNewRegistryRejectsUnknownProtocol(t *testing.T) {
	opts := bridgeconfig.New(nil).GetOptions()
	opts.Protocols = []uint32{21, 99}
	_, err := NewRegistry(context.Background(), opts, testutil.NewTestLogger())
	require.ErrorIs(t, err, ErrUnsupportedProtocol)
	assert.Contains(t, err.Error(), "protocol=99")
}

func TestIsInternalError(t *testing.T) {
	r := newTestRegistry(t)
	p21, p22 := mustHost(t, r, 21), mustHost(t, r, 22)

	tests := []struct {
		name   string
		err    xdr.ScError
		want21 bool
		want22 bool
	}{
		{"合约抛出InternalError码", xdr.ScError{Type: xdr.ScErrorTypeContract, Code: xdr.ScErrorCodeInternalError}, true, false},
		{"宿主上下文内部错误", xdr.ScError{Type: xdr.ScErrorTypeContext, Code: xdr.ScErrorCodeInternalError}, true, true},
		{"预算耗尽不是内部错误", xdr.ScError{Type: xdr.ScErrorTypeBudget, Code: xdr.ScErrorCodeExceededLimit}, false, false},
		{"存储缺失不是内部错误", xdr.ScError{Type: xdr.ScErrorTypeStorage, Code: xdr.ScErrorCodeMissingValue}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want21, p21.IsInternalError(tt.err))
			assert.Equal(t, tt.want22, p22.IsInternalError(tt.err))
		})
	}
}

func TestFeeConversion(t *testing.T) {
	r := newTestRegistry(t)
	p22, p23 := mustHost(t, r, 22), mustHost(t, r, 23)

	t.Run("23之前写入条目计入读取条目", func(t *testing.T) {
		res := fees.TransactionResources{DiskReadEntries: 1, WriteEntries: 2, TransactionSizeBytes: 100}
		cfg := fees.FeeConfiguration{FeePerDiskReadEntry: 10, FeePerWriteEntry: 20}

		asReads := res
		asReads.DiskReadEntries = 3
		assert.Equal(t, fees.ComputeTransactionResourceFee(asReads, cfg), p22.ComputeTransactionResourceFee(res, cfg))
		assert.Equal(t, fees.ComputeTransactionResourceFee(res, cfg), p23.ComputeTransactionResourceFee(res, cfg))

		diff := p22.ComputeTransactionResourceFee(res, cfg).NonRefundable - p23.ComputeTransactionResourceFee(res, cfg).NonRefundable
		assert.Equal(t, int64(20), diff)
	})

	t.Run("23之前租金费率取写入费率", func(t *testing.T) {
		cfg := fees.RentFeeConfiguration{
			FeePerRent1KB:                 1000,
			FeePerWriteEntry:              100,
			FeePerWrite1KB:                4000,
			PersistentRentRateDenominator: 1000,
			TemporaryRentRateDenominator:  2000,
		}
		changes := []fees.LedgerEntryRentChange{{
			IsPersistent:       true,
			NewSizeBytes:       2048,
			NewLiveUntilLedger: 200_000,
		}}

		asWrite := cfg
		asWrite.FeePerRent1KB = cfg.FeePerWrite1KB
		assert.Equal(t, fees.ComputeRentFee(changes, asWrite, 100), p22.ComputeRentFee(changes, cfg, 100))
		assert.Equal(t, fees.ComputeRentFee(changes, cfg, 100), p23.ComputeRentFee(changes, cfg, 100))
		assert.Greater(t, p22.ComputeRentFee(changes, cfg, 100), p23.ComputeRentFee(changes, cfg, 100))
	})
}

func TestVersionInfo(t *testing.T) {
	r := newTestRegistry(t)

	t.Run("curr通道基础修订号等于自身修订号", func(t *testing.T) {
		info := mustHost(t, r, 23).VersionInfo(23)
		assert.Equal(t, uint32(23), info.EnvMaxProto)
		assert.Equal(t, "23.0.0", info.XdrPkgVer)
		assert.Len(t, info.XdrGitRev, 40)
		assert.Equal(t, info.XdrGitRev, info.XdrBaseGitRev)
		assert.Len(t, info.XdrFileHashes, 4)
	})

	t.Run("成本类别数不同修订号不同", func(t *testing.T) {
		v21 := mustHost(t, r, 21).VersionInfo(23)
		v23 := mustHost(t, r, 23).VersionInfo(23)
		assert.NotEqual(t, v21.XdrGitRev, v23.XdrGitRev)
		assert.Equal(t, mustHost(t, r, 22).VersionInfo(23).XdrGitRev, v23.XdrGitRev)
	})

	for _, channel := range []string{xdrChannelNext, xdrChannelCurrNext} {
		t.Run(channel+"通道且非最高协议时告警", func(t *testing.T) {
			logger := testutil.NewTestBehavioralLogger()
			h := &genericHost{
				p:      profile{maxProto: 22, numCostTypes: 45, xdrPkgVersion: "22.0.0", xdrChannel: channel},
				logger: logger,
			}

			info := h.VersionInfo(22)
			assert.Empty(t, logger.GetLogs())
			assert.Equal(t, schemaRevision(xdr.NumContractCostTypes), info.XdrBaseGitRev)
			assert.NotEqual(t, info.XdrGitRev, info.XdrBaseGitRev)

			h.VersionInfo(23)
			logs := logger.GetLogs()
			require.Len(t, logs, 1)
			assert.True(t, strings.HasPrefix(logs[0], "WARN"))
		})
	}

	t.Run("未知通道", func(t *testing.T) {
		h := &genericHost{p: profile{maxProto: 23, numCostTypes: 70, xdrChannel: "prev"}}
		info := h.VersionInfo(23)
		assert.Equal(t, "unknown XDR module configuration: 'prev'", info.XdrBaseGitRev)
	})

	t.Run("版本报告按协议升序", func(t *testing.T) {
		report := NewVersionReport(r)
		require.Len(t, report, 3)
		for i, want := range []uint32{21, 22, 23} {
			assert.Equal(t, want, report[i].EnvMaxProto)
		}
	})
}

func TestContractCodeMemorySizeForRent(t *testing.T) {
	r := newTestRegistry(t)
	h := mustHost(t, r, 23)

	wasm := testutil.ContractWasm()
	code := testutil.MustMarshal(t, &xdr.ContractCodeEntry{Hash: testutil.WasmHash(wasm), Code: wasm})
	empty := testutil.MustMarshal(t, xdr.ContractCostParams{})

	size, err := h.ContractCodeMemorySizeForRent(code, empty, empty)
	require.NoError(t, err)
	assert.Greater(t, size, uint32(0))

	t.Run("代码条目编码错误", func(t *testing.T) {
		_, err := h.ContractCodeMemorySizeForRent([]byte{0xff, 0xff}, empty, empty)
		require.ErrorIs(t, err, xdr.ErrMarshalling)
	})

	t.Run("参数表超出成本类别数", func(t *testing.T) {
		long := make(xdr.ContractCostParams, xdr.NumContractCostTypes+1)
		_, err := h.ContractCodeMemorySizeForRent(code, testutil.MustMarshal(t, long), empty)
		require.ErrorIs(t, err, budget.ErrConfig)
	})

	t.Run("字节码无法解析", func(t *testing.T) {
		bad := testutil.MustMarshal(t, &xdr.ContractCodeEntry{Hash: xdr.Hash{1}, Code: []byte("not wasm")})
		_, err := h.ContractCodeMemorySizeForRent(bad, empty, empty)
		require.Error(t, err)
	})
}

func TestPlanTTLExtensionUsesProtocolRentRate(t *testing.T) {
	r := newTestRegistry(t)
	req := fees.TTLExtensionRequest{
		Entries: []fees.TTLExtensionEntry{{
			KeyHash:         xdr.Hash{7},
			Exists:          true,
			IsPersistent:    true,
			EntrySize:       1024,
			LiveUntilLedger: 150,
		}},
		ExtendTo:      10_000,
		CurrentLedger: 100,
		RentConfig: fees.RentFeeConfiguration{
			FeePerRent1KB:                 1000,
			FeePerWrite1KB:                5000,
			PersistentRentRateDenominator: 100,
			TemporaryRentRateDenominator:  100,
		},
	}

	p22, err := mustHost(t, r, 22).PlanTTLExtension(req)
	require.NoError(t, err)
	p23, err := mustHost(t, r, 23).PlanTTLExtension(req)
	require.NoError(t, err)
	assert.Greater(t, p22.RentFee, p23.RentFee)
}

func TestCanParseTransaction(t *testing.T) {
	r := newTestRegistry(t)
	h := mustHost(t, r, 21)

	env := &xdr.TransactionEnvelope{SourceAccount: testutil.SourceAccount(), Fee: 100, SeqNum: 1}
	buf := testutil.MustMarshal(t, env)
	assert.True(t, h.CanParseTransaction(buf, 10))
	assert.False(t, h.CanParseTransaction(append(buf, 0xff), 10))
}
