package xdr

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHash(b byte) Hash {
	var h Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func sampleEnvelope() TransactionEnvelope {
	contract := testHash(0xCC)
	return TransactionEnvelope{
		SourceAccount: AccountID{Ed25519: testHash(0x01)},
		Fee:           100,
		SeqNum:        -7,
		Operations: []Operation{{
			HostFunction: HostFunction{
				Type: HostFunctionTypeInvokeContract,
				InvokeContract: &InvokeContractArgs{
					ContractAddress: contract,
					FunctionName:    "add",
					Args:            []ScVal{ScValU32(1), ScValI64(-2)},
				},
			},
			Auth: []SorobanAuthorizationEntry{{
				Credentials: SorobanCredentials{Address: &SorobanAddressCredentials{
					Address:                   testHash(0x02),
					Nonce:                     42,
					SignatureExpirationLedger: 1000,
					Signature:                 ScValBytes([]byte{9, 9}),
				}},
				RootInvocation: SorobanAuthorizedInvocation{
					Function: SorobanAuthorizedFunction{ContractFn: &InvokeContractArgs{ContractAddress: contract, FunctionName: "add"}},
					SubInvocations: []SorobanAuthorizedInvocation{{
						Function: SorobanAuthorizedFunction{CreateContract: &CreateContractArgs{Salt: testHash(3), WasmHash: testHash(4)}},
					}},
				},
			}},
		}},
		SorobanData: &SorobanTransactionData{
			Resources: SorobanResources{
				Footprint: LedgerFootprint{
					ReadOnly:  []LedgerKey{ContractCodeKey(testHash(4))},
					ReadWrite: []LedgerKey{ContractDataKey(contract, ScValSymbol("counter"), DurabilityPersistent)},
				},
				Instructions:  1_000_000,
				DiskReadBytes: 2048,
				WriteBytes:    512,
			},
			ResourceFee: 5000,
		},
		Signatures: []DecoratedSignature{{Hint: [4]byte{1, 2, 3, 4}, Signature: []byte{0xAA, 0xBB}}},
	}
}

func TestRoundTrip(t *testing.T) {
	t.Run("复合合约值", func(t *testing.T) {
		in := ScValVec(
			ScValBool(false),
			ScValBool(true),
			ScValVoid(),
			ScValFromError(ScError{Type: ScErrorTypeStorage, Code: ScErrorCodeMissingValue}),
			ScValI32(-5),
			ScValU64(1<<40),
			ScValSymbol("host_fn_failed"),
			ScValAddress(testHash(7)),
			ScValContractInstanceKey(),
			ScValMap(ScMapEntry{Key: ScValSymbol("k"), Val: ScValVec(ScValU32(0))}),
		)
		buf, err := MarshalTrusted(&in)
		require.NoError(t, err)

		var out ScVal
		require.NoError(t, UnmarshalTrusted(buf, &out))
		assert.Equal(t, in, out)
	})

	t.Run("空字节串", func(t *testing.T) {
		for _, in := range []ScVal{ScValBytes([]byte{}), ScValBytes(nil), ScValVec(ScValBytes(nil), ScValU32(1))} {
			buf, err := MarshalTrusted(&in)
			require.NoError(t, err)

			var out ScVal
			require.NoError(t, UnmarshalTrusted(buf, &out))
			assert.True(t, reflect.DeepEqual(in, out), "%+v != %+v", in, out)
		}
	})

	t.Run("账本条目", func(t *testing.T) {
		entries := []LedgerEntry{
			{LastModifiedLedgerSeq: 9, ContractData: &ContractDataEntry{
				Contract: testHash(1), Key: ScValSymbol("a"), Durability: DurabilityTemporary, Val: ScValI64(3),
			}},
			{ContractCode: &ContractCodeEntry{
				Hash: testHash(2), Code: []byte{0, 0x61, 0x73, 0x6d},
				CostInputs: &ContractCodeCostInputs{NInstructions: 4, NFunctions: 1, NDataSegmentBytes: 12},
			}},
			{TTL: &TTLEntry{KeyHash: testHash(3), LiveUntilLedgerSeq: 1234}},
		}
		for _, in := range entries {
			buf, err := MarshalTrusted(&in)
			require.NoError(t, err)
			var out LedgerEntry
			require.NoError(t, UnmarshalTrusted(buf, &out))
			assert.Equal(t, in, out)
			assert.Equal(t, in.Key(), out.Key())
		}
	})

	t.Run("交易信封", func(t *testing.T) {
		in := sampleEnvelope()
		buf, err := MarshalTrusted(&in)
		require.NoError(t, err)
		var out TransactionEnvelope
		require.NoError(t, UnmarshalTrusted(buf, &out))
		assert.Equal(t, in, out)
	})

	t.Run("成本参数与诊断事件", func(t *testing.T) {
		params := ContractCostParams{{ConstTerm: 4, LinearTerm: 0}, {ConstTerm: 0, LinearTerm: 128}, {ConstTerm: 0, LinearTerm: 0}}
		buf, err := MarshalTrusted(params)
		require.NoError(t, err)
		var decoded ContractCostParams
		require.NoError(t, UnmarshalTrusted(buf, &decoded))
		assert.Equal(t, params, decoded)

		id := testHash(5)
		ev := DiagnosticEvent{InSuccessfulContractCall: true, Event: ContractEvent{
			ContractID: &id, Type: ContractEventTypeContract,
			Topics: []ScVal{ScValSymbol("transfer")}, Data: ScValU32(10),
		}}
		buf, err = MarshalTrusted(&ev)
		require.NoError(t, err)
		var evOut DiagnosticEvent
		require.NoError(t, UnmarshalTrusted(buf, &evOut))
		assert.Equal(t, ev, evOut)
	})
}

func nestedVec(depth int) ScVal {
	v := ScValU32(1)
	for i := 0; i < depth; i++ {
		v = ScValVec(v)
	}
	return v
}

func TestLimits(t *testing.T) {
	t.Run("嵌套过深解码失败", func(t *testing.T) {
		deep := nestedVec(600)
		buf, err := Marshal(&deep, Limits{Depth: 5000, Len: 1 << 20})
		require.NoError(t, err)

		var out ScVal
		err = UnmarshalTrusted(buf, &out)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMarshalling))

		_, err = MarshalTrusted(&deep)
		assert.True(t, errors.Is(err, ErrMarshalling))
	})

	t.Run("深度恰好在上限内", func(t *testing.T) {
		v := nestedVec(10)
		buf, err := MarshalTrusted(&v)
		require.NoError(t, err)
		var out ScVal
		assert.NoError(t, Unmarshal(buf, &out, Limits{Depth: 21, Len: len(buf)}))
		assert.Error(t, Unmarshal(buf, &out, Limits{Depth: 20, Len: len(buf)}))
	})

	t.Run("长度超限", func(t *testing.T) {
		v := ScValBytes(bytes.Repeat([]byte{1}, 100))
		buf, err := MarshalTrusted(&v)
		require.NoError(t, err)

		var out ScVal
		err = Unmarshal(buf, &out, Limits{Depth: 10, Len: 50})
		assert.True(t, errors.Is(err, ErrMarshalling))

		_, err = Marshal(&v, Limits{Depth: 10, Len: 50})
		assert.True(t, errors.Is(err, ErrMarshalling))
	})
}

func TestStrictDecode(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
	}{
		{"空缓冲区没有联合体分支", nil},
		{"联合体多分支", []byte{0x10, 0x01, 0x20, 0x05}},
		{"未知字段", []byte{0x78, 0x01}},
		{"线格式类型错误", []byte{0x22, 0x00}},
		{"布尔值越界", []byte{0x10, 0x02}},
		{"地址长度错误", []byte{0x62, 0x02, 0x01, 0x02}},
		{"截断的变长整数", []byte{0x30, 0xFF}},
		{"非法符号", []byte{0x4a, 0x02, '-', '!'}},
		{"随机字节", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var v ScVal
			assert.NotPanics(t, func() {
				err := UnmarshalTrusted(tc.buf, &v)
				assert.True(t, errors.Is(err, ErrMarshalling), "err=%v", err)
			})
		})
	}

	t.Run("重复的单值字段", func(t *testing.T) {
		e := TTLEntry{KeyHash: testHash(1), LiveUntilLedgerSeq: 5}
		buf, err := MarshalTrusted(&e)
		require.NoError(t, err)
		buf = append(buf, buf...)
		var out TTLEntry
		assert.Error(t, UnmarshalTrusted(buf, &out))
	})
}

func TestValidateSymbol(t *testing.T) {
	assert.NoError(t, ValidateSymbol("host_fn_failed"))
	assert.NoError(t, ValidateSymbol("ABC_123"))
	assert.Error(t, ValidateSymbol("has space"))
	assert.Error(t, ValidateSymbol("abcdefghijklmnopqrstuvwxyz0123456"))

	bad := ScValSymbol("no-dash")
	_, err := MarshalTrusted(&bad)
	assert.Error(t, err)
}

func TestCanParseTransaction(t *testing.T) {
	env := sampleEnvelope()
	buf, err := MarshalTrusted(&env)
	require.NoError(t, err)

	assert.True(t, CanParseTransaction(buf, MarshallingStackLimit))
	assert.False(t, CanParseTransaction(buf[:len(buf)-1], MarshallingStackLimit))
	assert.False(t, CanParseTransaction(buf, 2))
	assert.False(t, CanParseTransaction(nil, MarshallingStackLimit))
	assert.False(t, CanParseTransaction([]byte{0xde, 0xad, 0xbe, 0xef}, MarshallingStackLimit))
}

func TestKeyHash(t *testing.T) {
	k1 := ContractDataKey(testHash(1), ScValSymbol("a"), DurabilityPersistent)
	k2 := ContractDataKey(testHash(1), ScValSymbol("a"), DurabilityTemporary)

	h1, err := KeyHash(&k1)
	require.NoError(t, err)
	again, err := KeyHash(&k1)
	require.NoError(t, err)
	h2, err := KeyHash(&k2)
	require.NoError(t, err)

	assert.Equal(t, h1, again)
	assert.NotEqual(t, h1, h2)
	assert.True(t, k1.IsPersistent())
	assert.False(t, k2.IsPersistent())
}

func TestFileHashes(t *testing.T) {
	p21 := FileHashes(45)
	p22 := FileHashes(70)
	require.Len(t, p21, 4)
	require.Len(t, p22, 4)

	for i := 0; i < 3; i++ {
		assert.Equal(t, p21[i], p22[i])
	}
	assert.Equal(t, "config-setting.schema", p21[3].File)
	assert.NotEqual(t, p21[3].Hash, p22[3].Hash)
	assert.Len(t, p21[0].Hash, 64)
	assert.Equal(t, "VerifyEcdsaSecp256r1Sig", ContractCostType(44).String())
	assert.Equal(t, "Bls12381FrInv", ContractCostType(69).String())
}
