package modulecache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"

	bridgeconfig "github.com/weisyn/hostbridge/internal/config/bridge"
	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/testutil"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
	"github.com/weisyn/hostbridge/internal/core/infrastructure/storage/memory"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	ctx := context.Background()
	logger := testutil.NewTestLogger()

	records, err := memory.New(bridgeconfig.ModuleCacheOptions{RecordLifeWindow: time.Hour, RecordMaxEntrySize: 256}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = records.Close() })

	c, err := New(ctx, Options{
		MemoryLimitPages: 16,
		NumCostTypes:     xdr.NumContractCostTypes,
		Records:          records,
		Logger:           logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(ctx) })
	return c
}

// invalidModule 段头可解析但无法编译的模块
func invalidModule() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x02, 0x01, 0x99}
}

func TestCompileEvictClear(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	wasm := testutil.AddWasm()
	key := testutil.WasmHash(wasm)

	require.NoError(t, c.Compile(ctx, wasm))
	assert.True(t, c.Contains(key))
	assert.Equal(t, 1, c.Len())
	first := c.MemoryConsumed()
	assert.Greater(t, first, uint64(0))

	rec, ok, err := c.Record(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(len(wasm)), rec.Size)
	assert.Equal(t, uint32(1), rec.CostInputs.NFunctions)
	assert.Equal(t, uint32(1), rec.CostInputs.NExports)
	assert.Equal(t, first, rec.MemBytes)

	// 重复编译保留已有产物，但仍计入消耗
	require.NoError(t, c.Compile(ctx, wasm))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 2*first, c.MemoryConsumed())

	records, err := c.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, key, records[0].Key)

	c.Evict(key)
	assert.False(t, c.Contains(key))
	_, ok, err = c.Record(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	// 不存在的键静默返回
	c.Evict(key)

	require.NoError(t, c.Compile(ctx, wasm))
	require.NoError(t, c.Compile(ctx, testutil.ContractWasm()))
	assert.Equal(t, 2, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Contains(key))
}

func TestCompileFailure(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	tests := []struct {
		name      string
		wasm      []byte
		consumesM bool
	}{
		{"非 WASM 字节", []byte("not wasm"), false},
		{"无法编译的模块", invalidModule(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := c.MemoryConsumed()
			err := c.Compile(ctx, tt.wasm)
			require.Error(t, err)

			he, ok := hosterror.As(err)
			require.True(t, ok)
			assert.Equal(t, xdr.ScError{Type: xdr.ScErrorTypeWasmVm, Code: xdr.ScErrorCodeInvalidInput}, he.Err)
			assert.False(t, c.Contains(testutil.WasmHash(tt.wasm)))
			if tt.consumesM {
				assert.Greater(t, c.MemoryConsumed(), before)
			} else {
				assert.Equal(t, before, c.MemoryConsumed())
			}
		})
	}
}

func TestDuplicateSharesStore(t *testing.T) {
	ctx := context.Background()
	root := newTestCache(t)
	wasm := testutil.AddWasm()
	key := testutil.WasmHash(wasm)

	const handles = 8
	dups := make([]*Cache, handles)
	for i := range dups {
		dups[i] = root.Duplicate()
	}

	var wg sync.WaitGroup
	for _, d := range dups {
		wg.Add(1)
		go func(d *Cache) {
			defer wg.Done()
			assert.NoError(t, d.Compile(ctx, wasm))
		}(d)
	}
	wg.Wait()

	assert.True(t, root.Contains(key))
	assert.Equal(t, 1, root.Len())
	assert.Equal(t, uint64(0), root.MemoryConsumed())

	want := dups[0].MemoryConsumed()
	assert.Greater(t, want, uint64(0))
	for _, d := range dups {
		assert.Equal(t, want, d.MemoryConsumed())
		assert.Same(t, root.Runtime(), d.Runtime())
	}

	// 非根句柄关闭不影响共享存储
	require.NoError(t, dups[0].Close(ctx))
	assert.True(t, root.Contains(key))
}

func TestNewRejectsShortCostTable(t *testing.T) {
	_, err := New(context.Background(), Options{NumCostTypes: 10})
	require.Error(t, err)
}

func TestCollectMemoryStats(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	stats := c.CollectMemoryStats()
	assert.Equal(t, "bridge.modulecache", stats.Module)
	assert.Zero(t, stats.Objects)
	assert.Zero(t, stats.ApproxBytes)

	require.NoError(t, c.Compile(ctx, testutil.AddWasm()))
	stats = c.CollectMemoryStats()
	assert.Equal(t, int64(1), stats.Objects)
	assert.Equal(t, int64(1), stats.CacheItems)
	assert.Equal(t, int64(c.MemoryConsumed()), stats.ApproxBytes)
}

// instantiateCached 按键取出编译产物并实例化，evict 在取出与实例化之间执行
func instantiateCached(t *testing.T, c *Cache, key xdr.Hash, between func()) error {
	t.Helper()
	ctx := context.Background()
	compiled, release, ok := c.Lookup(key)
	require.True(t, ok)
	defer release()

	if between != nil {
		between()
	}
	mod, err := c.Runtime().InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return err
	}
	return mod.Close(ctx)
}

func TestLookupSurvivesEviction(t *testing.T) {
	ctx := context.Background()
	wasm := testutil.AddWasm()
	key := testutil.WasmHash(wasm)

	tests := []struct {
		name    string
		between func(c *Cache)
	}{
		{"取出后移除", func(c *Cache) { c.Evict(key) }},
		{"取出后清空", func(c *Cache) { c.Clear() }},
		{"移除后重新编译", func(c *Cache) {
			c.Evict(key)
			require.NoError(t, c.Compile(ctx, wasm))
		}},
		{"重复编译同一字节码", func(c *Cache) {
			require.NoError(t, c.Compile(ctx, wasm))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(t)
			require.NoError(t, c.Compile(ctx, wasm))

			require.NoError(t, instantiateCached(t, c, key, func() { tt.between(c) }))
			if c.Contains(key) {
				// 释放旧引用后缓存中的条目仍可实例化
				require.NoError(t, instantiateCached(t, c, key, nil))
			}
		})
	}

	t.Run("释放只生效一次", func(t *testing.T) {
		c := newTestCache(t)
		require.NoError(t, c.Compile(ctx, wasm))

		_, first, ok := c.Lookup(key)
		require.True(t, ok)
		first()
		first()

		require.NoError(t, instantiateCached(t, c, key, func() {
			c.Evict(key)
		}))
		assert.False(t, c.Contains(key))
	})

	t.Run("未命中", func(t *testing.T) {
		c := newTestCache(t)
		compiled, release, ok := c.Lookup(key)
		assert.False(t, ok)
		assert.Nil(t, compiled)
		release()
	})
}

func TestConcurrentCompileDistinctModules(t *testing.T) {
	ctx := context.Background()
	root := newTestCache(t)

	const n = 16
	modules := make([][]byte, n)
	for i := range modules {
		m := testutil.NewWasmModule()
		m.Func(fmt.Sprintf("f%d", i), nil, []testutil.ValType{testutil.I32}, testutil.I32Const(int32(i))...)
		modules[i] = m.Bytes()
	}

	var wg sync.WaitGroup
	for _, wasm := range modules {
		wg.Add(1)
		go func(d *Cache, wasm []byte) {
			defer wg.Done()
			assert.NoError(t, d.Compile(ctx, wasm))
		}(root.Duplicate(), wasm)
	}
	wg.Wait()

	assert.Equal(t, n, root.Len())
	for i, wasm := range modules {
		assert.True(t, root.Contains(testutil.WasmHash(wasm)), "模块 %d", i)
	}
}
