package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeconfig "github.com/weisyn/hostbridge/internal/config/bridge"
	"github.com/weisyn/hostbridge/internal/core/bridge/testutil"
)

// setupTestStore 创建测试存储
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(bridgeconfig.ModuleCacheOptions{
		RecordLifeWindow:   time.Hour,
		RecordMaxEntrySize: 256,
	}, testutil.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestBasicOperations 测试基本操作
func TestBasicOperations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	value, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)

	require.NoError(t, store.Set(ctx, "module/a", []byte("alpha")))
	value, ok, err = store.Get(ctx, "module/a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("alpha"), value)

	// 覆盖写入
	require.NoError(t, store.Set(ctx, "module/a", []byte("beta")))
	value, _, _ = store.Get(ctx, "module/a")
	assert.Equal(t, []byte("beta"), value)

	exists, err := store.Exists(ctx, "module/a")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, "module/a"))
	exists, err = store.Exists(ctx, "module/a")
	require.NoError(t, err)
	assert.False(t, exists)

	// 删除不存在的键不报错
	assert.NoError(t, store.Delete(ctx, "module/a"))
}

// TestKeysAndClear 测试前缀查询、计数与清空
func TestKeysAndClear(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"module/b", "module/a", "record/x"} {
		require.NoError(t, store.Set(ctx, k, []byte(k)))
	}

	tests := []struct {
		name   string
		prefix string
		want   []string
	}{
		{"模块前缀", "module/", []string{"module/a", "module/b"}},
		{"记录前缀", "record/", []string{"record/x"}},
		{"空前缀返回全部", "", []string{"module/a", "module/b", "record/x"}},
		{"无匹配", "none/", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := store.GetKeys(ctx, tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys)
		})
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, store.Clear(ctx))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	keys, err := store.GetKeys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

// TestConcurrentAccess 测试并发读写
func TestConcurrentAccess(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("module/%02d", i)
			assert.NoError(t, store.Set(ctx, key, []byte{byte(i)}))
			v, ok, err := store.Get(ctx, key)
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte{byte(i)}, v)
		}(i)
	}
	wg.Wait()

	keys, err := store.GetKeys(ctx, "module/")
	require.NoError(t, err)
	assert.Len(t, keys, 16)
}

// TestClose 重复关闭是安全的
func TestClose(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
