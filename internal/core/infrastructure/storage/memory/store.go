// Package memory 提供基于BigCache的内存存储实现
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/allegro/bigcache/v3"

	bridgeconfig "github.com/weisyn/hostbridge/internal/config/bridge"
	"github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/log"
	storage "github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/storage"
)

// defaultShards BigCache 分片数（必须是 2 的幂）
const defaultShards = 64

// Store 实现了MemoryStore接口，基于BigCache提供内存存储功能
type Store struct {
	cache  *bigcache.BigCache
	logger log.Logger
	mutex  sync.RWMutex
	closed bool
	keySet map[string]struct{} // 维护键集合以支持前缀查询
}

var _ storage.MemoryStore = (*Store)(nil)

// New 按模块缓存配置创建 BigCache 存储
func New(opts bridgeconfig.ModuleCacheOptions, logger log.Logger) (*Store, error) {
	cfg := bigcache.DefaultConfig(opts.RecordLifeWindow)
	cfg.Shards = defaultShards
	cfg.CleanWindow = opts.RecordLifeWindow / 2
	if opts.RecordMaxEntrySize > 0 {
		cfg.MaxEntrySize = opts.RecordMaxEntrySize
	}
	cfg.MaxEntriesInWindow = 1024
	cfg.Verbose = false

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("创建BigCache实例失败: %w", err)
	}

	return &Store{
		cache:  cache,
		logger: logger,
		keySet: make(map[string]struct{}),
	}, nil
}

// Close 关闭缓存并释放资源
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	if err := s.cache.Close(); err != nil {
		return err
	}
	s.closed = true
	return nil
}

// Get 获取值
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, err := s.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, false, nil
		}
		s.logger.Warnf("获取存储键[%s]失败: %v", key, err)
		return nil, false, err
	}
	return value, true, nil
}

// Set 写入或覆盖值
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.cache.Set(key, value); err != nil {
		s.logger.Warnf("设置存储键[%s]失败: %v", key, err)
		return err
	}
	s.keySet[key] = struct{}{}
	return nil
}

// Delete 删除键
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		s.logger.Warnf("删除存储键[%s]失败: %v", key, err)
		return err
	}
	delete(s.keySet, key)
	return nil
}

// Exists 检查键是否存在
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Clear 清空所有键
func (s *Store) Clear(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.cache.Reset(); err != nil {
		s.logger.Errorf("清空存储失败: %v", err)
		return err
	}
	s.keySet = make(map[string]struct{})
	return nil
}

// Count 当前有效键数量
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return int64(s.cache.Len()), nil
}

// GetKeys 返回以 prefix 开头且尚未过期的键（按字典序）
func (s *Store) GetKeys(ctx context.Context, prefix string) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var keys []string
	for key := range s.keySet {
		if _, err := s.cache.Get(key); err != nil {
			// 已被 BigCache 淘汰
			delete(s.keySet, key)
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
