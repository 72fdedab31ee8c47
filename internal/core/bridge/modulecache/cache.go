// Package modulecache 提供按内容寻址的合约模块编译缓存
//
// 🗃️ **模块缓存**
//
// 以字节码的 sha256 为键，保存 wazero 编译产物。多个句柄（Duplicate）
// 共享同一份存储与编译运行时，但各自独立累计编译消耗的内存。
//
// 编译记录（大小、成本输入、内存消耗）写入共享的进程内记录存储，
// 供 CLI 与诊断查询。
//
// wazero 按模块 ID（字节码哈希）登记编译代码，关闭任意一个同 ID 的
// 编译产物都会删除这份代码。因此 store 按键统计持有者（Lookup 未释放的
// 引用与进行中的编译），只有条目已移除且无人持有时才真正关闭。
//
// ⚠️ 只有根句柄拥有运行时，Close 仅对根句柄生效。
package modulecache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"

	"github.com/weisyn/hostbridge/internal/core/bridge/budget"
	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/wasmcost"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
	"github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/log"
	storage "github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/storage"
)

// HostModuleInstaller 在编译运行时中注册宿主导入模块
type HostModuleInstaller func(ctx context.Context, r wazero.Runtime) error

// Options 模块缓存构造参数
type Options struct {
	// MemoryLimitPages 实例线性内存上限（64KiB 页）
	MemoryLimitPages uint32
	// NumCostTypes 编译计费使用的成本类别数
	NumCostTypes int
	// Records 编译记录存储，可为 nil
	Records storage.MemoryStore
	// HostModule 宿主导入注册函数，可为 nil
	HostModule HostModuleInstaller
	Logger     log.Logger
}

// store 所有句柄共享的状态
type store struct {
	mu      sync.RWMutex
	modules map[xdr.Hash]wazero.CompiledModule
	// retired 已移除但仍被持有的编译产物
	retired map[xdr.Hash]wazero.CompiledModule
	holds   map[xdr.Hash]int

	runtime      wazero.Runtime
	records      storage.MemoryStore
	numCostTypes int
	logger       log.Logger
}

// Cache 模块缓存句柄
type Cache struct {
	shared   *store
	consumed atomic.Uint64
	root     bool
}

// New 创建根句柄及其编译运行时
func New(ctx context.Context, opts Options) (*Cache, error) {
	if opts.NumCostTypes <= int(xdr.CostParseWasmDataSegmentBytes) {
		return nil, budget.WrapConfigError("module cache needs wasm parse cost types, got %d", opts.NumCostTypes)
	}

	cfg := wazero.NewRuntimeConfig().
		WithCompilationCache(wazero.NewCompilationCache()).
		WithCloseOnContextDone(true)
	if opts.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(opts.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	if opts.HostModule != nil {
		if err := opts.HostModule(ctx, rt); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("注册宿主模块失败: %w", err)
		}
	}

	return &Cache{
		shared: &store{
			modules:      make(map[xdr.Hash]wazero.CompiledModule),
			retired:      make(map[xdr.Hash]wazero.CompiledModule),
			holds:        make(map[xdr.Hash]int),
			runtime:      rt,
			records:      opts.Records,
			numCostTypes: opts.NumCostTypes,
			logger:       opts.Logger,
		},
		root: true,
	}, nil
}

// Compile 编译字节码并以其 sha256 为键放入缓存
//
// 每次编译使用一个独立的无上限预算计费，消耗的内存无论成功与否
// 都计入本句柄。同一字节码重复编译时保留已有编译产物，新产物与其
// 共享同一份编译代码，直接丢弃。
func (c *Cache) Compile(ctx context.Context, wasm []byte) error {
	key := xdr.Hash(sha256.Sum256(wasm))
	b := budget.NewUnlimited(c.shared.numCostTypes)
	defer func() {
		c.consumed.Add(b.MemBytesConsumed())
	}()

	ci, err := wasmcost.ParseCostInputs(wasm)
	if err != nil {
		recordCompile(false)
		return hosterror.Wrap(xdr.ScErrorTypeWasmVm, xdr.ScErrorCodeInvalidInput, err)
	}
	if err := wasmcost.ChargeParse(b, ci); err != nil {
		recordCompile(false)
		return err
	}

	c.shared.hold(key)
	stop := b.TimeScope(xdr.CostVmInstantiation)
	compiled, err := c.shared.runtime.CompileModule(ctx, wasm)
	stop()
	if err != nil {
		c.shared.release(key)
		recordCompile(false)
		c.logf("编译模块失败: key=%s err=%v", key, err)
		return hosterror.Wrap(xdr.ScErrorTypeWasmVm, xdr.ScErrorCodeInvalidInput, err)
	}

	c.shared.mu.Lock()
	if _, ok := c.shared.modules[key]; !ok {
		c.shared.modules[key] = compiled
		delete(c.shared.retired, key)
	}
	c.shared.holds[key]--
	c.shared.closeIfUnheldLocked(key)
	n := len(c.shared.modules)
	c.shared.mu.Unlock()

	recordCompile(true)
	setEntries(n)

	rec := Record{Size: uint32(len(wasm)), CostInputs: ci, MemBytes: b.MemBytesConsumed()}
	if err := c.putRecord(ctx, key, rec); err != nil {
		c.logf("写入编译记录失败: key=%s err=%v", key, err)
	}
	return nil
}

// Evict 移除一个条目，键不存在时静默返回
//
// 已被 Lookup 取出的编译产物在最后一个引用释放后才关闭。
func (c *Cache) Evict(key xdr.Hash) {
	c.shared.mu.Lock()
	compiled, ok := c.shared.modules[key]
	if ok {
		delete(c.shared.modules, key)
		c.shared.retired[key] = compiled
		c.shared.closeIfUnheldLocked(key)
	}
	n := len(c.shared.modules)
	c.shared.mu.Unlock()

	if !ok {
		return
	}
	ctx := context.Background()
	if c.shared.records != nil {
		_ = c.shared.records.Delete(ctx, recordKey(key))
	}
	recordEviction()
	setEntries(n)
}

// Clear 移除所有条目并清空编译记录
func (c *Cache) Clear() {
	c.shared.mu.Lock()
	modules := c.shared.modules
	c.shared.modules = make(map[xdr.Hash]wazero.CompiledModule)
	for key, compiled := range modules {
		c.shared.retired[key] = compiled
		c.shared.closeIfUnheldLocked(key)
	}
	c.shared.mu.Unlock()

	ctx := context.Background()
	if c.shared.records != nil {
		if err := c.shared.records.Clear(ctx); err != nil {
			c.logf("清空编译记录失败: %v", err)
		}
	}
	setEntries(0)
}

// Contains 是否缓存了给定键
func (c *Cache) Contains(key xdr.Hash) bool {
	c.shared.mu.RLock()
	defer c.shared.mu.RUnlock()
	_, ok := c.shared.modules[key]
	return ok
}

// Lookup 取出编译产物，供执行引擎实例化
//
// 命中时返回的 release 必须在实例化完成后调用，且只生效一次。
// 在此之前 Evict/Clear 不会关闭该编译产物。
func (c *Cache) Lookup(key xdr.Hash) (wazero.CompiledModule, func(), bool) {
	c.shared.mu.Lock()
	compiled, ok := c.shared.modules[key]
	if ok {
		c.shared.holds[key]++
	}
	c.shared.mu.Unlock()
	if !ok {
		return nil, func() {}, false
	}
	var once sync.Once
	return compiled, func() { once.Do(func() { c.shared.release(key) }) }, true
}

// Runtime 编译产物所属的运行时，实例化必须在同一运行时中进行
func (c *Cache) Runtime() wazero.Runtime {
	return c.shared.runtime
}

// Len 当前条目数
func (c *Cache) Len() int {
	c.shared.mu.RLock()
	defer c.shared.mu.RUnlock()
	return len(c.shared.modules)
}

// MemoryConsumed 本句柄累计的编译内存消耗，单调不减
func (c *Cache) MemoryConsumed() uint64 {
	return c.consumed.Load()
}

// Duplicate 返回共享存储与运行时、计数归零的新句柄
func (c *Cache) Duplicate() *Cache {
	return &Cache{shared: c.shared}
}

// Close 关闭运行时并释放所有编译产物，非根句柄上为空操作
func (c *Cache) Close(ctx context.Context) error {
	if !c.root {
		return nil
	}
	c.shared.mu.Lock()
	c.shared.modules = make(map[xdr.Hash]wazero.CompiledModule)
	c.shared.retired = make(map[xdr.Hash]wazero.CompiledModule)
	c.shared.mu.Unlock()
	setEntries(0)
	return c.shared.runtime.Close(ctx)
}

func (s *store) hold(key xdr.Hash) {
	s.mu.Lock()
	s.holds[key]++
	s.mu.Unlock()
}

func (s *store) release(key xdr.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds[key]--
	s.closeIfUnheldLocked(key)
}

// closeIfUnheldLocked 条目已移除且无持有者时关闭编译代码，调用方持有 mu
func (s *store) closeIfUnheldLocked(key xdr.Hash) {
	if s.holds[key] > 0 {
		return
	}
	delete(s.holds, key)
	if _, live := s.modules[key]; live {
		return
	}
	if compiled, ok := s.retired[key]; ok {
		delete(s.retired, key)
		_ = compiled.Close(context.Background())
	}
}

func (c *Cache) logf(format string, args ...interface{}) {
	if c.shared.logger != nil {
		c.shared.logger.Warnf(format, args...)
	}
}
