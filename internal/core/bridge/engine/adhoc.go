package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"

	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
)

// adhocModules 临时编译的在途计数
//
// wazero 按模块 ID 登记编译代码，并发调用编译同一字节码时共用一份。
// 只有最后一个在途调用释放时才关闭，否则会删掉其他调用正在实例化的代码。
type adhocModules struct {
	mu       sync.Mutex
	inflight map[xdr.Hash]int
}

// compile 在引擎运行时中临时编译，release 必须在实例化完成后调用
func (e *Engine) compile(ctx context.Context, hash xdr.Hash, wasm []byte) (wazero.CompiledModule, func(), error) {
	a := &e.adhoc
	a.mu.Lock()
	if a.inflight == nil {
		a.inflight = make(map[xdr.Hash]int)
	}
	a.inflight[hash]++
	a.mu.Unlock()

	compiled, err := e.runtime.CompileModule(ctx, wasm)
	release := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.inflight[hash]--
		if a.inflight[hash] > 0 {
			return
		}
		delete(a.inflight, hash)
		if compiled != nil {
			_ = compiled.Close(ctx)
		}
	}
	if err != nil {
		release()
		return nil, nil, err
	}
	return compiled, release, nil
}
