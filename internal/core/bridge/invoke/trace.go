package invoke

import (
	"github.com/weisyn/hostbridge/internal/core/bridge/engine"
	"github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/log"
)

// traceLogger 以相邻两次状态之差记录引擎追踪事件
type traceLogger struct {
	logger log.Logger
	id     string
	prev   engine.TraceEvent
	n      int
}

func newTraceLogger(logger log.Logger, id string) *traceLogger {
	return &traceLogger{logger: logger, id: id}
}

func (t *traceLogger) hook(ev engine.TraceEvent) {
	t.n++
	t.logger.Debugf("[trace %s #%d] %s %s cpu=+%d mem=+%d (cpu=%d mem=%d)",
		t.id, t.n, ev.Stage, ev.Detail,
		satSub(ev.CPU, t.prev.CPU), satSub(ev.Mem, t.prev.Mem),
		ev.CPU, ev.Mem)
	t.prev = ev
}

func satSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
