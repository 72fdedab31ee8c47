// Package invoke 调用编排器
//
// 🎯 **职责**
//
// 一次调用从头到尾只经过 Orchestrator.Invoke：
//   - 按账本快照的协议版本选择宿主
//   - 以可信模式解码成本参数表并构造预算
//   - 在故障屏障内执行宿主函数，计时并收集诊断事件
//   - 成功时计算租金并提取账本效果，失败时合成诊断事件并分类错误
//   - 记录指标与结构化日志
//
// 执行期间的任何错误都不会越过这一边界：调用方总能拿到完整的
// InvocationOutput，只有编解码与配置错误会中止调用。
package invoke

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bridgeconfig "github.com/weisyn/hostbridge/internal/config/bridge"
	"github.com/weisyn/hostbridge/internal/core/bridge/budget"
	"github.com/weisyn/hostbridge/internal/core/bridge/engine"
	"github.com/weisyn/hostbridge/internal/core/bridge/hosterror"
	"github.com/weisyn/hostbridge/internal/core/bridge/protocol"
	"github.com/weisyn/hostbridge/internal/core/bridge/xdr"
	"github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/log"
)

// HostSelector 按协议版本选择宿主
type HostSelector interface {
	ForProtocol(v uint32) (protocol.Host, error)
}

// Orchestrator 调用编排器，可被并发使用
type Orchestrator struct {
	hosts          HostSelector
	logger         log.Logger
	traceLogging   bool
	metricsEnabled bool
}

// New 创建调用编排器
func New(hosts HostSelector, opts *bridgeconfig.BridgeOptions, logger log.Logger) *Orchestrator {
	o := &Orchestrator{hosts: hosts, logger: logger}
	if opts != nil {
		o.traceLogging = opts.TraceLogging
		o.metricsEnabled = opts.EnableMetrics
	}
	return o
}

// Invoke 执行一次宿主函数调用
//
// 返回 error 仅限以下情况：账本快照不完整、协议版本不受支持、
// 成本参数表无法解码、预算配置非法、账本效果无法编码。
func (o *Orchestrator) Invoke(ctx context.Context, req *InvokeRequest) (out *InvocationOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, hosterror.WrapPanic(r)
			o.logger.Errorf("调用编排发生 panic: %v", r)
		}
	}()

	if err := validateLedgerInfo(&req.Ledger); err != nil {
		return nil, err
	}
	host, err := o.hosts.ForProtocol(req.Ledger.ProtocolVersion)
	if err != nil {
		return nil, err
	}

	var cpuParams, memParams xdr.ContractCostParams
	if err := xdr.UnmarshalTrusted(req.Ledger.CPUCostParams, &cpuParams); err != nil {
		return nil, err
	}
	if err := xdr.UnmarshalTrusted(req.Ledger.MemCostParams, &memParams); err != nil {
		return nil, err
	}
	b, err := host.NewBudget(req.InstructionLimit, req.Ledger.MemoryLimit, cpuParams, memParams)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	ereq := &engine.Request{
		EnableDiagnostics:      req.EnableDiagnostics,
		HostFunction:           req.HostFunction,
		Resources:              req.Resources,
		RestoredRWEntryIndices: req.RestoredRWEntryIndices,
		SourceAccount:          req.SourceAccount,
		AuthEntries:            req.AuthEntries,
		Ledger:                 req.Ledger,
		LedgerEntries:          req.LedgerEntries,
		TTLEntries:             req.TTLEntries,
		BasePRNGSeed:           req.BasePRNGSeed,
		ModuleCache:            req.ModuleCache,
	}
	if o.traceLogging {
		ereq.Trace = newTraceLogger(o.logger, id).hook
	}

	start := time.Now()
	res, panicked := guard(func() *engine.Result {
		return host.InvokeHostFunction(ctx, b, ereq)
	})
	elapsed := time.Since(start)

	diagnostics := res.DiagnosticEvents
	o.logDiagnostics(id, diagnostics)

	out = &InvocationOutput{}
	fillMetrics(out, b, elapsed)

	outcome := "success"
	if res.Err == nil {
		changes := extractRentChanges(res.LedgerChanges)
		out.RentFee = host.ComputeRentFee(changes, req.RentFeeConfig, req.Ledger.SequenceNumber)
		effects, err := extractLedgerEffects(res.LedgerChanges)
		if err != nil {
			return nil, err
		}
		out.Success = true
		out.ResultValue = res.Value
		out.ModifiedLedgerEntries = effects
		out.ContractEvents = res.ContractEvents
	} else {
		scErr := hosterror.ScErrorOf(res.Err)
		if req.EnableDiagnostics {
			diagnostics = append(diagnostics, failureDiagnostic(scErr))
		}
		out.IsInternalError = host.IsInternalError(scErr)
		switch {
		case panicked:
			outcome = "panic"
		case out.IsInternalError:
			outcome = "internal_error"
		default:
			outcome = "contract_error"
		}
	}
	out.DiagnosticEvents = encodeDiagnostics(diagnostics)

	proto := strconv.FormatUint(uint64(req.Ledger.ProtocolVersion), 10)
	if o.metricsEnabled {
		recordInvocation(proto, outcome, out)
	}
	o.logInvocation(id, req, outcome, out, res.Err)
	return out, nil
}

// guard 故障屏障：把宿主执行中的 panic 转换为 (Context, InternalError)
func guard(call func() *engine.Result) (res *engine.Result, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			res, panicked = &engine.Result{Err: hosterror.FromPanic(r)}, true
		}
	}()
	return call(), false
}

// fillMetrics 从预算读取消耗，扣除 VM 实例化部分（饱和到 0）
func fillMetrics(out *InvocationOutput, b *budget.Budget, elapsed time.Duration) {
	out.CPUInsns = b.CPUInsnsConsumed()
	out.MemBytes = b.MemBytesConsumed()
	out.TimeNsecs = uint64(elapsed.Nanoseconds())

	out.CPUInsnsExcludingVmInstantiation = satSub(out.CPUInsns, b.Tracker(xdr.CostVmInstantiation).CPU)
	out.TimeNsecsExcludingVmInstantiation = satSub(out.TimeNsecs, uint64(b.Time(xdr.CostVmInstantiation).Nanoseconds()))
}

// failureDiagnostic 失败时附加的诊断事件
func failureDiagnostic(e xdr.ScError) xdr.DiagnosticEvent {
	return xdr.DiagnosticEvent{
		InSuccessfulContractCall: false,
		Event: xdr.ContractEvent{
			Type:   xdr.ContractEventTypeDiagnostic,
			Topics: []xdr.ScVal{xdr.ScValSymbol("host_fn_failed"), xdr.ScValFromError(e)},
			Data:   xdr.ScValVoid(),
		},
	}
}

// encodeDiagnostics 编码诊断事件，单条编码失败直接丢弃
func encodeDiagnostics(events []xdr.DiagnosticEvent) [][]byte {
	out := make([][]byte, 0, len(events))
	for i := range events {
		buf, err := xdr.MarshalTrusted(&events[i])
		if err != nil {
			continue
		}
		out = append(out, buf)
	}
	return out
}

func (o *Orchestrator) logDiagnostics(id string, events []xdr.DiagnosticEvent) {
	for i := range events {
		o.logger.Debugf("[diag %s] %s", id, formatDiagnostic(&events[i]))
	}
}

func formatDiagnostic(ev *xdr.DiagnosticEvent) string {
	return fmt.Sprintf("in_successful_call=%t topics=%v data=%v", ev.InSuccessfulContractCall, ev.Event.Topics, ev.Event.Data)
}

func (o *Orchestrator) logInvocation(id string, req *InvokeRequest, outcome string, out *InvocationOutput, callErr error) {
	fields := []zap.Field{
		zap.String("invocation_id", id),
		zap.Uint32("protocol", req.Ledger.ProtocolVersion),
		zap.Uint32("ledger_seq", req.Ledger.SequenceNumber),
		zap.String("outcome", outcome),
		zap.Uint64("cpu_insns", out.CPUInsns),
		zap.Uint64("cpu_insns_excl_vm", out.CPUInsnsExcludingVmInstantiation),
		zap.Uint64("mem_bytes", out.MemBytes),
		zap.Uint64("time_nsecs", out.TimeNsecs),
		zap.Int64("rent_fee", out.RentFee),
	}
	if callErr != nil {
		fields = append(fields, zap.Error(callErr))
	}
	zl := o.logger.GetZapLogger()
	if outcome == "success" || outcome == "contract_error" {
		zl.Debug("宿主函数调用完成", fields...)
		return
	}
	zl.Warn("宿主函数调用失败", fields...)
}
