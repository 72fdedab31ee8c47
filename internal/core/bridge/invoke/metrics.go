package invoke

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 调用编排 Prometheus 指标，使用默认 Registry

var (
	invokeMetricsOnce sync.Once

	invocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wes",
			Subsystem: "hostbridge",
			Name:      "invocations_total",
			Help:      "Host function invocations by protocol and outcome (success / contract_error / internal_error / panic).",
		},
		[]string{"protocol", "outcome"},
	)

	invocationCPUInsns = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wes",
			Subsystem: "hostbridge",
			Name:      "invocation_cpu_insns",
			Help:      "CPU instructions consumed per invocation, excluding VM instantiation.",
			Buckets:   prometheus.ExponentialBuckets(1e4, 4, 10),
		},
		[]string{"protocol"},
	)

	invocationMemBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wes",
			Subsystem: "hostbridge",
			Name:      "invocation_mem_bytes",
			Help:      "Memory bytes consumed per invocation.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
		[]string{"protocol"},
	)

	invocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wes",
			Subsystem: "hostbridge",
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of the host function call.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"protocol"},
	)

	rentFeeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wes",
			Subsystem: "hostbridge",
			Name:      "rent_fee_total",
			Help:      "Sum of rent fees charged by successful invocations.",
		},
		[]string{"protocol"},
	)
)

func initInvokeMetrics() {
	invokeMetricsOnce.Do(func() {
		prometheus.MustRegister(invocationsTotal, invocationCPUInsns, invocationMemBytes, invocationDuration, rentFeeTotal)
	})
}

func recordInvocation(protocol, outcome string, out *InvocationOutput) {
	initInvokeMetrics()
	invocationsTotal.WithLabelValues(protocol, outcome).Inc()
	invocationCPUInsns.WithLabelValues(protocol).Observe(float64(out.CPUInsnsExcludingVmInstantiation))
	invocationMemBytes.WithLabelValues(protocol).Observe(float64(out.MemBytes))
	invocationDuration.WithLabelValues(protocol).Observe(float64(out.TimeNsecs) / 1e9)
	if out.RentFee > 0 {
		rentFeeTotal.WithLabelValues(protocol).Add(float64(out.RentFee))
	}
}
