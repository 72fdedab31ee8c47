package modulecache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 模块缓存 Prometheus 指标，使用默认 Registry

var (
	cacheMetricsOnce sync.Once

	cacheEntriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wes",
		Subsystem: "hostbridge",
		Name:      "module_cache_entries",
		Help:      "Number of compiled modules held by the most recently updated module cache.",
	})

	cacheCompilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wes",
			Subsystem: "hostbridge",
			Name:      "module_cache_compiles_total",
			Help:      "Module compilations by result (ok / error).",
		},
		[]string{"result"},
	)

	cacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wes",
		Subsystem: "hostbridge",
		Name:      "module_cache_evictions_total",
		Help:      "Modules evicted from the module cache.",
	})
)

// initCacheMetrics 在首次使用时注册指标
func initCacheMetrics() {
	cacheMetricsOnce.Do(func() {
		prometheus.MustRegister(cacheEntriesGauge, cacheCompilesTotal, cacheEvictionsTotal)
	})
}

func recordCompile(ok bool) {
	initCacheMetrics()
	if ok {
		cacheCompilesTotal.WithLabelValues("ok").Inc()
		return
	}
	cacheCompilesTotal.WithLabelValues("error").Inc()
}

func recordEviction() {
	initCacheMetrics()
	cacheEvictionsTotal.Inc()
}

func setEntries(n int) {
	initCacheMetrics()
	cacheEntriesGauge.Set(float64(n))
}
