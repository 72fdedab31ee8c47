package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	heapAllocBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wes",
		Subsystem: "hostbridge",
		Name:      "heap_alloc_bytes",
		Help:      "Heap bytes allocated at the last memory sample.",
	})
	goroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wes",
		Subsystem: "hostbridge",
		Name:      "goroutines",
		Help:      "Goroutines at the last memory sample.",
	})
	moduleApproxBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wes",
		Subsystem: "hostbridge",
		Name:      "module_approx_bytes",
		Help:      "Approximate bytes reported by each memory reporter.",
	}, []string{"module"})
	moduleObjects = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wes",
		Subsystem: "hostbridge",
		Name:      "module_objects",
		Help:      "Objects reported by each memory reporter.",
	}, []string{"module"})

	registerOnce sync.Once
)

func registerMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(heapAllocBytes, goroutines, moduleApproxBytes, moduleObjects)
	})
}

func observeSample(s HeapSample) {
	registerMetrics()
	heapAllocBytes.Set(float64(s.HeapAlloc))
	goroutines.Set(float64(s.NumGoroutine))
	for _, m := range s.Modules {
		moduleApproxBytes.WithLabelValues(m.Module).Set(float64(m.ApproxBytes))
		moduleObjects.WithLabelValues(m.Module).Set(float64(m.Objects))
	}
}
