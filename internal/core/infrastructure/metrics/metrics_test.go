package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	bridgeconfig "github.com/weisyn/hostbridge/internal/config/bridge"
	metricsiface "github.com/weisyn/hostbridge/pkg/interfaces/infrastructure/metrics"
)

type fixedReporter struct {
	name  string
	bytes int64
}

func (r fixedReporter) ModuleName() string { return r.name }

func (r fixedReporter) CollectMemoryStats() metricsiface.ModuleMemoryStats {
	return metricsiface.ModuleMemoryStats{Module: r.name, Objects: 1, ApproxBytes: r.bytes, CacheItems: 1}
}

func TestMemoryDoctorWindow(t *testing.T) {
	d := NewMemoryDoctor(MemoryDoctorConfig{WindowSize: 3}, []metricsiface.MemoryReporter{
		fixedReporter{name: "a", bytes: 10},
		nil,
		fixedReporter{name: "b", bytes: 20},
	}, nil)

	_, ok := d.Latest()
	assert.False(t, ok)

	for i := 0; i < 5; i++ {
		d.SampleOnce()
	}
	history := d.History()
	require.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Time.Before(history[i-1].Time))
	}

	latest, ok := d.Latest()
	require.True(t, ok)
	require.Len(t, latest.Modules, 2)
	assert.Equal(t, "a", latest.Modules[0].Module)
	assert.Equal(t, int64(20), latest.Modules[1].ApproxBytes)
	assert.Greater(t, latest.NumGoroutine, 0)
}

func TestServerEndpoints(t *testing.T) {
	d := NewMemoryDoctor(MemoryDoctorConfig{}, []metricsiface.MemoryReporter{fixedReporter{name: "cache", bytes: 42}}, nil)
	d.SampleOnce()

	s := NewServer("127.0.0.1:0", d, nil)
	require.NoError(t, s.Start())
	defer func() { require.NoError(t, s.Stop(context.Background())) }()

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `wes_hostbridge_module_approx_bytes{module="cache"} 42`)

	resp, err = http.Get("http://" + s.Addr() + "/debug/memory")
	require.NoError(t, err)
	defer resp.Body.Close()
	var samples []HeapSample
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&samples))
	require.Len(t, samples, 1)
	assert.Equal(t, "cache", samples[0].Modules[0].Module)
}

func TestModuleLifecycle(t *testing.T) {
	opts := bridgeconfig.New(nil).GetOptions()
	opts.Metrics.SampleInterval = 10 * time.Millisecond

	var doctor *MemoryDoctor
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(opts),
		fx.Provide(fx.Annotate(
			func() metricsiface.MemoryReporter { return fixedReporter{name: "cache", bytes: 1} },
			fx.ResultTags(`group:"memory_reporters"`),
		)),
		Module(),
		fx.Populate(&doctor),
	)
	app.RequireStart()

	require.Eventually(t, func() bool {
		latest, ok := doctor.Latest()
		return ok && len(latest.Modules) == 1
	}, time.Second, 10*time.Millisecond)

	app.RequireStop()
}
