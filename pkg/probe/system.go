package probe

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Prometheus metrics for system load sampling.
var (
	probeCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perfkit_probe_cpu_percent",
		Help: "Last sampled system CPU utilization in percent",
	})

	probeMemPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "perfkit_probe_mem_percent",
		Help: "Last sampled memory utilization in percent",
	})

	probeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "perfkit_probe_errors_total",
		Help: "Total number of failed load probe samples",
	})
)

// SystemProbe samples real host utilization via gopsutil.
type SystemProbe struct {
	logger zerolog.Logger
}

// NewSystemProbe creates a probe backed by host CPU and memory counters.
func NewSystemProbe(logger zerolog.Logger) *SystemProbe {
	return &SystemProbe{logger: logger}
}

// Sample implements Probe. CPU utilization is measured since the previous
// call (gopsutil interval 0), so the very first sample after process start
// may read low.
func (p *SystemProbe) Sample(ctx context.Context) (Load, error) {
	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		probeErrorsTotal.Inc()
		p.logger.Warn().Err(err).Msg("CPU sample failed")
		return Load{}, fmt.Errorf("%w: cpu: %v", ErrUnavailable, err)
	}
	if len(cpuPercents) == 0 {
		probeErrorsTotal.Inc()
		return Load{}, fmt.Errorf("%w: cpu: no data", ErrUnavailable)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		probeErrorsTotal.Inc()
		p.logger.Warn().Err(err).Msg("Memory sample failed")
		return Load{}, fmt.Errorf("%w: mem: %v", ErrUnavailable, err)
	}

	load := Load{
		CPUPercent: cpuPercents[0],
		MemPercent: vm.UsedPercent,
	}

	probeCPUPercent.Set(load.CPUPercent)
	probeMemPercent.Set(load.MemPercent)

	p.logger.Debug().
		Float64("cpu_percent", load.CPUPercent).
		Float64("mem_percent", load.MemPercent).
		Msg("Sampled system load")

	return load, nil
}
