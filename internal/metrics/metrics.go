// Package metrics holds the prometheus collectors for stream sessions and
// device probes. A nil *Stats is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session outcomes used as the "outcome" label.
const (
	OutcomeClientGone  = "client_disconnect"
	OutcomeProcessExit = "process_exit"
	OutcomeWriteError  = "write_error"
	OutcomeLaunchError = "launch_error"
)

// Stats tracks server statistics.
type Stats struct {
	reg *prometheus.Registry

	activeSessions prometheus.Gauge
	sessions       *prometheus.CounterVec
	bytesStreamed  prometheus.Counter
	launchFailures prometheus.Counter
	probeFailures  *prometheus.CounterVec
	probeDuration  prometheus.Histogram
}

func New() *Stats {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	return &Stats{
		reg: reg,

		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "audiocast_active_streams",
			Help: "Streams currently attached to a capture process",
		}),
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audiocast_streams_total",
			Help: "Finished streams by how they ended",
		}, []string{"outcome"}),
		bytesStreamed: f.NewCounter(prometheus.CounterOpts{
			Name: "audiocast_stream_bytes_total",
			Help: "Total audio bytes written to clients",
		}),
		launchFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "audiocast_launch_failures_total",
			Help: "Capture processes that failed to start",
		}),
		probeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audiocast_probe_failures_total",
			Help: "Device listings that failed, by capture driver",
		}, []string{"driver"}),
		probeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "audiocast_probe_duration_seconds",
			Help:    "Time taken by device listing probes",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// Registry returns the underlying registry.
func (s *Stats) Registry() *prometheus.Registry {
	if s == nil {
		return nil
	}
	return s.reg
}

// Handler serves the registry in the prometheus exposition format.
func (s *Stats) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		s.reg, promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}),
	)
}

func (s *Stats) SessionStarted() {
	if s == nil {
		return
	}
	s.activeSessions.Inc()
}

func (s *Stats) SessionEnded(outcome string, bytes int64) {
	if s == nil {
		return
	}
	s.activeSessions.Dec()
	s.sessions.WithLabelValues(outcome).Inc()
	s.bytesStreamed.Add(float64(bytes))
}

func (s *Stats) LaunchFailed() {
	if s == nil {
		return
	}
	s.launchFailures.Inc()
	s.sessions.WithLabelValues(OutcomeLaunchError).Inc()
}

func (s *Stats) ProbeFinished(driver string, seconds float64, failed bool) {
	if s == nil {
		return
	}
	s.probeDuration.Observe(seconds)
	if failed {
		s.probeFailures.WithLabelValues(driver).Inc()
	}
}
