// Package metrics exposes Prometheus counters for admissions, deposits and
// blob reclamation.
//
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkvault"

// Metrics groups the service collectors registered on one registry.
type Metrics struct {
	reg *prometheus.Registry

	admissions      *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	deposits        *prometheus.CounterVec
	reclaimed       prometheus.Counter
	reclaimFailures prometheus.Counter
	sweepDuration   prometheus.Histogram
}

// New registers the collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		admissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Counted views and downloads by item kind.",
		}, []string{"kind"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Rejected access attempts by decision code.",
		}, []string{"code"}),
		deposits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposits_total",
			Help:      "Created vault items by kind.",
		}, []string{"kind"}),
		reclaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blobs_reclaimed_total",
			Help:      "File blobs removed by the retention sweeper.",
		}),
		reclaimFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_reclaim_failures_total",
			Help:      "Per-item reclamation failures in the retention sweeper.",
		}),
		sweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of retention sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) Admitted(kind string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(kind).Inc()
}

func (m *Metrics) Denied(code string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(code).Inc()
}

func (m *Metrics) Deposited(kind string) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(kind).Inc()
}

// Swept records one sweeper tick.
func (m *Metrics) Swept(reclaimed, failed int, took time.Duration) {
	if m == nil {
		return
	}
	m.reclaimed.Add(float64(reclaimed))
	m.reclaimFailures.Add(float64(failed))
	m.sweepDuration.Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
