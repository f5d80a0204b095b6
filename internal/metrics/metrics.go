// Package metrics provides Prometheus collectors for the sonar hub.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values shared by callers.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultNotFound = "not_found"
	ResultRejected = "rejected"
)

// Metrics holds the application collectors and their registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	chatTurnsTotal     *prometheus.CounterVec
	chatTurnDuration   prometheus.Histogram
	simulationsTotal   *prometheus.CounterVec
	uploadsTotal       *prometheus.CounterVec
	scanLookupsTotal   *prometheus.CounterVec
	heatmapRenderTotal *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}
	m.initMetrics()

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("register sonarhub metrics: %w", err)
	}
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonarhub_chat_turns_total",
			Help: "Total number of chat turns by outcome",
		},
		[]string{"outcome"}, // completed, failed, rejected
	)

	m.chatTurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "sonarhub_chat_turn_duration_seconds",
			Help: "Time spent waiting for the completion API",
			// 100ms .. ~51s
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	m.simulationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonarhub_simulations_total",
			Help: "Total number of simulation runs by domain",
		},
		[]string{"domain"},
	)

	m.uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonarhub_uploads_total",
			Help: "Total number of uploads by kind and result",
		},
		[]string{"kind", "result"},
	)

	m.scanLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonarhub_scan_lookups_total",
			Help: "Total number of scan catalog lookups by result",
		},
		[]string{"result"},
	)

	m.heatmapRenderTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonarhub_heatmap_renders_total",
			Help: "Total number of heatmap image requests by result",
		},
		[]string{"result"},
	)
}

// Describe implements the Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.chatTurnsTotal.Describe(ch)
	m.chatTurnDuration.Describe(ch)
	m.simulationsTotal.Describe(ch)
	m.uploadsTotal.Describe(ch)
	m.scanLookupsTotal.Describe(ch)
	m.heatmapRenderTotal.Describe(ch)
}

// Collect implements the Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.chatTurnsTotal.Collect(ch)
	m.chatTurnDuration.Collect(ch)
	m.simulationsTotal.Collect(ch)
	m.uploadsTotal.Collect(ch)
	m.scanLookupsTotal.Collect(ch)
	m.heatmapRenderTotal.Collect(ch)
}

// RegisterGauge exposes fn as a gauge, e.g. the number of live sessions.
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) error {
	if m == nil {
		return nil
	}
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn)
	if err := m.registry.Register(g); err != nil {
		return fmt.Errorf("register gauge %s: %w", name, err)
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// ChatTurn records a chat turn outcome and, when d > 0, its API latency.
func (m *Metrics) ChatTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.chatTurnsTotal.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.chatTurnDuration.Observe(d.Seconds())
	}
}

// Simulation records a simulation run for the given domain.
func (m *Metrics) Simulation(domain string) {
	if m == nil {
		return
	}
	m.simulationsTotal.WithLabelValues(domain).Inc()
}

// Upload records an upload attempt.
func (m *Metrics) Upload(kind, result string) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(kind, result).Inc()
}

// ScanLookup records a catalog lookup.
func (m *Metrics) ScanLookup(result string) {
	if m == nil {
		return
	}
	m.scanLookupsTotal.WithLabelValues(result).Inc()
}

// HeatmapRender records a heatmap image request.
func (m *Metrics) HeatmapRender(result string) {
	if m == nil {
		return
	}
	m.heatmapRenderTotal.WithLabelValues(result).Inc()
}
