package telemetry

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics provides Prometheus metrics for rocmdev. A one-shot CLI has no
// scrape endpoint; metrics are exported on exit in the text format for the
// node_exporter textfile collector.
type Metrics struct {
	config MetricsConfig

	// Action metrics
	actionsTotal *prometheus.CounterVec

	// Run metrics
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of reconciliation actions by outcome",
			},
			[]string{"resource", "action", "status"},
		),

		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of run execution in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.actionsTotal,
		m.runsCompleted,
		m.runDuration,
	)

	return m, nil
}

// ObserveAction records one reconciliation action outcome.
func (m *Metrics) ObserveAction(resource, action, status string) {
	if m.actionsTotal == nil {
		return
	}
	m.actionsTotal.WithLabelValues(resource, action, status).Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// WriteTextfile exports all collected metrics to the configured path in the
// Prometheus text exposition format. A missing path disables the export.
func (m *Metrics) WriteTextfile() error {
	if m.registry == nil || m.config.TextfilePath == "" {
		return nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	tmpPath := m.config.TextfilePath + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}

	encoder := expfmt.NewEncoder(file, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			_ = file.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close metrics file: %w", err)
	}

	if err := os.Rename(tmpPath, m.config.TextfilePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename metrics file: %w", err)
	}

	return nil
}
