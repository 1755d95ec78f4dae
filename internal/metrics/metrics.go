package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inquest_connections_active",
			Help: "Number of currently registered websocket connections",
		},
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inquest_connections_total",
			Help: "Total number of websocket connections accepted",
		},
	)

	// Run metrics
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inquest_runs_started_total",
			Help: "Total number of pipeline runs started",
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inquest_runs_completed_total",
			Help: "Total number of pipeline runs reaching a terminal state",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inquest_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	// Event metrics
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inquest_events_emitted_total",
			Help: "Total number of outbound events written, by event type",
		},
		[]string{"type"},
	)

	// Generation metrics
	GenerationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inquest_generation_calls_total",
			Help: "Total number of generation backend calls",
		},
		[]string{"kind", "status"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inquest_generation_duration_seconds",
			Help:    "Generation backend call duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)
)
