package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── Sampling ───────────────────────────────────────────────────────────

var (
	SamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "supplywatcher",
		Subsystem: "sample",
		Name:      "total",
		Help:      "Total number of supply samples by status.",
	}, []string{"status"})

	ReadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "supplywatcher",
		Subsystem: "sample",
		Name:      "read_duration_seconds",
		Help:      "Latency of totalSupply reads in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	ObservedSupply = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "supplywatcher",
		Subsystem: "sample",
		Name:      "observed_supply",
		Help:      "Most recent observed total supply in token units.",
	}, []string{"token"})

	LastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "supplywatcher",
		Subsystem: "sample",
		Name:      "last_success_timestamp",
		Help:      "Unix timestamp of the last successful sample.",
	})

	WindowFill = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "supplywatcher",
		Subsystem: "window",
		Name:      "samples",
		Help:      "Number of samples currently held in the evaluation window.",
	})
)

// ── Evaluation and alerts ──────────────────────────────────────────────

var (
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "supplywatcher",
		Subsystem: "evaluation",
		Name:      "total",
		Help:      "Total window evaluations by outcome.",
	}, []string{"outcome"})

	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "supplywatcher",
		Subsystem: "alerts",
		Name:      "sent_total",
		Help:      "Total alerts successfully delivered per sink.",
	}, []string{"sink"})

	AlertsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "supplywatcher",
		Subsystem: "alerts",
		Name:      "failed_total",
		Help:      "Total alert delivery failures per sink.",
	}, []string{"sink"})

	AlertsSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "supplywatcher",
		Subsystem: "alerts",
		Name:      "suppressed_total",
		Help:      "Total alerts suppressed by the cooldown.",
	})
)

// ── HTTP ───────────────────────────────────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "supplywatcher",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "supplywatcher",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	SettingsChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "supplywatcher",
		Subsystem: "settings",
		Name:      "changes_total",
		Help:      "Configuration change attempts by field and result.",
	}, []string{"field", "result"})
)
