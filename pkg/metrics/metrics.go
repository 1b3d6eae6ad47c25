package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Command metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_commands_total",
			Help: "Total number of orchestration commands by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slipway_command_duration_seconds",
			Help:    "End-to-end command handling duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"action"},
	)

	// Stream metrics
	StreamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_stream_messages_total",
			Help: "Total number of stream messages by result",
		},
		[]string{"result"},
	)

	StreamLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slipway_stream_length",
			Help: "Number of entries currently in the command stream",
		},
	)

	StreamPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slipway_stream_pending",
			Help: "Number of delivered but unacknowledged stream entries",
		},
	)

	// Build metrics
	BuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_builds_total",
			Help: "Total number of build jobs by outcome",
		},
		[]string{"outcome"},
	)

	BuildWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slipway_build_wait_seconds",
			Help:    "Time spent waiting for build jobs to finish",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8),
		},
	)

	// Deployment metrics
	DeploymentsReapedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slipway_deployments_reaped_total",
			Help: "Total number of old deployments deleted by cleanup",
		},
	)

	RegistryUpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_registry_upserts_total",
			Help: "Total number of registry upserts by outcome",
		},
		[]string{"outcome"},
	)

	PermissionGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_permission_grants_total",
			Help: "Total number of permission grant calls by outcome",
		},
		[]string{"outcome"},
	)

	// Status store metrics
	StatusWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slipway_status_write_failures_total",
			Help: "Total number of failed volatile status writes",
		},
	)

	// Journal metrics
	JournalEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slipway_journal_entries",
			Help: "Number of effect journal entries by state",
		},
		[]string{"state"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(StreamMessagesTotal)
	prometheus.MustRegister(StreamLength)
	prometheus.MustRegister(StreamPending)
	prometheus.MustRegister(BuildsTotal)
	prometheus.MustRegister(BuildWaitSeconds)
	prometheus.MustRegister(DeploymentsReapedTotal)
	prometheus.MustRegister(RegistryUpsertsTotal)
	prometheus.MustRegister(PermissionGrantsTotal)
	prometheus.MustRegister(StatusWriteFailuresTotal)
	prometheus.MustRegister(JournalEntries)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
