/*
Package metrics provides Prometheus metrics collection and exposition for Slipway.

The metrics package defines and registers all Slipway metrics using the
Prometheus client library, providing observability into command throughput,
build durations, deployment reaping, and the health of the worker's
dependencies. Metrics are exposed via HTTP endpoint for scraping by
Prometheus servers, alongside health, readiness and liveness handlers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Commands: count + duration per action      │          │
	│  │  Stream: message results, depth, pending    │          │
	│  │  Builds: outcomes, wait histogram           │          │
	│  │  Deployments: reap counter, registry upserts│          │
	│  │  Status store: write failure counter        │          │
	│  │  Journal: open/completed entry gauges       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Listener (METRICS_ADDR)       │          │
	│  │  - /metrics  Prometheus text exposition     │          │
	│  │  - /health   component health JSON          │          │
	│  │  - /ready    critical component readiness   │          │
	│  │  - /live     process liveness               │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

Command metrics:

	slipway_commands_total{action, outcome}
	  Counter. One increment per handled command. Outcome is
	  "success", "failed" or "poison".

	slipway_command_duration_seconds{action}
	  Histogram. End-to-end handling time from parse to ack.

Stream metrics:

	slipway_stream_messages_total{result}
	  Counter. Results: "dispatched", "poison", "read_error", "ack_failed".

	slipway_stream_length
	  Gauge. Entries currently in the command stream (sampled).

	slipway_stream_pending
	  Gauge. Delivered but unacknowledged entries (sampled).

Build metrics:

	slipway_builds_total{outcome}
	  Counter. Outcomes: "success", "failed", "timeout", "rejected".

	slipway_build_wait_seconds
	  Histogram. Time spent polling a build job until completion.
	  Buckets cover the 5s poll interval up to the 600s ceiling.

Deployment metrics:

	slipway_deployments_reaped_total
	  Counter. Old deployments deleted by cleanup.

	slipway_registry_upserts_total{outcome}
	  Counter. Registry upsert attempts, "success" or "failed".

	slipway_permission_grants_total{outcome}
	  Counter. Permission service calls, "success" or "failed".

Status store metrics:

	slipway_status_write_failures_total
	  Counter. Volatile status writes that failed. Status writes are
	  best-effort; this counter is the only hard signal they are broken.

Journal metrics:

	slipway_journal_entries{state}
	  Gauge. Effect journal entries by state, "open" or "completed".

# Health Checking

A package-level registry tracks named components. The worker registers
"redis", "backend" and "cluster" at startup and updates them as
connections are verified or lost. Readiness requires all three; health
reflects every registered component.

	metrics.RegisterComponent("redis", true, "")
	metrics.UpdateComponent("redis", false, "connection refused")

	http.HandleFunc("/health", metrics.HealthHandler())
	http.HandleFunc("/ready", metrics.ReadyHandler())
	http.HandleFunc("/live", metrics.LivenessHandler())

# Usage

Counting an outcome:

	metrics.CommandsTotal.WithLabelValues("deploy_agent", "success").Inc()

Timing an operation:

	timer := metrics.NewTimer()
	// ... handle the command ...
	timer.ObserveDurationVec(metrics.CommandDuration, "deploy_agent")

Sampling gauges:

	collector := metrics.NewCollector(consumer, journal)
	collector.Start()
	defer collector.Stop()

Serving the endpoint:

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	go http.ListenAndServe(cfg.MetricsAddr, mux)

# Integration Points

This package integrates with:

  - pkg/worker: command, build and permission counters
  - pkg/stream: depth sampling via the Collector
  - pkg/status: write failure counter
  - pkg/version: deployment reap counter
  - pkg/journal: entry gauges via the Collector
  - cmd/slipway: HTTP listener wiring

# Design Patterns

Package-Level Metrics Pattern:
  - Metrics are package-level vars registered in init()
  - Any package can increment without plumbing a registry
  - Names share the slipway_ prefix

Sampled Gauge Pattern:
  - The Collector polls cheap sources every 15 seconds
  - Sources are interfaces, so the collector has no domain imports
  - A nil source simply skips its gauges

# Alerting Rules

Suggested starting points:

	- alert: SlipwayCommandFailures
	  expr: rate(slipway_commands_total{outcome="failed"}[5m]) > 0.1
	  for: 10m

	- alert: SlipwayStreamBacklog
	  expr: slipway_stream_pending > 10
	  for: 15m

	- alert: SlipwayStatusWritesBroken
	  expr: rate(slipway_status_write_failures_total[5m]) > 0
	  for: 5m

# See Also

  - Prometheus client library: https://github.com/prometheus/client_golang
  - Metric naming: https://prometheus.io/docs/practices/naming/
  - pkg/worker for where the counters are incremented
*/
package metrics
