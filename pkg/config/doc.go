/*
Package config resolves the worker configuration from layered sources.

Configuration values are resolved in three layers, each overriding the one
below it:

 1. Compiled defaults
 2. Optional YAML file (path from SLIPWAY_CONFIG or passed explicitly)
 3. Environment variables

Validation runs after all layers are applied and reports every defect in a
single error, so a misconfigured deployment surfaces all problems on the
first start attempt instead of one per restart.

# Architecture

	┌────────────────── CONFIG RESOLUTION ──────────────────┐
	│                                                         │
	│   defaults()                                            │
	│      │                                                  │
	│      ▼ overridden by                                    │
	│   YAML file (SLIPWAY_CONFIG)                            │
	│      │                                                  │
	│      ▼ overridden by                                    │
	│   Environment (REDIS_HOST, BACKEND_API_URL, ...)        │
	│      │                                                  │
	│      ▼                                                  │
	│   Validate() ── errors.Join of every defect             │
	└─────────────────────────────────────────────────────┘

# Environment Variables

Stream and status store:

	REDIS_HOST          Redis hostname (default: localhost)
	REDIS_PORT          Redis port (default: 6379)
	REDIS_DB            Redis database index (default: 0)

Service endpoints:

	BACKEND_API_URL     Backend REST API (default: http://backend-api:8000)
	GATEWAY_BASE_URL    Public gateway prefix (default: http://localhost)
	DOCKER_REGISTRY     Image registry prefix (default: registry.local:5000)
	AUTH_SERVICE_URL    Permission service (default: http://auth-service:8000)

Cluster placement:

	K8S_NAMESPACE       Namespace for jobs and deployments (default: agents)
	AGENT_PORT          Container port agents listen on (default: 8080)

Observability and helpers:

	LLM_API_KEY                  Key injected into deployed agents
	TRACING_ENABLED              Enable trace propagation (default: false)
	INJECTION_ENABLED            Enable observability staging (default: false)
	OTEL_EXPORTER_OTLP_ENDPOINT  Collector endpoint passed to agents
	TRACE_INJECTOR_BIN           Instrumentation injector binary
	AGENTCARD_GENERATOR_BIN      AgentCard generator binary

Worker identity and state:

	HOSTNAME            Consumer name in the group (default: os hostname)
	JOURNAL_PATH        Effect journal location (default: /var/lib/slipway/journal.db)
	METRICS_ADDR        Metrics/health listener (default: :9090)
	BUILD_POLL_INTERVAL Build wait poll interval (default: 5s)
	BUILD_TIMEOUT       Build wait ceiling (default: 10m)
	LOG_LEVEL           debug/info/warn/error (default: info)
	LOG_JSON            JSON log output (default: true)

Durations accept Go syntax ("90s", "2m") or bare integers read as seconds,
matching how earlier deployments of the worker were configured.

# Usage

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err.Error())
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr(),
		DB:   cfg.RedisDB,
	})

With an explicit file:

	cfg, err := config.LoadWithFile("/etc/slipway/config.yaml")

# Design Patterns

Layered Resolution:
  - Defaults are always complete; file and env only override
  - An empty env value never clobbers a configured one

Collected Validation:
  - Validate gathers every defect with errors.Join
  - Operators see the full list on one failed start

# See Also

  - pkg/worker for how the resolved config wires the components
  - cmd/slipway for flag handling on top of this package
*/
package config
