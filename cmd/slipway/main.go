package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slipway-sh/slipway/pkg/agentcard"
	"github.com/slipway-sh/slipway/pkg/auth"
	"github.com/slipway-sh/slipway/pkg/backend"
	"github.com/slipway-sh/slipway/pkg/cluster"
	"github.com/slipway-sh/slipway/pkg/config"
	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/journal"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/observability"
	"github.com/slipway-sh/slipway/pkg/status"
	"github.com/slipway-sh/slipway/pkg/stream"
	"github.com/slipway-sh/slipway/pkg/version"
	"github.com/slipway-sh/slipway/pkg/worker"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "slipway",
	Short: "Slipway - Agent lifecycle orchestrator for Kubernetes",
	Long: `Slipway takes deployment commands from a Redis stream and carries
each agent through its lifecycle on a Kubernetes cluster: build the
image in-cluster, roll out the deployment, register the agent and
report progress back to the platform.

Run more workers to scale out; the consumer group delivers each
command to exactly one of them.`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Slipway version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(workerCmd)
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the orchestration worker",
	Long: `Run the long-lived orchestration worker.

The worker joins the k8s-orchestrator consumer group on the
orchestration:commands stream and processes commands one at a time:
deploy, update, rollback and rebuild. Progress is reported to the
backend API and mirrored into a volatile status hash per agent.

Configuration comes from the environment (REDIS_HOST, BACKEND_API_URL,
DOCKER_REGISTRY, ...) with an optional YAML file underneath.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().String("config", "", "YAML config file (defaults to $SLIPWAY_CONFIG)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadWithFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %v", err)
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	metrics.SetVersion(Version)

	fmt.Println("Starting Slipway worker...")
	fmt.Printf("  Consumer: %s\n", cfg.Hostname)
	fmt.Printf("  Redis: %s:%d (db %d)\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)
	fmt.Printf("  Backend: %s\n", cfg.BackendAPIURL)
	fmt.Printf("  Registry: %s\n", cfg.DockerRegistry)
	fmt.Printf("  Namespace: %s\n", cfg.Namespace)
	fmt.Println()

	// Command stream
	consumer, err := stream.NewConsumer(&stream.Config{
		Addr:     cfg.RedisAddr(),
		DB:       cfg.RedisDB,
		Consumer: cfg.Hostname,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to command stream: %v", err)
	}
	defer consumer.Close()
	metrics.RegisterComponent("redis", true, "connected")
	fmt.Println("✓ Command stream connected")

	// Volatile status store (shares the redis instance with the stream)
	store, err := status.NewStore(&status.Config{Addr: cfg.RedisAddr(), DB: cfg.RedisDB})
	if err != nil {
		return fmt.Errorf("failed to connect to status store: %v", err)
	}
	defer store.Close()

	backendClient := backend.NewClient(cfg.BackendAPIURL)
	metrics.RegisterComponent("backend", true, cfg.BackendAPIURL)

	authClient := auth.NewClient(cfg.AuthServiceURL)

	driver, err := cluster.NewDriver(cfg.Namespace)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster: %v", err)
	}
	metrics.RegisterComponent("cluster", true, "namespace "+cfg.Namespace)
	fmt.Println("✓ Cluster driver ready")

	engine := version.NewEngine(backendClient, driver)
	cards := agentcard.NewResolver(backendClient, cfg.CardGeneratorBin, cfg.LLMAPIKey)
	stager := observability.NewStager(backendClient, driver, observability.Config{
		Enabled:        cfg.InjectionEnabled,
		TracingEnabled: cfg.TracingEnabled,
		InjectorBin:    cfg.InjectorBin,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})

	// The journal is best-effort: without it the worker still runs, it
	// just loses redelivery protection across restarts.
	jnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		log.Logger.Warn().Err(err).Str("path", cfg.JournalPath).
			Msg("Journal unavailable, running without effect tracking")
		jnl = nil
	} else {
		defer jnl.Close()
		fmt.Printf("✓ Effect journal at %s\n", cfg.JournalPath)
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	go logEvents(broker.Subscribe())

	w, err := worker.New(&worker.Config{
		Consumer:       consumer,
		Status:         store,
		Backend:        backendClient,
		Auth:           authClient,
		Driver:         driver,
		Versions:       engine,
		Cards:          cards,
		Stager:         stager,
		Journal:        jnl,
		Broker:         broker,
		GatewayBaseURL: cfg.GatewayBaseURL,
		Registry:       cfg.DockerRegistry,
		LLMAPIKey:      cfg.LLMAPIKey,
		Namespace:      cfg.Namespace,
		AgentPort:      int32(cfg.AgentPort),
		PollInterval:   cfg.BuildPollInterval,
		BuildTimeout:   cfg.BuildTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to assemble worker: %v", err)
	}

	// Gauge sampling (stream depth, journal entry counts). The journal
	// may be absent; hand the collector a nil interface in that case.
	var journalStats metrics.JournalStats
	if jnl != nil {
		journalStats = jnl
	}
	collector := metrics.NewCollector(consumer, journalStats)
	collector.Start()
	defer collector.Stop()

	// Metrics and health endpoints
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("Metrics listener failed")
		}
	}()
	fmt.Printf("✓ Metrics and health on %s\n", cfg.MetricsAddr)

	healthCtx, healthCancel := context.WithCancel(context.Background())
	defer healthCancel()
	go refreshHealth(healthCtx, consumer, backendClient, driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	fmt.Println()
	fmt.Println("Worker is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal or worker exit
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
		cancel()
		if err := <-runErr; err != nil {
			return fmt.Errorf("worker stopped with error: %v", err)
		}
	case err := <-runErr:
		if err != nil {
			return fmt.Errorf("worker stopped with error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	fmt.Println("✓ Shutdown complete")
	return nil
}

// logEvents mirrors the broker's orchestration events into the log so a
// single worker deployment still has an event trail without a separate
// subscriber service.
func logEvents(sub events.Subscriber) {
	eventLog := log.WithComponent("events")
	for ev := range sub {
		eventLog.Info().
			Str("event_id", ev.ID).
			Str("event", string(ev.Type)).
			Str("agent", ev.AgentName).
			Interface("metadata", ev.Metadata).
			Msg(ev.Message)
	}
}

// refreshHealth re-probes the worker's dependencies so /health and /ready
// report live connectivity instead of the state at startup.
func refreshHealth(ctx context.Context, consumer *stream.Consumer, backendClient *backend.Client, driver *cluster.KubernetesDriver) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe(ctx, "redis", consumer.Ping)
			probe(ctx, "backend", backendClient.Ping)
			probe(ctx, "cluster", driver.Ping)
		}
	}
}

func probe(ctx context.Context, name string, ping func(context.Context) error) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := ping(probeCtx); err != nil {
		metrics.UpdateComponent(name, false, err.Error())
		return
	}
	metrics.UpdateComponent(name, true, "connected")
}
