package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/slipway-sh/slipway/pkg/backend"
	"github.com/slipway-sh/slipway/pkg/cluster"
	"github.com/slipway-sh/slipway/pkg/config"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/status"
	"github.com/slipway-sh/slipway/pkg/version"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status AGENT",
	Short: "Show the live status of an agent",
	Long: `Show the volatile status hash the worker maintains for an agent.

The hash expires 24 hours after the last write, so an empty result
means no orchestration has touched the agent recently. The durable
record lives in the backend API.

Examples:
  slipway status my-agent`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup AGENT",
	Short: "Remove old deployments of an agent",
	Long: `Remove old deployments of an agent, keeping the newest ones.

With --version only deployments of that version are considered.
--keep 0 removes every matching deployment.

Examples:
  # Keep only the newest deployment
  slipway cleanup my-agent

  # Remove every deployment of a failed version
  slipway cleanup my-agent --version 1.0.3 --keep 0`,
	Args: cobra.ExactArgs(1),
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().String("version", "", "Only consider deployments of this version")
	cleanupCmd.Flags().Int("keep", 1, "Number of newest deployments to keep")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	agentName := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %v", err)
	}
	log.Init(log.Config{Level: log.ErrorLevel})

	store, err := status.NewStore(&status.Config{Addr: cfg.RedisAddr(), DB: cfg.RedisDB})
	if err != nil {
		return fmt.Errorf("failed to connect to status store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fields, err := store.Get(ctx, agentName)
	if err != nil {
		return fmt.Errorf("failed to read status: %v", err)
	}
	if len(fields) == 0 {
		fmt.Printf("No status recorded for agent '%s'\n", agentName)
		return nil
	}

	fmt.Printf("Agent: %s\n", agentName)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %s\n", k, fields[k])
	}
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	agentName := args[0]
	versionFilter, _ := cmd.Flags().GetString("version")
	keep, _ := cmd.Flags().GetInt("keep")

	if keep < 0 {
		return fmt.Errorf("--keep must be zero or positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %v", err)
	}
	log.Init(log.Config{Level: log.ErrorLevel})

	driver, err := cluster.NewDriver(cfg.Namespace)
	if err != nil {
		return fmt.Errorf("failed to connect to cluster: %v", err)
	}
	engine := version.NewEngine(backend.NewClient(cfg.BackendAPIURL), driver)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Printf("Cleaning up deployments for '%s'", agentName)
	if versionFilter != "" {
		fmt.Printf(" (version %s)", versionFilter)
	}
	fmt.Printf(", keeping %d...\n", keep)

	removed := engine.CleanupOldDeployments(ctx, agentName, versionFilter, keep)
	fmt.Printf("✓ Removed %d deployment(s)\n", removed)
	return nil
}
