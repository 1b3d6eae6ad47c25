/*
Package status keeps volatile per-agent status snapshots in Redis.

Each agent has one hash at agent:status:<agent_name> describing what the
worker last did to it: the current lifecycle label, when it was written,
which writer wrote it, and flow-specific details (job name, deployment
name, public URL, error). Hashes expire after 24 hours without a refresh,
so the store never accumulates state for retired agents.

This store is an operational convenience, not a system of record. The
durable truth lives in the backend's build and deployment records; losing
Redis loses nothing but freshness. Writes are therefore best-effort: the
worker logs failures, bumps a counter and moves on.

# Data Shape

	HGETALL agent:status:my-agent

	agent_name    my-agent
	status        running
	last_updated  2026-02-13T10:30:00Z
	updated_by    k8s-worker
	url           http://gw.example/agents/agent-my-agent-1700000000
	version       1.0.1
	deployment    agent-my-agent-1700000000

Status labels emitted by the worker:

	processing building deploying running
	updating updated rolling_back rolled_back
	rebuilding rebuilt
	failed update_failed rollback_failed rebuild_failed error

Empty detail values are filtered before the write, so consumers never see
placeholder fields.

# Usage

	store, err := status.NewStore(&status.Config{
		Addr: cfg.RedisAddr(),
		DB:   cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	// best-effort write from the dispatcher
	if err := store.Set(ctx, "my-agent", "building", map[string]string{
		"stage": "build",
		"job":   jobName,
	}); err != nil {
		log.Warn("Agent status write failed")
	}

	// read side, e.g. the status CLI command
	fields, err := store.Get(ctx, "my-agent")

# Integration Points

This package integrates with:

  - pkg/worker: setAgentStatus helper wraps Set at every flow milestone
  - pkg/metrics: write failures increment slipway_status_write_failures_total
  - cmd/slipway: the status command reads through Get

# See Also

  - pkg/stream for the consumer sharing this Redis instance
  - pkg/backend for the durable records this store deliberately is not
*/
package status
