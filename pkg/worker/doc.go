/*
Package worker is the orchestration dispatcher: it consumes commands from
the stream and drives each one through its lifecycle against the cluster,
the backend API, and the status store.

One command is processed at a time. The Redis consumer group hands each
message to exactly one replica; within a replica the dispatcher runs the
command's flow to completion, records the outcome, and acknowledges.

# Architecture

	             ┌───────────────────────────────────────────┐
	 stream ───► │                 Worker.Run                │
	             │                                           │
	             │  ParseCommand ──► dispatch ──► flow       │
	             │       │                         │         │
	             │  poison: record            buildImage     │
	             │  error + ack           deployAndRegister  │
	             │                                │          │
	             │              journal ◄── effect guards    │
	             └───────────────┬───────────────────────────┘
	                             ▼
	              status store / backend / cluster / auth

# Flows

Every flow starts from the same prelude (AgentStatus processing, upload
progress 95) and ends by acknowledging the message:

  - deploy_agent: extract version from the upload path, build v<ts>,
    deploy, register, grant permissions, flip the version active.
  - update_agent: same pipeline correlated to new_version; optionally
    reaps the replaced deployments afterwards. Blue-green is accepted
    but rolls out the standard way.
  - rollback_agent: no build. Resolves target_version to the immutable
    tag its original build produced (v<target> when no mapping exists),
    deploys it, re-registers, reaps the rolled-away version.
  - rebuild_agent: deploy pipeline under a v<semver>-rebuild-<ts> tag,
    then reaps everything but the fresh instance.

On success the upload progress passes through 95, 96, 97, 98, 100 in
order; on failure it drops to 0 with the cause in error_details, and
AgentStatus takes the action's *_failed variant. Both outcomes
acknowledge: redelivery is the producer's decision, never the worker's.

# Effect Journal

The stream delivers at least once. The journal (bbolt, keyed by message
id) remembers which durable effects a message already performed — build
record, deployment record, registry upsert — so a crash between the
effect and the ack does not double them on redelivery. A fully processed
message replays as a plain re-ack. Running without a journal is allowed
and degrades to at-least-once effects.

# Failure Ladder

  - Transient I/O (stream flaps, cluster poll errors): retried in place,
    surfaced as warnings.
  - Side effects (volatile status, card synthesis, staging, permission
    grant): logged, recorded as booleans, never fatal.
  - Contract failures (build failed, deploy rejected): fatal to the
    command; every derived record is marked failed.
  - Invalid commands (unknown action, missing agent_name): poison.
    Logged, AgentStatus error, acknowledged without further work.

# Usage

	w, err := worker.New(&worker.Config{
		Consumer:       consumer,
		Status:         store,
		Backend:        backendClient,
		Auth:           authClient,
		Driver:         driver,
		Versions:       version.NewEngine(backendClient, driver),
		Cards:          agentcard.NewResolver(backendClient, cfg.CardGeneratorBin, cfg.LLMAPIKey),
		Stager:         stager,
		Journal:        jrnl,
		GatewayBaseURL: cfg.GatewayBaseURL,
		Registry:       cfg.DockerRegistry,
		Namespace:      cfg.Namespace,
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)

# See Also

  - pkg/stream for the consumer-group contract Run is built on
  - pkg/cluster for the driver operations the flows compose
  - pkg/journal for the at-most-once effect bookkeeping
  - pkg/version for tag resolution and the reap policy
*/
package worker
