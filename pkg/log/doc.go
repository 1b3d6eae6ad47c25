/*
Package log provides structured logging for Slipway using zerolog.

Every Slipway process writes JSON log lines through a single package-level
logger. Packages derive child loggers carrying their component name, and the
worker derives a per-command child so every line about one in-flight command
shares the same action and agent fields.

# Architecture

	                  log.Init(Config)
	                        │
	      ┌─────────────────┼─────────────────┐
	      ▼                 ▼                 ▼
	   Level             Output            Format
	   debug/info/       stdout, file,     JSONOutput true  → raw JSON
	   warn/error        custom writer     JSONOutput false → ConsoleWriter
	      │                 │                 │
	      └─────────────────┴─────────────────┘
	                        │
	                        ▼
	              Logger (package level)
	                        │
	      ┌─────────────────┴─────────────────┐
	      ▼                                   ▼
	   WithComponent("worker")       WithCommand("deploy_agent", "a1")
	   component=worker              action=deploy_agent agent_name=a1
	   on every line                 on every line

The zero value of Logger discards all output. A package that logs before
Init runs, or a test that never calls Init, stays silent instead of
spamming stderr.

# Field Conventions

Log lines are queried by field downstream, so field names are fixed
across packages:

	component     subsystem writing the line (worker, stream, collector)
	action        command verb (deploy_agent, update_agent, ...)
	agent_name    tenant-facing agent name
	agent_id      backend UUID for the agent
	message_id    Redis Streams entry ID being processed
	deployment    Kubernetes Deployment name
	job           kaniko build Job name
	version       semantic version involved in the operation

New fields follow the same shape: lower_snake_case, one value per field,
no prose baked into values.

# Usage

Initializing at process start:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Console output for running the worker by hand (zero-value JSONOutput
selects the console form, zero-value Output selects stdout):

	log.Init(log.Config{Level: log.DebugLevel})

One-off lines:

	log.Info("Worker started")
	log.Fatal("Cannot start without Redis") // exits the process

Structured lines through the global logger:

	log.Logger.Error().
		Err(err).
		Str("deployment", name).
		Msg("Deploy call rejected")

Child loggers:

	streamLog := log.WithComponent("stream")
	streamLog.Info().Str("group", group).Msg("Consumer group ready")

	cmdLog := log.WithCommand("update_agent", "my-agent")
	cmdLog.Info().Str("new_version", "1.0.1").Msg("Starting update")

# Level Policy

Info is the deployed level. Soft failures the worker absorbs (status
write errors, registry upserts) log at warn; contract failures that fail
the command (build submission, the deploy call) log at error. Fatal is
reserved for startup wiring: once the worker is consuming, nothing exits
the process over a single command.

# Integration Points

  - cmd/slipway: calls Init from the loaded config before anything else logs
  - pkg/worker: derives the per-command logger for dispatch lines
  - pkg/stream: logs consumer group lifecycle and acknowledgements
  - pkg/cluster: logs build job and deployment operations
  - pkg/backend: logs contract calls and soft failures

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
