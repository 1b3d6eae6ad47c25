/*
Package events provides in-process publish/subscribe for orchestration lifecycle events.

The events package implements a lightweight broker that distributes
orchestration events (command receipt, build transitions, deployment
creation and reaping, rollbacks) to any number of subscribers without
blocking the dispatcher. Subscribers are plain channels; slow consumers
drop events rather than stall command handling.

# Architecture

	┌──────────────────── EVENT SYSTEM ────────────────────────┐
	│                                                            │
	│   pkg/worker dispatcher                                    │
	│        │ Publish(&Event{...})                              │
	│        ▼                                                   │
	│   ┌────────────────────────────────────────┐              │
	│   │              Broker                     │              │
	│   │  - intake channel (buffered, 100)       │              │
	│   │  - fan-out loop drains the intake       │              │
	│   │  - subscriber set (RWMutex)             │              │
	│   └───────┬──────────────┬─────────────────┘              │
	│           │              │ non-blocking send               │
	│           ▼              ▼                                 │
	│   Subscriber chan   Subscriber chan                        │
	│   (buffered, 50)    (buffered, 50)                         │
	│        │                 │                                 │
	│        ▼                 ▼                                 │
	│   log mirror        future surfaces                        │
	│                     (SSE, audit sink)                      │
	└────────────────────────────────────────────────────────┘

# Event Types

Command lifecycle:

	command.received    A stream message was parsed and dispatch began
	command.completed   The flow finished and progress reached 100
	command.failed      The flow failed; progress was reset to 0

Build lifecycle:

	build.started       The build job was created in the cluster
	build.succeeded     The build job reported success
	build.failed        The build job failed or timed out

Deployment lifecycle:

	deployment.created  A deployment was created or replaced
	deployment.reaped   Cleanup deleted an old deployment
	rollback.completed  A rollback flow finished successfully

# Core Components

Event:
  - ID: assigned a UUID at publish when empty
  - Type: one of the EventType constants
  - AgentName: the agent the event belongs to
  - Timestamp: assigned at publish when zero
  - Message and Metadata: free-form context

Broker:
  - Buffered intake channel decouples publishers from broadcast
  - Per-subscriber buffers absorb bursts
  - Full subscriber buffers are skipped, never waited on

# Usage

Creating and starting a broker:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Publishing from the dispatcher:

	broker.Publish(&events.Event{
		Type:      events.EventBuildStarted,
		AgentName: cmd.Header().AgentName,
		Message:   "Build job created",
		Metadata:  map[string]string{"job": jobName},
	})

Consuming events:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for event := range sub {
		log.Logger.Info().
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Str("agent_name", event.AgentName).
			Msg(event.Message)
	}

# Design Patterns

Non-Blocking Publish Pattern:
  - Publish sends into a buffered intake channel, select against stop
  - fan-out uses select/default per subscriber
  - The dispatcher never stalls on observers

Channel Subscriber Pattern:
  - Subscribers are typed channels, not callback registrations
  - Consumers control their own goroutine and lifetime
  - Unsubscribe closes the channel, ending consumer range loops

# Delivery Guarantees

Events are best-effort and in-process only:

  - No persistence; a restart loses queued events
  - A subscriber with a full buffer misses events silently
  - Ordering is preserved per broker, not across restarts

Durable state lives in the backend records and the effect journal; events
exist for operator visibility, not for correctness.

# Integration Points

This package integrates with:

  - pkg/worker: publishes all lifecycle events
  - cmd/slipway: subscribes a log mirror in worker mode

# See Also

  - pkg/worker for the publish sites
  - pkg/journal for the durable counterpart to these signals
*/
package events
