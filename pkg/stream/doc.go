/*
Package stream consumes orchestration commands from a Redis stream.

The stream package wraps a Redis consumer group over the durable command
stream. Commands survive worker restarts: entries stay in the stream until
a consumer reads them through the group, and stay pending against that
consumer until explicitly acknowledged. All worker replicas join the same
group, so each command is handled by exactly one replica.

# Architecture

	┌───────────────────── COMMAND STREAM ─────────────────────┐
	│                                                            │
	│   Producers (upload service, API)                          │
	│        │ XADD orchestration:commands                       │
	│        ▼                                                   │
	│   ┌────────────────────────────────────────┐              │
	│   │  Stream: orchestration:commands         │              │
	│   │  Group:  k8s-orchestrator (from "0")    │              │
	│   └───────┬───────────────┬────────────────┘              │
	│           │ XREADGROUP >  │ XREADGROUP >                   │
	│           ▼               ▼                                │
	│   Consumer(hostname-a)  Consumer(hostname-b)               │
	│        │                                                   │
	│        │ handle command                                    │
	│        ▼                                                   │
	│      XACK ── removes the pending entry                     │
	└────────────────────────────────────────────────────────┘

# Delivery Semantics

  - EnsureGroup creates the group at "0" with MKSTREAM, so the stream and
    group exist before any producer writes; BUSYGROUP from concurrent
    creation is swallowed (startup is idempotent)
  - Read asks for one undelivered entry and blocks about a second, which
    bounds shutdown latency without busy-polling
  - An unacked entry stays pending against the consumer name; a replica
    restarting under the same hostname can inspect its own backlog
  - Ack after handling gives at-least-once delivery; the effect journal
    makes the visible side effects at-most-once

# Usage

	consumer, err := stream.NewConsumer(&stream.Config{
		Addr:     cfg.RedisAddr(),
		DB:       cfg.RedisDB,
		Consumer: cfg.Hostname,
	})
	if err != nil {
		return err
	}
	defer consumer.Close()

	for {
		msg, err := consumer.Read(ctx)
		if err != nil {
			// transient read errors are logged and retried
			continue
		}
		if msg == nil {
			continue // poll timeout
		}
		handle(msg)
		_ = consumer.Ack(ctx, msg.ID)
	}

# Integration Points

This package integrates with:

  - pkg/worker: the Run loop reads and acks through this consumer
  - pkg/types: ParseCommand consumes Message.Fields
  - pkg/metrics: Depth feeds the stream gauges via the Collector

# See Also

  - Redis streams: https://redis.io/docs/data-types/streams/
  - pkg/status for the volatile Redis keys that share this connection config
*/
package stream
