/*
Package types defines the core data structures shared across all Slipway components.

This package contains the command sum type parsed from stream messages, the
durable record shapes exchanged with the backend API (builds, deployments,
upload status, registry entries), and the string-typed state enumerations
every other package keys on. It has no dependencies beyond the standard
library, which keeps it importable from anywhere in the codebase without
cycles.

# Architecture

Types flow through the system as follows:

	┌─────────────────── TYPE RELATIONSHIPS ────────────────────┐
	│                                                             │
	│   Stream message fields (map[string]string)                 │
	│        │                                                    │
	│        ▼ ParseCommand                                       │
	│   ┌──────────────────────────────────────────┐             │
	│   │ Command (sum type)                        │             │
	│   │   DeployCommand   UpdateCommand           │             │
	│   │   RollbackCommand RebuildCommand          │             │
	│   │   └── CommandHeader (shared fields)       │             │
	│   └───────────────┬──────────────────────────┘             │
	│                   │ dispatched by pkg/worker                │
	│                   ▼                                         │
	│   ┌──────────────────────────────────────────┐             │
	│   │ Durable records (backend API bodies)      │             │
	│   │   BuildRecord ── VersionMapping           │             │
	│   │   DeploymentRecord                        │             │
	│   │   UploadStatusUpdate ── UploadHistoryEntry│             │
	│   │   RegistryEntry ── VersionHistoryEntry    │             │
	│   └──────────────────────────────────────────┘             │
	│                                                             │
	│   ┌──────────────────────────────────────────┐             │
	│   │ Volatile state (Redis hash)               │             │
	│   │   AgentStatus + agent status labels       │             │
	│   └──────────────────────────────────────────┘             │
	└─────────────────────────────────────────────────────────┘

# Core Types

Command:
  - Interface implemented by the four orchestration variants
  - Action() returns the verb, Header() the shared fields
  - Produced by ParseCommand from raw stream fields
  - Unknown actions and missing agent_name are the only parse errors

CommandHeader:
  - AgentName: human-readable unique agent name
  - AgentID: stable identifier (defaults to AgentName when absent)
  - AgentPath: backend-resolvable path, may encode a version suffix (/v1.0.0)
  - OwnerID, UploadID, UploadType, BaseURL

BuildRecord:
  - One durable record per image build attempt
  - Status: building → success | failed
  - VersionMapping ties the semantic version to the immutable image tag

DeploymentRecord:
  - One durable record per cluster deployment
  - Status: starting → running | failed
  - Carries the cluster deployment name, namespace and public service URL

UploadStatusUpdate:
  - Reported to the backend at each orchestration milestone
  - ProgressPercentage contract: 95 received, 96 building, 97 deploying,
    98 finalizing, 100 completed, 0 failed

AgentStatus:
  - Volatile snapshot kept in Redis with a 24h TTL
  - Status label is free-form; the worker emits the AgentStatus* constants
  - UpdatedBy identifies the writer ("k8s-worker")

# State Enumerations

UploadState:
  - initiated → processing → capabilities_generated →
    orchestration_triggered → orchestration_processing →
    completed | failed

BuildState:    building → success | failed
DeploymentState: starting → running | failed
JobStatus:     pending | active | succeeded | failed | unknown
VersionStatus: active | archived | failed | building

# Usage

Parsing a stream message:

	cmd, err := types.ParseCommand(msg.Fields)
	if err != nil {
		// poison message: log, count, ack
		return
	}
	switch c := cmd.(type) {
	case *types.DeployCommand:
		// first-time build and deploy
	case *types.UpdateCommand:
		// versioned update, c.NewVersion / c.PreviousVersion
	case *types.RollbackCommand:
		// redeploy c.TargetVersion without a rebuild
	case *types.RebuildCommand:
		// rebuild current files in place
	}

Building a record:

	rec := &types.BuildRecord{
		AgentID:        cmd.Header().AgentID,
		VersionTag:     "1.0.0",
		ImageReference: "registry.local/my-agent:v1700000000",
		Status:         types.BuildStateBuilding,
		K8sJobName:     "job-my-agent-1700000000",
		VersionMapping: &types.VersionMapping{
			SemanticVersion: "1.0.0",
			ImageTag:        "v1700000000",
			Timestamp:       time.Now().UTC(),
		},
	}

# Design Patterns

Sum Type Pattern:
  - Command is a sealed interface over four concrete variants
  - Shared fields live once in the embedded CommandHeader
  - Dispatch is an exhaustive type switch in the worker

String Enumeration Pattern:
  - States are typed strings, not iota ints
  - Wire format and log output stay human-readable
  - New states can be introduced without renumbering

Lenient Parse Pattern:
  - Only unrecoverable defects fail the parse (unknown action,
    missing agent_name)
  - Missing optional fields are resolved downstream, keeping the
    poison-message surface minimal

# Integration Points

This package is imported by:

  - pkg/worker: command dispatch and record lifecycle
  - pkg/backend: request/response bodies for the HTTP contract
  - pkg/cluster: JobStatus mapping from cluster state
  - pkg/version: VersionHistoryEntry ordering and status flips
  - pkg/status: agent status labels

# See Also

  - pkg/worker for the dispatch flows that consume these types
  - pkg/backend for the endpoints the record types serialize to
*/
package types
