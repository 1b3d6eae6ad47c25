package types

import (
	"time"
)

// Action identifies an orchestration command variant
type Action string

const (
	ActionDeployAgent   Action = "deploy_agent"
	ActionUpdateAgent   Action = "update_agent"
	ActionRollbackAgent Action = "rollback_agent"
	ActionRebuildAgent  Action = "rebuild_agent"
)

// UploadType describes how the agent's files reached the platform
type UploadType string

const (
	UploadTypeZip           UploadType = "zip"
	UploadTypeDirectory     UploadType = "directory"
	UploadTypeGitHub        UploadType = "github"
	UploadTypeAgentUpdate   UploadType = "agent_update"
	UploadTypeGitHubUpdate  UploadType = "github_update"
	UploadTypeAgentRollback UploadType = "agent_rollback"
	UploadTypeN8NRegister   UploadType = "n8n_register"
)

// UpdateStrategy defines how an update is rolled out
type UpdateStrategy string

const (
	UpdateStrategyRolling   UpdateStrategy = "rolling"
	UpdateStrategyBlueGreen UpdateStrategy = "blue-green"
)

// UploadState is the user-visible lifecycle state of an upload
type UploadState string

const (
	UploadStateInitiated               UploadState = "initiated"
	UploadStateProcessing              UploadState = "processing"
	UploadStateCapabilitiesGenerated   UploadState = "capabilities_generated"
	UploadStateOrchestrationTriggered  UploadState = "orchestration_triggered"
	UploadStateOrchestrationProcessing UploadState = "orchestration_processing"
	UploadStateCompleted               UploadState = "completed"
	UploadStateFailed                  UploadState = "failed"
)

// BuildState represents the state of a container image build
type BuildState string

const (
	BuildStateBuilding BuildState = "building"
	BuildStateSuccess  BuildState = "success"
	BuildStateFailed   BuildState = "failed"
)

// DeploymentState represents the state of a cluster deployment
type DeploymentState string

const (
	DeploymentStateStarting DeploymentState = "starting"
	DeploymentStateRunning  DeploymentState = "running"
	DeploymentStateFailed   DeploymentState = "failed"
)

// JobStatus is the observed state of a build job in the cluster
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusUnknown   JobStatus = "unknown"
)

// VersionStatus labels an entry in a registry version history
type VersionStatus string

const (
	VersionStatusActive   VersionStatus = "active"
	VersionStatusArchived VersionStatus = "archived"
	VersionStatusFailed   VersionStatus = "failed"
	VersionStatusBuilding VersionStatus = "building"
)

// Agent status labels written to the volatile status store. The label set is
// free-form on the wire; these are the values the worker emits.
const (
	AgentStatusProcessing     = "processing"
	AgentStatusBuilding       = "building"
	AgentStatusDeploying      = "deploying"
	AgentStatusRunning        = "running"
	AgentStatusUpdating       = "updating"
	AgentStatusUpdated        = "updated"
	AgentStatusRollingBack    = "rolling_back"
	AgentStatusRolledBack     = "rolled_back"
	AgentStatusRebuilding     = "rebuilding"
	AgentStatusRebuilt        = "rebuilt"
	AgentStatusFailed         = "failed"
	AgentStatusUpdateFailed   = "update_failed"
	AgentStatusRollbackFailed = "rollback_failed"
	AgentStatusRebuildFailed  = "rebuild_failed"
	AgentStatusError          = "error"
)

// AgentStatus is the volatile per-agent status snapshot kept in Redis
type AgentStatus struct {
	AgentName   string            `json:"agent_name"`
	Status      string            `json:"status"`
	LastUpdated time.Time         `json:"last_updated"`
	UpdatedBy   string            `json:"updated_by"`
	Details     map[string]string `json:"details,omitempty"`
}

// UploadHistoryEntry records one prior version of an uploaded agent
type UploadHistoryEntry struct {
	Version    string    `json:"version"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// UploadStatusUpdate is the body sent to the backend when the worker reports
// upload progress. Progress percentages follow a fixed contract: 95 on
// command receipt, 96 while building, 97 while deploying, 98 while
// finalizing, 100 on completion, and 0 on failure.
type UploadStatusUpdate struct {
	Status                UploadState          `json:"status"`
	ProgressPercentage    int                  `json:"progress_percentage"`
	StatusMessage         string               `json:"status_message,omitempty"`
	OrchestrationDuration float64              `json:"orchestration_duration,omitempty"`
	ErrorDetails          []string             `json:"error_details,omitempty"`
	UploadHistory         []UploadHistoryEntry `json:"upload_history,omitempty"`
	PermissionsCreated    *bool                `json:"permissions_created,omitempty"`
}

// VersionMapping associates a semantic version with the immutable image tag
// built for it
type VersionMapping struct {
	SemanticVersion string    `json:"semantic_version"`
	ImageTag        string    `json:"image_tag"`
	Timestamp       time.Time `json:"timestamp"`
}

// BuildRecord is the durable record of one image build
type BuildRecord struct {
	ID             string          `json:"_id,omitempty"`
	AgentID        string          `json:"agent_id"`
	VersionTag     string          `json:"version_tag"`
	ImageReference string          `json:"image_reference"`
	Status         BuildState      `json:"status"`
	K8sJobName     string          `json:"k8s_job_name"`
	VersionMapping *VersionMapping `json:"version_mapping,omitempty"`
}

// BuildStatusUpdate is the body for a build status transition
type BuildStatusUpdate struct {
	AgentID      string     `json:"agent_id"`
	Status       BuildState `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Logs         string     `json:"logs,omitempty"`
}

// DeploymentRecord is the durable record of one cluster deployment
type DeploymentRecord struct {
	ID                string          `json:"_id,omitempty"`
	AgentID           string          `json:"agent_id"`
	BuildID           string          `json:"build_id,omitempty"`
	Status            DeploymentState `json:"status"`
	K8sDeploymentName string          `json:"k8s_deployment_name"`
	Namespace         string          `json:"namespace"`
	ServiceURL        string          `json:"service_url,omitempty"`
}

// DeploymentStatusUpdate is the body for a deployment status transition
type DeploymentStatusUpdate struct {
	AgentID      string          `json:"agent_id"`
	Status       DeploymentState `json:"status"`
	ServiceURL   string          `json:"service_url,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// VersionHistoryEntry is one version the registry has seen for an agent
type VersionHistoryEntry struct {
	Version    string        `json:"version"`
	Status     VersionStatus `json:"status"`
	ImageTag   string        `json:"image_tag,omitempty"`
	DeployedAt time.Time     `json:"deployed_at,omitempty"`
}

// RegistryEntry is the discoverable document the backend keeps per agent.
// The worker upserts it from the resolved AgentCard; the backend owns the
// version history.
type RegistryEntry struct {
	ID             string                `json:"id"`
	URL            string                `json:"url"`
	DeploymentType string                `json:"deployment_type"`
	OwnerID        string                `json:"owner_id,omitempty"`
	Version        string                `json:"version,omitempty"`
	Capabilities   map[string]any        `json:"capabilities,omitempty"`
	Skills         []any                 `json:"skills,omitempty"`
	VersionHistory []VersionHistoryEntry `json:"version_history,omitempty"`
}
