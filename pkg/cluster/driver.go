package cluster

import (
	"context"

	"github.com/slipway-sh/slipway/pkg/types"
)

// BuildJobSpec describes one image build submission. Exactly one source
// should be set; when several are, GitURL wins over FilesConfigMap which
// wins over ContextPath.
type BuildJobSpec struct {
	// JobName is the unique job identifier, job-<agent>-<timestamp>
	JobName string

	// AgentID labels the job for later inspection
	AgentID string

	// ImageDestination is the fully qualified target reference the
	// builder pushes to, registry/agent:tag
	ImageDestination string

	// GitURL builds straight from a repository
	GitURL string

	// FilesConfigMap names a config map holding the base64-encoded
	// source tree, typically produced by observability staging
	FilesConfigMap string

	// ContextPath points at the agent's uploaded files on the shared
	// uploads volume
	ContextPath string
}

// DeploySpec describes one agent deployment plus its service
type DeploySpec struct {
	// Name is the deployment and service name, agent-<agent>-<timestamp>
	Name string

	// AgentID labels the deployment so reaping can find every
	// deployment belonging to the agent
	AgentID string

	// Image is the full image reference to run
	Image string

	// Port is the container port the agent listens on
	Port int32

	// Env is injected into the container, sorted by key for stable specs
	Env map[string]string
}

// Driver abstracts the cluster API. The dispatcher assumes these
// semantics without caring which cluster implementation sits behind them.
type Driver interface {
	// CreateBuildJob submits an image build and returns immediately.
	// Resubmitting an existing job name attaches to the running job, so
	// the call is safe to retry after a crash.
	CreateBuildJob(ctx context.Context, spec *BuildJobSpec) error

	// GetJobStatus reports where a build job is. API errors come back
	// with JobStatusUnknown so pollers can treat them as still-running.
	GetJobStatus(ctx context.Context, jobName string) (types.JobStatus, error)

	// DeployAgent creates or updates the agent's deployment and service
	DeployAgent(ctx context.Context, spec *DeploySpec) error

	// ListAgentDeployments returns the names of every deployment
	// belonging to the agent
	ListAgentDeployments(ctx context.Context, agentID string) ([]string, error)

	// DeleteAgentDeployment removes one deployment and its service.
	// Deleting a deployment that is already gone is not an error.
	DeleteAgentDeployment(ctx context.Context, name string) error

	// CreateConfigMapWithFiles publishes an encoded file tree as a
	// config map, replacing any previous content under the same name
	CreateConfigMapWithFiles(ctx context.Context, name string, data map[string]string) error
}
