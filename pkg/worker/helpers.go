package worker

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/slipway-sh/slipway/pkg/backend"
	"github.com/slipway-sh/slipway/pkg/types"
)

// jobName returns the cluster job name for one build. The timestamp keeps
// names unique across commands; two commands for the same agent in the same
// second share a name, and the second submission attaches to the first job.
func jobName(agentName string, timestamp int64) string {
	return fmt.Sprintf("job-%s-%d", agentName, timestamp)
}

// deploymentName returns the cluster deployment name, which doubles as the
// agent's stable gateway path segment.
func deploymentName(agentName string, timestamp int64) string {
	return fmt.Sprintf("agent-%s-%d", agentName, timestamp)
}

func (w *Worker) imageRef(agentName, tag string) string {
	return fmt.Sprintf("%s/%s:%s", w.registry, agentName, tag)
}

// publicURL computes the gateway URL clients reach a deployment on. A bare
// http://localhost gateway gets the local-dev port 8000 appended.
func (w *Worker) publicURL(deployment string) string {
	base := strings.TrimRight(w.gatewayBaseURL, "/")
	if base == "http://localhost" {
		base += ":8000"
	}
	return base + "/agents/" + deployment
}

// pathVersion extracts the semantic version an upload path encodes as a
// .../<agent>/v<semver> suffix, or "" when the path carries none.
func pathVersion(agentPath string) string {
	if i := strings.LastIndex(agentPath, "/v"); i >= 0 {
		if v := agentPath[i+2:]; v != "" && !strings.Contains(v, "/") {
			return v
		}
	}
	return ""
}

// versionFromPath is pathVersion with the 1.0.0 default applied, for the
// fields that must always carry a semver.
func versionFromPath(agentPath string) string {
	if v := pathVersion(agentPath); v != "" {
		return v
	}
	return "1.0.0"
}

// historyFilename is the filename recorded in the upload history. GitHub
// updates arrive without a path; the literal "github-update" stands in.
func historyFilename(agentPath string, uploadType types.UploadType) string {
	if agentPath == "" {
		if uploadType == types.UploadTypeGitHubUpdate {
			return "github-update"
		}
		return ""
	}
	return path.Base(agentPath)
}

// backendFor returns the backend client for a command, honoring a
// per-command base URL override carried on the message.
func (w *Worker) backendFor(header *types.CommandHeader) *backend.Client {
	return w.backend.WithBase(header.BaseURL)
}

// setAgentStatus writes the volatile status hash. Best-effort: a failed
// write is logged and the workflow continues.
func (w *Worker) setAgentStatus(ctx context.Context, agentName, label string, details map[string]string) {
	if err := w.status.Set(ctx, agentName, label, details); err != nil {
		w.log.Warn().
			Err(err).
			Str("agent", agentName).
			Str("status", label).
			Msg("Agent status write failed")
	}
}

// reportProgress writes one step of the fixed upload progress contract.
// Everything between receipt and completion reports as
// orchestration_processing with the step's percentage.
func (w *Worker) reportProgress(ctx context.Context, client *backend.Client, agentName string, pct int, message string) {
	client.UpdateUploadStatus(ctx, agentName, &types.UploadStatusUpdate{
		Status:             types.UploadStateOrchestrationProcessing,
		ProgressPercentage: pct,
		StatusMessage:      message,
	})
}
