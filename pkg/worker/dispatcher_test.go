package worker

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/pkg/observability"
	"github.com/slipway-sh/slipway/pkg/status"
	"github.com/slipway-sh/slipway/pkg/types"
)

func makeTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// TestDeployAgentHappyPath tests the full first-deploy lifecycle: build,
// deploy, register, permissions, finalize.
func TestDeployAgentHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "deploy_agent",
		"agent_name", "myA",
		"agent_path", "/app/agents/myA/v1.0.0",
		"owner_id", "u1",
		"upload_id", "up1",
	)
	h.worker.handle(ctx, msg)

	// Build job submitted with the timestamped image destination
	job, ok := h.driver.jobs["job-myA-1700000000"]
	require.True(t, ok, "build job not created")
	assert.Equal(t, "registry.example/agents/myA:v1700000000", job.ImageDestination)
	assert.Equal(t, "/app/agents/myA/v1.0.0", job.ContextPath)
	assert.Empty(t, job.GitURL)

	// Build record carries the semver-to-tag mapping
	builds := h.recorder.find(http.MethodPost, "/api/v1/agents/build")
	require.Len(t, builds, 1)
	assert.Equal(t, "1.0.0", builds[0].body["version_tag"])
	mapping, ok := builds[0].body["version_mapping"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", mapping["semantic_version"])
	assert.Equal(t, "v1700000000", mapping["image_tag"])

	// Build marked success
	buildUpdates := h.recorder.find(http.MethodPut, "/api/v1/agents/build/build-1/status")
	require.Len(t, buildUpdates, 1)
	assert.Equal(t, "success", buildUpdates[0].body["status"])

	// Deployment rolled out with identity and config env
	dep, ok := h.driver.deployments["agent-myA-1700000000"]
	require.True(t, ok, "deployment not created")
	assert.Equal(t, "registry.example/agents/myA:v1700000000", dep.Image)
	assert.Equal(t, "myA", dep.Env["AGENT_NAME"])
	assert.Equal(t, "u1", dep.Env["OWNER_ID"])
	assert.Equal(t, "sk-test", dep.Env["LLM_API_KEY"])
	assert.NotContains(t, dep.Env, "WEBHOOK_URL")

	// Deployment record finalized with the public URL
	depUpdates := h.recorder.find(http.MethodPut, "/api/v1/agents/deployment/deploy-1/status")
	require.Len(t, depUpdates, 1)
	assert.Equal(t, "running", depUpdates[0].body["status"])
	assert.Equal(t, "http://gw.example/agents/agent-myA-1700000000", depUpdates[0].body["service_url"])

	// Registry entry derived from the card with identity overlaid
	upserts := h.recorder.find(http.MethodPut, "/api/v1/registry/agent/myA")
	require.Len(t, upserts, 2, "expected registry upsert and version status flip")
	card := upserts[0].body
	assert.Equal(t, "myA", card["id"])
	assert.Equal(t, "http://gw.example/agents/agent-myA-1700000000", card["url"])
	assert.Equal(t, "kubernetes", card["deployment_type"])
	assert.Equal(t, "u1", card["owner_id"])
	assert.Equal(t, "1.0.0", card["version"])
	assert.Equal(t, "active", upserts[1].body["status"])

	// Permissions granted for the owner
	grants := h.recorder.find(http.MethodPost, "/auth/agents/myA/permissions")
	require.Len(t, grants, 1)
	assert.Equal(t, "owner_id=u1", grants[0].query)

	// Progress contract and completion payload
	assert.Equal(t, []int{95, 96, 97, 98, 100}, h.recorder.uploadProgression())
	last := h.recorder.lastUpload(t)
	assert.Equal(t, "completed", last["status"])
	assert.Equal(t, true, last["permissions_created"])

	// Volatile status and stream bookkeeping
	assert.Equal(t, types.AgentStatusRunning, h.agentStatus(t, "myA", "status"))
	assert.Equal(t, status.UpdatedBy, h.agentStatus(t, "myA", "updated_by"))
	assert.Equal(t, int64(0), h.pendingCount(t))
}

// TestDeployAgentBuildFailure tests that a failed build job marks every
// derived record failed and still acknowledges the message
func TestDeployAgentBuildFailure(t *testing.T) {
	h := newHarness(t)
	h.driver.statusQueue = []types.JobStatus{types.JobStatusActive, types.JobStatusFailed}
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "deploy_agent",
		"agent_name", "myA",
		"agent_path", "/app/agents/myA/v1.0.0",
	)
	h.worker.handle(ctx, msg)

	buildUpdates := h.recorder.find(http.MethodPut, "/api/v1/agents/build/build-1/status")
	require.Len(t, buildUpdates, 1)
	assert.Equal(t, "failed", buildUpdates[0].body["status"])
	assert.Equal(t, "Build job job-myA-1700000000 failed", buildUpdates[0].body["error_message"])

	assert.Empty(t, h.recorder.find(http.MethodPost, "/api/v1/agents/deploy"))
	assert.Empty(t, h.driver.deployments)

	last := h.recorder.lastUpload(t)
	assert.Equal(t, "failed", last["status"])
	assert.Equal(t, float64(0), last["progress_percentage"])
	assert.Equal(t, []any{"Build job job-myA-1700000000 failed"}, last["error_details"])

	assert.Equal(t, types.AgentStatusFailed, h.agentStatus(t, "myA", "status"))
	assert.Equal(t, int64(0), h.pendingCount(t))
}

// TestDeployAgentUnknownJobStatusKeepsWaiting tests that transient unknown
// statuses do not fail a build that eventually succeeds
func TestDeployAgentUnknownJobStatusKeepsWaiting(t *testing.T) {
	h := newHarness(t)
	h.driver.statusQueue = []types.JobStatus{
		types.JobStatusUnknown,
		types.JobStatusPending,
		types.JobStatusSucceeded,
	}
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "deploy_agent",
		"agent_name", "myA",
		"agent_path", "/app/agents/myA/v1.0.0",
	)
	h.worker.handle(ctx, msg)

	assert.Equal(t, types.AgentStatusRunning, h.agentStatus(t, "myA", "status"))
	last := h.recorder.lastUpload(t)
	assert.Equal(t, "completed", last["status"])
}

// TestDeployAgentBuildTimeout tests the build wait ceiling
func TestDeployAgentBuildTimeout(t *testing.T) {
	h := newHarness(t)
	h.worker.clock = time.Now
	h.worker.pollInterval = 5 * time.Millisecond
	h.worker.buildTimeout = 30 * time.Millisecond
	h.driver.defaultStatus = types.JobStatusPending
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "deploy_agent",
		"agent_name", "myA",
		"agent_path", "/app/agents/myA/v1.0.0",
	)
	h.worker.handle(ctx, msg)

	last := h.recorder.lastUpload(t)
	assert.Equal(t, "failed", last["status"])
	details, ok := last["error_details"].([]any)
	require.True(t, ok)
	require.Len(t, details, 1)
	detail, ok := details[0].(string)
	require.True(t, ok)
	assert.Contains(t, detail, "timed out")
	assert.Equal(t, types.AgentStatusFailed, h.agentStatus(t, "myA", "status"))
	assert.Equal(t, int64(0), h.pendingCount(t))
}

// TestDeployAgentDeployFailure tests that a rejected rollout marks the
// deployment record failed
func TestDeployAgentDeployFailure(t *testing.T) {
	h := newHarness(t)
	h.driver.deployErr = errors.New("quota exceeded")
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "deploy_agent",
		"agent_name", "myA",
		"agent_path", "/app/agents/myA/v1.0.0",
	)
	h.worker.handle(ctx, msg)

	depUpdates := h.recorder.find(http.MethodPut, "/api/v1/agents/deployment/deploy-1/status")
	require.Len(t, depUpdates, 1)
	assert.Equal(t, "failed", depUpdates[0].body["status"])
	errMsg, ok := depUpdates[0].body["error_message"].(string)
	require.True(t, ok)
	assert.Contains(t, errMsg, "quota exceeded")

	last := h.recorder.lastUpload(t)
	assert.Equal(t, "failed", last["status"])
	assert.Equal(t, types.AgentStatusFailed, h.agentStatus(t, "myA", "status"))
}

// TestDeployAgentMissingOwnerSkipsPermissions tests that an absent owner
// skips the grant without failing the deploy
func TestDeployAgentMissingOwnerSkipsPermissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "deploy_agent",
		"agent_name", "myA",
		"agent_path", "/app/agents/myA/v1.0.0",
	)
	h.worker.handle(ctx, msg)

	assert.Empty(t, h.recorder.find(http.MethodPost, "/auth/agents/"))
	assert.Equal(t, types.AgentStatusRunning, h.agentStatus(t, "myA", "status"))

	last := h.recorder.lastUpload(t)
	assert.Equal(t, "completed", last["status"])
	assert.Equal(t, false, last["permissions_created"])
}

// TestDeployAgentRegistryFailureBlocksPermissionsOnly tests that a rejected
// registry upsert skips the grant but does not fail the command
func TestDeployAgentRegistryFailureBlocksPermissionsOnly(t *testing.T) {
	h := newHarness(t)
	h.recorder.failRegistry = true
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "deploy_agent",
		"agent_name", "myA",
		"agent_path", "/app/agents/myA/v1.0.0",
		"owner_id", "u1",
	)
	h.worker.handle(ctx, msg)

	assert.Empty(t, h.recorder.find(http.MethodPost, "/auth/agents/"))

	last := h.recorder.lastUpload(t)
	assert.Equal(t, "completed", last["status"])
	assert.Equal(t, float64(100), last["progress_percentage"])
	assert.Equal(t, false, last["permissions_created"])
	assert.Equal(t, types.AgentStatusRunning, h.agentStatus(t, "myA", "status"))
}

// TestDeployAgentN8NWebhookEnv tests that n8n-registered agents receive
// their webhook URL
func TestDeployAgentN8NWebhookEnv(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "deploy_agent",
		"agent_name", "myA",
		"agent_path", "/app/agents/myA/v1.0.0",
		"upload_type", "n8n_register",
		"webhook_url", "http://n8n.example/hook",
	)
	h.worker.handle(ctx, msg)

	dep, ok := h.driver.deployments["agent-myA-1700000000"]
	require.True(t, ok)
	assert.Equal(t, "http://n8n.example/hook", dep.Env["WEBHOOK_URL"])
}

// TestDeployAgentStagesObservability tests that a staged file tree reaches
// the build job as its config-map source
func TestDeployAgentStagesObservability(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("injector script requires a POSIX shell")
	}
	h := newHarness(t)
	ctx := context.Background()

	h.recorder.tarballs["myA"] = makeTarGz(t, map[string]string{
		"Dockerfile": "FROM python:3.12\nCOPY . /app\n",
		"app.py":     "print('hi')\n",
	})
	injector := filepath.Join(t.TempDir(), "inject.sh")
	require.NoError(t, os.WriteFile(injector, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	h.worker.stager = observability.NewStager(h.worker.backend, h.driver, observability.Config{
		Enabled:        true,
		TracingEnabled: true,
		InjectorBin:    injector,
		OTLPEndpoint:   "http://collector:4317",
	})

	msg := h.enqueue(t,
		"action", "deploy_agent",
		"agent_name", "myA",
		"agent_path", "/app/agents/myA/v1.0.0",
	)
	h.worker.handle(ctx, msg)

	job, ok := h.driver.jobs["job-myA-1700000000"]
	require.True(t, ok)
	assert.Equal(t, "agent-files-myA-1700000000", job.FilesConfigMap)
	assert.Contains(t, h.driver.configMaps, "agent-files-myA-1700000000")

	// The path encodes a version, so the download is qualified by it
	downloads := h.recorder.find(http.MethodGet, "/api/v1/agents/myA/download")
	require.NotEmpty(t, downloads)
	assert.Equal(t, "version=1.0.0", downloads[0].query)

	dep, ok := h.driver.deployments["agent-myA-1700000000"]
	require.True(t, ok)
	assert.Equal(t, "myA", dep.Env["OTEL_SERVICE_NAME"])

	last := h.recorder.lastUpload(t)
	assert.Equal(t, "completed", last["status"])
}

// TestDeployAgentStagingFallback tests that a failed staging pass falls
// back to the uploaded files and the deploy still succeeds
func TestDeployAgentStagingFallback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// No tarball in the recorder: the stager's download fails
	h.worker.stager = observability.NewStager(h.worker.backend, h.driver, observability.Config{
		Enabled:        true,
		TracingEnabled: true,
		InjectorBin:    "/nonexistent/injector",
		OTLPEndpoint:   "http://collector:4317",
	})

	msg := h.enqueue(t,
		"action", "deploy_agent",
		"agent_name", "myA",
		"agent_path", "/app/agents/myA/v1.0.0",
	)
	h.worker.handle(ctx, msg)

	job, ok := h.driver.jobs["job-myA-1700000000"]
	require.True(t, ok)
	assert.Empty(t, job.FilesConfigMap, "fallback must use the uploaded files")
	assert.Equal(t, "/app/agents/myA/v1.0.0", job.ContextPath)

	last := h.recorder.lastUpload(t)
	assert.Equal(t, "completed", last["status"])
	assert.Equal(t, types.AgentStatusRunning, h.agentStatus(t, "myA", "status"))
}

// TestDeployAgentUnversionedPathDownloadsLatest tests that a path without
// a version suffix still records 1.0.0 but downloads without a qualifier:
// there is no 1.0.0-tagged upload to ask for
func TestDeployAgentUnversionedPathDownloadsLatest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.recorder.tarballs["myA"] = makeTarGz(t, map[string]string{
		"Dockerfile": "FROM python:3.12\n",
	})
	h.worker.stager = observability.NewStager(h.worker.backend, h.driver, observability.Config{
		Enabled:        true,
		TracingEnabled: true,
	})

	msg := h.enqueue(t,
		"action", "deploy_agent",
		"agent_name", "myA",
		"agent_path", "/app/agents/myA",
	)
	h.worker.handle(ctx, msg)

	builds := h.recorder.find(http.MethodPost, "/api/v1/agents/build")
	require.Len(t, builds, 1)
	assert.Equal(t, "1.0.0", builds[0].body["version_tag"])

	downloads := h.recorder.find(http.MethodGet, "/api/v1/agents/myA/download")
	require.NotEmpty(t, downloads)
	for _, dl := range downloads {
		assert.Empty(t, dl.query, "unversioned path must download the latest upload")
	}

	last := h.recorder.lastUpload(t)
	assert.Equal(t, "completed", last["status"])
}

// TestUpdateAgentWithCleanup tests a versioned update that reaps the
// replaced deployment
func TestUpdateAgentWithCleanup(t *testing.T) {
	h := newHarness(t)
	h.driver.addExisting("agent-myA-1600000000", "myA")
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "update_agent",
		"agent_name", "myA",
		"agent_id", "myA",
		"agent_path", "/app/agents/myA/v1.0.1",
		"new_version", "1.0.1",
		"previous_version", "1.0.0",
		"update_strategy", "rolling",
		"cleanup_old", "true",
		"upload_type", "agent_update",
	)
	h.worker.handle(ctx, msg)

	builds := h.recorder.find(http.MethodPost, "/api/v1/agents/build")
	require.Len(t, builds, 1)
	assert.Equal(t, "1.0.1", builds[0].body["version_tag"])
	mapping, ok := builds[0].body["version_mapping"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.0.1", mapping["semantic_version"])

	// Old deployment reaped, only the fresh rollout remains
	assert.Contains(t, h.driver.deleted, "agent-myA-1600000000")
	names, err := h.driver.ListAgentDeployments(ctx, "myA")
	require.NoError(t, err)
	assert.Equal(t, []string{"agent-myA-1700000000"}, names)

	last := h.recorder.lastUpload(t)
	assert.Equal(t, "completed", last["status"])
	history, ok := last["upload_history"].([]any)
	require.True(t, ok)
	require.Len(t, history, 1)
	entry := history[0].(map[string]any)
	assert.Equal(t, "1.0.1", entry["version"])
	assert.Equal(t, "v1.0.1", entry["filename"])

	assert.Equal(t, types.AgentStatusRunning, h.agentStatus(t, "myA", "status"))
	assert.Equal(t, int64(0), h.pendingCount(t))
}

// TestUpdateAgentWithoutCleanupKeepsOld tests that cleanup_old=false leaves
// prior deployments alone
func TestUpdateAgentWithoutCleanupKeepsOld(t *testing.T) {
	h := newHarness(t)
	h.driver.addExisting("agent-myA-1600000000", "myA")
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "update_agent",
		"agent_name", "myA",
		"agent_id", "myA",
		"agent_path", "/app/agents/myA/v1.0.1",
		"new_version", "1.0.1",
		"previous_version", "1.0.0",
	)
	h.worker.handle(ctx, msg)

	assert.Empty(t, h.driver.deleted)
	names, err := h.driver.ListAgentDeployments(ctx, "myA")
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

// TestUpdateAgentBlueGreenAppliesAsRolling tests that the blue-green
// strategy is accepted and rolled out the standard way
func TestUpdateAgentBlueGreenAppliesAsRolling(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "update_agent",
		"agent_name", "myA",
		"agent_id", "myA",
		"agent_path", "/app/agents/myA/v2.0.0",
		"new_version", "2.0.0",
		"update_strategy", "blue-green",
	)
	h.worker.handle(ctx, msg)

	_, ok := h.driver.deployments["agent-myA-1700000000"]
	assert.True(t, ok)
	last := h.recorder.lastUpload(t)
	assert.Equal(t, "completed", last["status"])
}

// TestRollbackAgentUsesMappedTag tests that rollback deploys the image tag
// the version mapping resolves, without building anything
func TestRollbackAgentUsesMappedTag(t *testing.T) {
	h := newHarness(t)
	h.recorder.versionTags["myA/1.0.0"] = "v1650000000"
	h.driver.addExisting("agent-myA-1690000000", "myA")
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "rollback_agent",
		"agent_name", "myA",
		"agent_id", "myA",
		"target_version", "1.0.0",
		"current_version", "1.0.1",
		"owner_id", "u1",
	)
	h.worker.handle(ctx, msg)

	// No build happened
	assert.Empty(t, h.driver.jobs)
	assert.Empty(t, h.recorder.find(http.MethodPost, "/api/v1/agents/build"))

	dep, ok := h.driver.deployments["agent-myA-1700000000"]
	require.True(t, ok)
	assert.Equal(t, "registry.example/agents/myA:v1650000000", dep.Image)

	// Deployment record has no build to reference
	deploys := h.recorder.find(http.MethodPost, "/api/v1/agents/deploy")
	require.Len(t, deploys, 1)
	assert.NotContains(t, deploys[0].body, "build_id")

	// The failed version's deployment is gone
	assert.Contains(t, h.driver.deleted, "agent-myA-1690000000")
	names, err := h.driver.ListAgentDeployments(ctx, "myA")
	require.NoError(t, err)
	assert.Equal(t, []string{"agent-myA-1700000000"}, names)

	assert.Equal(t, types.AgentStatusRolledBack, h.agentStatus(t, "myA", "status"))
	last := h.recorder.lastUpload(t)
	assert.Equal(t, "completed", last["status"])
	assert.Equal(t, float64(100), last["progress_percentage"])
}

// TestRollbackAgentFallsBackToVersionTag tests the pre-mapping fallback:
// targets without a mapping deploy v<semver>
func TestRollbackAgentFallsBackToVersionTag(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "rollback_agent",
		"agent_name", "myA",
		"agent_id", "myA",
		"target_version", "1.0.0",
		"current_version", "1.0.1",
	)
	h.worker.handle(ctx, msg)

	dep, ok := h.driver.deployments["agent-myA-1700000000"]
	require.True(t, ok)
	assert.Equal(t, "registry.example/agents/myA:v1.0.0", dep.Image)
}

// TestRollbackAgentResolvesTargetFromHistory tests that a missing target
// version falls back to the registry's newest older active version
func TestRollbackAgentResolvesTargetFromHistory(t *testing.T) {
	h := newHarness(t)
	h.recorder.registry = &types.RegistryEntry{
		ID: "myA",
		VersionHistory: []types.VersionHistoryEntry{
			{Version: "1.0.0", Status: types.VersionStatusActive},
			{Version: "1.1.0", Status: types.VersionStatusActive},
			{Version: "1.2.0", Status: types.VersionStatusActive},
		},
	}
	h.recorder.versionTags["myA/1.1.0"] = "v1660000000"
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "rollback_agent",
		"agent_name", "myA",
		"agent_id", "myA",
		"current_version", "1.2.0",
	)
	h.worker.handle(ctx, msg)

	dep, ok := h.driver.deployments["agent-myA-1700000000"]
	require.True(t, ok)
	assert.Equal(t, "registry.example/agents/myA:v1660000000", dep.Image)
}

// TestRollbackAgentWithoutTarget tests that rollbacks with no target and no
// history fail with a recorded error
func TestRollbackAgentWithoutTarget(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "rollback_agent",
		"agent_name", "myA",
		"agent_id", "myA",
	)
	h.worker.handle(ctx, msg)

	assert.Empty(t, h.driver.deployments)
	assert.Equal(t, types.AgentStatusRollbackFailed, h.agentStatus(t, "myA", "status"))
	last := h.recorder.lastUpload(t)
	assert.Equal(t, "failed", last["status"])
	assert.Equal(t, int64(0), h.pendingCount(t))
}

// TestRebuildAgent tests the in-place rebuild: rebuild-stamped tag, fresh
// rollout, prior deployments reaped down to the newest.
func TestRebuildAgent(t *testing.T) {
	h := newHarness(t)
	h.driver.addExisting("agent-myA-1600000000", "myA")
	ctx := context.Background()

	msg := h.enqueue(t,
		"action", "rebuild_agent",
		"agent_name", "myA",
		"agent_id", "myA",
		"agent_path", "/app/agents/myA/v1.0.2",
		"new_version", "1.0.2",
	)
	h.worker.handle(ctx, msg)

	job, ok := h.driver.jobs["job-myA-1700000000"]
	require.True(t, ok)
	assert.Equal(t, "registry.example/agents/myA:v1.0.2-rebuild-1700000000", job.ImageDestination)

	dep, ok := h.driver.deployments["agent-myA-1700000000"]
	require.True(t, ok)
	assert.Equal(t, "registry.example/agents/myA:v1.0.2-rebuild-1700000000", dep.Image)

	assert.Contains(t, h.driver.deleted, "agent-myA-1600000000")
	names, err := h.driver.ListAgentDeployments(ctx, "myA")
	require.NoError(t, err)
	assert.Equal(t, []string{"agent-myA-1700000000"}, names)

	assert.Equal(t, types.AgentStatusRebuilt, h.agentStatus(t, "myA", "status"))
	last := h.recorder.lastUpload(t)
	assert.Equal(t, "completed", last["status"])
	assert.Equal(t, []int{95, 96, 97, 98, 100}, h.recorder.uploadProgression())
}
