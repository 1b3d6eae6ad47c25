/*
Package backend is the HTTP client for the control-plane REST API.

The worker reports everything it does to the backend: upload progress for
the UI, durable build and deployment records, registry documents for
agent discovery, and version-to-image-tag lookups for rollbacks. All of
it goes through one small client with fixed timeouts.

# Failure Semantics

Calls split into two families:

Reporting calls (upload status, record creation, record transitions,
registry writes) return a bool or a nullable ID and never an error. The
backend being briefly down must not wedge a deployment that Kubernetes
is perfectly capable of finishing, so these log the failure, feed the
failure counters and let the flow continue. Downstream calls tolerate
the resulting empty IDs as no-ops.

Lookup calls (version mapping, registry entry, file download) return
real errors, because the caller cannot proceed sensibly without the
answer: there is no deploying an image whose tag could not be resolved.

The one reporting result the dispatcher branches on is RegisterInRegistry:
an agent that failed to register is not granted permissions, though its
deployment still completes.

# Endpoints

	PUT  /api/v1/upload-status/agent/<name>/latest   progress + state
	POST /api/v1/agents/build                        build record -> _id
	PUT  /api/v1/agents/build/<id>/status            build transition
	POST /api/v1/agents/deploy                       deployment record -> _id
	PUT  /api/v1/agents/deployment/<id>/status       deployment transition
	PUT  /api/v1/registry/agent/<name>               registry upsert
	PUT  /api/v1/registry/agent/<name>/version/status
	GET  /api/v1/registry/agent/<name>               registry entry
	GET  /api/v1/agents/build/version-mapping        semver -> image tag
	GET  /api/v1/agents/<name>/download[?version=]   gzipped tarball

# Timeouts

Regular calls use a 10 second client. Downloads use a dedicated client
with a 30 second response-header timeout and a 60 second total budget,
since tarballs for large agents take a while to stream.

# Usage

	client := backend.NewClient(cfg.BackendAPIURL)

	// per-command override for multi-tenant backends
	if cmd.Header().BaseURL != "" {
		client = client.WithBase(cmd.Header().BaseURL)
	}

	buildID := client.CreateBuildRecord(ctx, &types.BuildRecord{
		AgentID:    agentID,
		VersionTag: tag,
		Status:     types.BuildStateBuilding,
		K8sJobName: jobName,
	})
	// buildID may be "" -- later UpdateBuildStatus calls become no-ops

# See Also

  - pkg/worker for the dispatcher driving these calls
  - pkg/types for the record and update payload shapes
  - pkg/auth for the separate permissions service client
*/
package backend
