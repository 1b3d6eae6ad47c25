package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/slipway-sh/slipway/pkg/agentcard"
	"github.com/slipway-sh/slipway/pkg/backend"
	"github.com/slipway-sh/slipway/pkg/cluster"
	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/journal"
	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/types"
	"github.com/slipway-sh/slipway/pkg/version"
)

// buildSpec is one image build: which agent, which version, which tag
type buildSpec struct {
	header          *types.CommandHeader
	version         string // semantic version recorded on the build
	downloadVersion string // tarball download qualifier; empty fetches the latest upload
	tag             string // immutable image tag minted for this command
	timestamp       int64
	gitURL          string
	statusLabel     string // agent status written while the image builds
}

// deploySpec is one deploy-and-register pass
type deploySpec struct {
	header          *types.CommandHeader
	version         string
	downloadVersion string
	image           string
	timestamp       int64
	buildID         string // empty for rollback, which deploys without a build
	webhookURL      string
}

// deployOutcome reports what deployAndRegister accomplished
type deployOutcome struct {
	deploymentName     string
	deploymentID       string
	publicURL          string
	registered         bool
	permissionsCreated bool
}

// dispatch runs the shared prelude and routes on the command action
func (w *Worker) dispatch(ctx context.Context, cmd types.Command, entry *journal.Entry) error {
	header := cmd.Header()
	client := w.backendFor(header)

	// 1. Announce the command before doing anything irreversible.
	w.setAgentStatus(ctx, header.AgentName, types.AgentStatusProcessing, map[string]string{
		"stage":  "initializing",
		"action": string(cmd.Action()),
	})
	w.reportProgress(ctx, client, header.AgentName, 95, "Orchestration started")

	// 2. Route.
	switch c := cmd.(type) {
	case *types.DeployCommand:
		return w.deployAgent(ctx, c, entry)
	case *types.UpdateCommand:
		return w.updateAgent(ctx, c, entry)
	case *types.RollbackCommand:
		return w.rollbackAgent(ctx, c, entry)
	case *types.RebuildCommand:
		return w.rebuildAgent(ctx, c, entry)
	default:
		return fmt.Errorf("%w: %q", types.ErrUnknownAction, cmd.Action())
	}
}

// deployAgent builds an agent image from its uploaded files (or a git
// clone) and deploys it for the first time.
func (w *Worker) deployAgent(ctx context.Context, cmd *types.DeployCommand, entry *journal.Entry) error {
	start := w.clock()
	ts := start.Unix()
	client := w.backendFor(cmd.Header())

	// 1. The upload path may encode a version suffix; first deploys without
	// one land as 1.0.0. Downloads stay unqualified in that case, the
	// synthesised default names no stored upload.
	agentVersion := versionFromPath(cmd.AgentPath)
	downloadVersion := pathVersion(cmd.AgentPath)
	tag := fmt.Sprintf("v%d", ts)

	// 2-4. Build the image.
	buildID, err := w.buildImage(ctx, &buildSpec{
		header:          cmd.Header(),
		version:         agentVersion,
		downloadVersion: downloadVersion,
		tag:             tag,
		timestamp:       ts,
		gitURL:          cmd.GitURL,
		statusLabel:     types.AgentStatusBuilding,
	}, entry)
	if err != nil {
		return err
	}

	// 5-6. Deploy, register, grant permissions.
	outcome, err := w.deployAndRegister(ctx, &deploySpec{
		header:          cmd.Header(),
		version:         agentVersion,
		downloadVersion: downloadVersion,
		image:           w.imageRef(cmd.AgentName, tag),
		timestamp:       ts,
		buildID:         buildID,
		webhookURL:      cmd.WebhookURL,
	}, entry)
	if err != nil {
		return err
	}

	// 7-8. Completion: running status, full progress, version flipped active.
	w.setAgentStatus(ctx, cmd.AgentName, types.AgentStatusRunning, map[string]string{
		"deployment": outcome.deploymentName,
		"url":        outcome.publicURL,
		"version":    agentVersion,
	})
	permissions := outcome.permissionsCreated
	client.UpdateUploadStatus(ctx, cmd.AgentName, &types.UploadStatusUpdate{
		Status:                types.UploadStateCompleted,
		ProgressPercentage:    100,
		StatusMessage:         "Agent deployed",
		OrchestrationDuration: w.clock().Sub(start).Seconds(),
		PermissionsCreated:    &permissions,
	})
	client.UpdateRegistryVersionStatus(ctx, cmd.AgentName, types.VersionStatusActive)

	w.log.Info().
		Str("agent", cmd.AgentName).
		Str("deployment", outcome.deploymentName).
		Str("url", outcome.publicURL).
		Str("version", agentVersion).
		Msg("Agent deployed")
	return nil
}

// updateAgent builds the new version and shifts the agent onto it. The
// cluster's native rolling update does the heavy lifting; blue-green is
// accepted but applied the same way.
func (w *Worker) updateAgent(ctx context.Context, cmd *types.UpdateCommand, entry *journal.Entry) error {
	start := w.clock()
	ts := start.Unix()
	client := w.backendFor(cmd.Header())

	newVersion := cmd.NewVersion
	if newVersion == "" {
		newVersion = versionFromPath(cmd.AgentPath)
	}
	// Qualify downloads only by a version the command or path actually
	// names; the 1.0.0 default would miss the upload.
	downloadVersion := cmd.NewVersion
	if downloadVersion == "" {
		downloadVersion = pathVersion(cmd.AgentPath)
	}
	if cmd.Strategy == types.UpdateStrategyBlueGreen {
		w.log.Info().
			Str("agent", cmd.AgentName).
			Msg("Blue-green strategy requested, applying as rolling update")
	}

	w.setAgentStatus(ctx, cmd.AgentName, types.AgentStatusUpdating, map[string]string{
		"from_version": cmd.PreviousVersion,
		"to_version":   newVersion,
	})

	tag := fmt.Sprintf("v%d", ts)
	buildID, err := w.buildImage(ctx, &buildSpec{
		header:          cmd.Header(),
		version:         newVersion,
		downloadVersion: downloadVersion,
		tag:             tag,
		timestamp:       ts,
		gitURL:          cmd.GitURL,
		statusLabel:     types.AgentStatusUpdating,
	}, entry)
	if err != nil {
		return err
	}

	outcome, err := w.deployAndRegister(ctx, &deploySpec{
		header:          cmd.Header(),
		version:         newVersion,
		downloadVersion: downloadVersion,
		image:           w.imageRef(cmd.AgentName, tag),
		timestamp:       ts,
		buildID:         buildID,
		webhookURL:      cmd.WebhookURL,
	}, entry)
	if err != nil {
		return err
	}

	// Reap the replaced deployments, keeping only the one just rolled out.
	if cmd.CleanupOld && cmd.PreviousVersion != "" {
		reaped := w.versions.CleanupOldDeployments(ctx, cmd.AgentID, "", 1)
		if reaped > 0 {
			w.publishEvent(events.EventDeploymentReaped, cmd.AgentName, "reaped old deployments", map[string]string{
				"count": strconv.Itoa(reaped),
			})
		}
	}

	// The update-specific label lands first, then the general running state.
	w.setAgentStatus(ctx, cmd.AgentName, types.AgentStatusUpdated, map[string]string{
		"version":    newVersion,
		"deployment": outcome.deploymentName,
	})
	w.setAgentStatus(ctx, cmd.AgentName, types.AgentStatusRunning, map[string]string{
		"deployment": outcome.deploymentName,
		"url":        outcome.publicURL,
		"version":    newVersion,
	})

	permissions := outcome.permissionsCreated
	client.UpdateUploadStatus(ctx, cmd.AgentName, &types.UploadStatusUpdate{
		Status:                types.UploadStateCompleted,
		ProgressPercentage:    100,
		StatusMessage:         fmt.Sprintf("Agent updated to %s", newVersion),
		OrchestrationDuration: w.clock().Sub(start).Seconds(),
		PermissionsCreated:    &permissions,
		UploadHistory: []types.UploadHistoryEntry{{
			Version:    newVersion,
			Filename:   historyFilename(cmd.AgentPath, cmd.UploadType),
			UploadedAt: start.UTC(),
		}},
	})
	client.UpdateRegistryVersionStatus(ctx, cmd.AgentName, types.VersionStatusActive)

	w.log.Info().
		Str("agent", cmd.AgentName).
		Str("from_version", cmd.PreviousVersion).
		Str("to_version", newVersion).
		Str("deployment", outcome.deploymentName).
		Msg("Agent updated")
	return nil
}

// rollbackAgent redeploys a previously built image without a rebuild
func (w *Worker) rollbackAgent(ctx context.Context, cmd *types.RollbackCommand, entry *journal.Entry) error {
	start := w.clock()
	ts := start.Unix()
	client := w.backendFor(cmd.Header())

	// 1. Work out which version to roll back to. A missing target falls
	// back to the newest older version the registry history knows.
	target := cmd.TargetVersion
	if target == "" {
		reg, err := client.GetRegistryEntry(ctx, cmd.AgentName)
		if err != nil {
			return fmt.Errorf("no target version and registry lookup failed: %w", err)
		}
		target = version.PreviousActive(reg.VersionHistory, cmd.CurrentVersion)
		if target == "" {
			return fmt.Errorf("no previous version to roll back to for %s", cmd.AgentName)
		}
		w.log.Info().
			Str("agent", cmd.AgentName).
			Str("target_version", target).
			Msg("Resolved rollback target from registry history")
	}

	w.setAgentStatus(ctx, cmd.AgentName, types.AgentStatusRollingBack, map[string]string{
		"from_version": cmd.CurrentVersion,
		"to_version":   target,
	})
	w.reportProgress(ctx, client, cmd.AgentName, 96, fmt.Sprintf("Resolving version %s", target))

	// 2. Resolve the target to the immutable tag its build produced.
	tag := w.versions.ResolveImageTag(ctx, cmd.AgentID, target)

	// 3-4. Deploy the old image and re-point the registry at the new URL.
	outcome, err := w.deployAndRegister(ctx, &deploySpec{
		header:          cmd.Header(),
		version:         target,
		downloadVersion: target,
		image:           w.imageRef(cmd.AgentName, tag),
		timestamp:       ts,
	}, entry)
	if err != nil {
		return err
	}

	// 5. Reap deployments of the version being rolled away from.
	if cmd.CurrentVersion != "" {
		reaped := w.versions.CleanupOldDeployments(ctx, cmd.AgentID, "", 1)
		if reaped > 0 {
			w.publishEvent(events.EventDeploymentReaped, cmd.AgentName, "reaped rolled-back deployments", map[string]string{
				"count": strconv.Itoa(reaped),
			})
		}
	}

	w.setAgentStatus(ctx, cmd.AgentName, types.AgentStatusRolledBack, map[string]string{
		"version":    target,
		"deployment": outcome.deploymentName,
		"url":        outcome.publicURL,
	})
	permissions := outcome.permissionsCreated
	client.UpdateUploadStatus(ctx, cmd.AgentName, &types.UploadStatusUpdate{
		Status:                types.UploadStateCompleted,
		ProgressPercentage:    100,
		StatusMessage:         fmt.Sprintf("Rolled back to %s", target),
		OrchestrationDuration: w.clock().Sub(start).Seconds(),
		PermissionsCreated:    &permissions,
	})
	client.UpdateRegistryVersionStatus(ctx, cmd.AgentName, types.VersionStatusActive)
	w.publishEvent(events.EventRollbackCompleted, cmd.AgentName, "rolled back to "+target, map[string]string{
		"from_version": cmd.CurrentVersion,
		"to_version":   target,
		"image_tag":    tag,
	})

	w.log.Info().
		Str("agent", cmd.AgentName).
		Str("from_version", cmd.CurrentVersion).
		Str("to_version", target).
		Str("image_tag", tag).
		Msg("Agent rolled back")
	return nil
}

// rebuildAgent rebuilds the agent's current files in place under a
// rebuild-stamped tag and rolls the result out.
func (w *Worker) rebuildAgent(ctx context.Context, cmd *types.RebuildCommand, entry *journal.Entry) error {
	start := w.clock()
	ts := start.Unix()
	client := w.backendFor(cmd.Header())

	rebuildVersion := cmd.Version
	if rebuildVersion == "" {
		rebuildVersion = versionFromPath(cmd.AgentPath)
	}
	downloadVersion := cmd.Version
	if downloadVersion == "" {
		downloadVersion = pathVersion(cmd.AgentPath)
	}

	tag := fmt.Sprintf("v%s-rebuild-%d", rebuildVersion, ts)
	buildID, err := w.buildImage(ctx, &buildSpec{
		header:          cmd.Header(),
		version:         rebuildVersion,
		downloadVersion: downloadVersion,
		tag:             tag,
		timestamp:       ts,
		statusLabel:     types.AgentStatusRebuilding,
	}, entry)
	if err != nil {
		return err
	}

	outcome, err := w.deployAndRegister(ctx, &deploySpec{
		header:          cmd.Header(),
		version:         rebuildVersion,
		downloadVersion: downloadVersion,
		image:           w.imageRef(cmd.AgentName, tag),
		timestamp:       ts,
		buildID:         buildID,
	}, entry)
	if err != nil {
		return err
	}

	// Reap prior deployments of this agent, keeping the fresh rebuild.
	reaped := w.versions.CleanupOldDeployments(ctx, cmd.AgentID, "", 1)
	if reaped > 0 {
		w.publishEvent(events.EventDeploymentReaped, cmd.AgentName, "reaped pre-rebuild deployments", map[string]string{
			"count": strconv.Itoa(reaped),
		})
	}

	w.setAgentStatus(ctx, cmd.AgentName, types.AgentStatusRebuilt, map[string]string{
		"version":    rebuildVersion,
		"deployment": outcome.deploymentName,
		"url":        outcome.publicURL,
	})
	permissions := outcome.permissionsCreated
	client.UpdateUploadStatus(ctx, cmd.AgentName, &types.UploadStatusUpdate{
		Status:                types.UploadStateCompleted,
		ProgressPercentage:    100,
		StatusMessage:         fmt.Sprintf("Agent rebuilt at %s", rebuildVersion),
		OrchestrationDuration: w.clock().Sub(start).Seconds(),
		PermissionsCreated:    &permissions,
	})
	client.UpdateRegistryVersionStatus(ctx, cmd.AgentName, types.VersionStatusActive)

	w.log.Info().
		Str("agent", cmd.AgentName).
		Str("version", rebuildVersion).
		Str("deployment", outcome.deploymentName).
		Msg("Agent rebuilt")
	return nil
}

// buildImage records the build, stages observability, submits the cluster
// build job, and waits for it. Returns the backend build record id, which
// may be empty when the backend is unreachable.
func (w *Worker) buildImage(ctx context.Context, spec *buildSpec, entry *journal.Entry) (string, error) {
	header := spec.header
	client := w.backendFor(header)
	job := jobName(header.AgentName, spec.timestamp)
	image := w.imageRef(header.AgentName, spec.tag)

	// 1. Durable build record. The journal remembers the id so a redelivered
	// message updates the same record instead of minting a second one.
	buildID := ""
	if entry != nil {
		buildID = entry.BuildID
	}
	if buildID == "" {
		buildID = client.CreateBuildRecord(ctx, &types.BuildRecord{
			AgentID:        header.AgentID,
			VersionTag:     spec.version,
			ImageReference: image,
			Status:         types.BuildStateBuilding,
			K8sJobName:     job,
			VersionMapping: &types.VersionMapping{
				SemanticVersion: spec.version,
				ImageTag:        spec.tag,
				Timestamp:       w.clock().UTC(),
			},
		})
		w.saveJournal(entry, func(e *journal.Entry) { e.BuildID = buildID })
	}

	w.setAgentStatus(ctx, header.AgentName, spec.statusLabel, map[string]string{
		"stage": "building",
		"job":   job,
	})
	w.reportProgress(ctx, client, header.AgentName, 96, "Building agent image")
	w.publishEvent(events.EventBuildStarted, header.AgentName, "build "+job+" submitted", map[string]string{
		"job":   job,
		"image": image,
	})

	// 2. Observability staging. Any failure here falls back to the raw
	// uploaded files; instrumentation is never worth failing a build over.
	// Git-sourced builds clone inside the job and have no files to stage.
	filesConfigMap := ""
	if spec.gitURL == "" && w.stager != nil {
		name, err := w.stager.Stage(ctx, header.AgentName, spec.downloadVersion, spec.timestamp)
		if err != nil {
			w.log.Warn().
				Err(err).
				Str("agent", header.AgentName).
				Msg("Observability staging failed, building uninstrumented files")
		} else {
			filesConfigMap = name
		}
	}

	// 3. Submit the build job.
	err := w.driver.CreateBuildJob(ctx, &cluster.BuildJobSpec{
		JobName:          job,
		AgentID:          header.AgentID,
		ImageDestination: image,
		GitURL:           spec.gitURL,
		FilesConfigMap:   filesConfigMap,
		ContextPath:      header.AgentPath,
	})
	if err != nil {
		w.recordBuildFailure(ctx, client, header, buildID, job, err)
		return buildID, fmt.Errorf("failed to create build job: %w", err)
	}

	// 4. Wait for the job to finish.
	if err := w.waitForBuild(ctx, job); err != nil {
		w.recordBuildFailure(ctx, client, header, buildID, job, err)
		return buildID, err
	}

	client.UpdateBuildStatus(ctx, buildID, &types.BuildStatusUpdate{
		AgentID: header.AgentID,
		Status:  types.BuildStateSuccess,
	})
	metrics.BuildsTotal.WithLabelValues("success").Inc()
	w.publishEvent(events.EventBuildSucceeded, header.AgentName, "build "+job+" succeeded", map[string]string{
		"job":   job,
		"image": image,
	})
	return buildID, nil
}

func (w *Worker) recordBuildFailure(ctx context.Context, client *backend.Client, header *types.CommandHeader, buildID, job string, cause error) {
	client.UpdateBuildStatus(ctx, buildID, &types.BuildStatusUpdate{
		AgentID:      header.AgentID,
		Status:       types.BuildStateFailed,
		ErrorMessage: cause.Error(),
	})
	metrics.BuildsTotal.WithLabelValues("failure").Inc()
	w.publishEvent(events.EventBuildFailed, header.AgentName, cause.Error(), map[string]string{
		"job": job,
	})
}

// waitForBuild polls the job until it succeeds, fails, or the ceiling is
// hit. Unknown statuses count as still running so a flapping cluster API
// cannot fail a build that is actually progressing.
func (w *Worker) waitForBuild(ctx context.Context, job string) error {
	started := w.clock()
	deadline := started.Add(w.buildTimeout)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		jobStatus, err := w.driver.GetJobStatus(ctx, job)
		if err != nil {
			w.log.Warn().Err(err).Str("job", job).Msg("Job status check failed, retrying")
		}

		switch jobStatus {
		case types.JobStatusSucceeded:
			metrics.BuildWaitSeconds.Observe(w.clock().Sub(started).Seconds())
			return nil
		case types.JobStatusFailed:
			// The exact message is a contract: the backend surfaces it to
			// users verbatim.
			return fmt.Errorf("Build job %s failed", job)
		}

		if w.clock().After(deadline) {
			return fmt.Errorf("build job %s timed out after %s", job, w.buildTimeout)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("build wait interrupted: %w", ctx.Err())
		}
	}
}

// deployAndRegister rolls the image out, registers the agent, and grants
// owner permissions. Used by every flow; rollback passes no build id.
func (w *Worker) deployAndRegister(ctx context.Context, spec *deploySpec, entry *journal.Entry) (*deployOutcome, error) {
	header := spec.header
	client := w.backendFor(header)
	name := deploymentName(header.AgentName, spec.timestamp)
	url := w.publicURL(name)

	w.setAgentStatus(ctx, header.AgentName, types.AgentStatusDeploying, map[string]string{
		"deployment": name,
		"image":      spec.image,
	})
	w.reportProgress(ctx, client, header.AgentName, 97, "Deploying agent")

	// 1. Durable deployment record, journal-guarded like the build record.
	deploymentID := ""
	if entry != nil {
		deploymentID = entry.DeploymentID
	}
	if deploymentID == "" {
		deploymentID = client.CreateDeploymentRecord(ctx, &types.DeploymentRecord{
			AgentID:           header.AgentID,
			BuildID:           spec.buildID,
			Status:            types.DeploymentStateStarting,
			K8sDeploymentName: name,
			Namespace:         w.namespace,
		})
		w.saveJournal(entry, func(e *journal.Entry) { e.DeploymentID = deploymentID })
	}

	// 2. Roll out. Env carries the agent identity plus whatever the
	// observability stack wants injected.
	env := map[string]string{
		"AGENT_NAME": header.AgentName,
	}
	if header.OwnerID != "" {
		env["OWNER_ID"] = header.OwnerID
	}
	if w.llmAPIKey != "" {
		env["LLM_API_KEY"] = w.llmAPIKey
	}
	if w.stager != nil {
		for k, v := range w.stager.EnvVars(header.AgentName) {
			env[k] = v
		}
	}
	if spec.webhookURL != "" && header.UploadType == types.UploadTypeN8NRegister {
		env["WEBHOOK_URL"] = spec.webhookURL
	}

	err := w.driver.DeployAgent(ctx, &cluster.DeploySpec{
		Name:    name,
		AgentID: header.AgentID,
		Image:   spec.image,
		Port:    w.agentPort,
		Env:     env,
	})
	if err != nil {
		client.UpdateDeploymentStatus(ctx, deploymentID, &types.DeploymentStatusUpdate{
			AgentID:      header.AgentID,
			Status:       types.DeploymentStateFailed,
			ErrorMessage: err.Error(),
		})
		return nil, fmt.Errorf("failed to deploy agent: %w", err)
	}
	w.publishEvent(events.EventDeploymentCreated, header.AgentName, "deployment "+name+" created", map[string]string{
		"deployment": name,
		"image":      spec.image,
	})

	// 3. Registry upsert from the resolved AgentCard. A failed upsert only
	// blocks the permissions step; the deployment is already serving.
	card := w.cards.Resolve(ctx, &agentcard.Request{
		AgentName:       header.AgentName,
		Version:         spec.version,
		DownloadVersion: spec.downloadVersion,
		PublicURL:       url,
		OwnerID:         header.OwnerID,
	})
	registered := entry != nil && entry.RegistryUpserted
	if !registered {
		registered = client.RegisterInRegistry(ctx, header.AgentName, card)
		if registered {
			metrics.RegistryUpsertsTotal.WithLabelValues("success").Inc()
			w.saveJournal(entry, func(e *journal.Entry) { e.RegistryUpserted = true })
		} else {
			metrics.RegistryUpsertsTotal.WithLabelValues("failure").Inc()
		}
	}

	// 4. Owner permissions. A missing owner or failed registration skips
	// the grant; neither fails the command.
	permissionsCreated := false
	if registered && header.OwnerID != "" {
		permissionsCreated = w.auth.CreateAgentPermissions(ctx, header.AgentID, header.OwnerID)
		if permissionsCreated {
			metrics.PermissionGrantsTotal.WithLabelValues("success").Inc()
		} else {
			metrics.PermissionGrantsTotal.WithLabelValues("failure").Inc()
		}
	}

	// 5. Finalize the deployment record with the serving URL.
	w.reportProgress(ctx, client, header.AgentName, 98, "Finalizing deployment")
	client.UpdateDeploymentStatus(ctx, deploymentID, &types.DeploymentStatusUpdate{
		AgentID:    header.AgentID,
		Status:     types.DeploymentStateRunning,
		ServiceURL: url,
	})

	return &deployOutcome{
		deploymentName:     name,
		deploymentID:       deploymentID,
		publicURL:          url,
		registered:         registered,
		permissionsCreated: permissionsCreated,
	}, nil
}

// failCommand records a definitive failure: statuses flip to the action's
// failed variant and the upload shows failed at zero progress. No retry is
// attempted; redelivery is the producer's responsibility.
func (w *Worker) failCommand(ctx context.Context, cmd types.Command, start time.Time, cause error) {
	header := cmd.Header()
	client := w.backendFor(header)
	label := failureLabel(cmd.Action())

	w.log.Error().
		Err(cause).
		Str("agent", header.AgentName).
		Str("action", string(cmd.Action())).
		Msg("Command failed")

	w.setAgentStatus(ctx, header.AgentName, label, map[string]string{
		"error": cause.Error(),
	})
	client.UpdateUploadStatus(ctx, header.AgentName, &types.UploadStatusUpdate{
		Status:                types.UploadStateFailed,
		ProgressPercentage:    0,
		StatusMessage:         "Orchestration failed",
		OrchestrationDuration: w.clock().Sub(start).Seconds(),
		ErrorDetails:          []string{cause.Error()},
	})
	w.publishEvent(events.EventCommandFailed, header.AgentName, cause.Error(), map[string]string{
		"action": string(cmd.Action()),
	})
}

// failureLabel maps an action to its failed agent-status variant
func failureLabel(action types.Action) string {
	switch action {
	case types.ActionUpdateAgent:
		return types.AgentStatusUpdateFailed
	case types.ActionRollbackAgent:
		return types.AgentStatusRollbackFailed
	case types.ActionRebuildAgent:
		return types.AgentStatusRebuildFailed
	default:
		return types.AgentStatusFailed
	}
}
