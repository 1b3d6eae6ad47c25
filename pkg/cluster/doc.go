/*
Package cluster drives the Kubernetes side of agent orchestration.

The Driver interface is the dispatcher's entire view of the cluster:
submit a build, poll it, deploy an image, list and delete an agent's
deployments, publish a file tree as a config map. KubernetesDriver is
the production implementation, scoped to one namespace.

# Architecture

	┌─────────────────────────────────────────────────────────┐
	│                      KubernetesDriver                   │
	│                                                         │
	│  CreateBuildJob ──► batchv1 Job (kaniko, one-shot)      │
	│  GetJobStatus   ──► Job counters -> coarse status       │
	│  DeployAgent    ──► appsv1 Deployment + ClusterIP svc   │
	│  ListAgent...   ──► label selector slipway.sh/agent     │
	│  DeleteAgent... ──► Deployment + Service, tolerant      │
	│  CreateConfigMapWithFiles ──► encoded source tree       │
	└─────────────────────────────────────────────────────────┘

# Build Jobs

Builds run kaniko with BackoffLimit 0: a failed build never restarts,
the dispatcher reads Failed > 0 and marks the command failed. Finished
jobs linger for an hour (TTLSecondsAfterFinished) for debugging, then
the cluster garbage-collects them.

The build context comes from one of three sources, in priority order:

  - GitURL: kaniko clones the repository itself
  - FilesConfigMap: an init container decodes the staged tree (base64
    content under escaped base64 path keys) into a shared workspace
  - ContextPath: the agent's raw upload on the shared uploads volume

Resubmitting an existing job name attaches to the running job instead
of failing. A worker that crashed between submit and ack can replay the
command and land in the same polling loop, waiting on the build it
already started.

# Deployments

DeployAgent is create-or-update: deploying onto an existing name patches
the pod template in place and Kubernetes performs its native rolling
update. Every deployment and service carries the slipway.sh/agent label
so the reap policy can enumerate an agent's instances without parsing
names.

# Status Mapping

	Succeeded > 0  ->  succeeded
	Failed    > 0  ->  failed
	Active    > 0  ->  active
	otherwise      ->  pending
	API error      ->  unknown (+ error)

Pollers treat unknown as still-running so a flapping API server does not
fail a healthy build.

# Usage

	driver, err := cluster.NewDriver(cfg.Namespace)
	if err != nil {
		return err
	}

	err = driver.CreateBuildJob(ctx, &cluster.BuildJobSpec{
		JobName:          "job-my-agent-1724500000",
		AgentID:          "my-agent",
		ImageDestination: "registry.local:5000/my-agent:v1724500000",
		GitURL:           cmd.GitURL,
	})

# See Also

  - pkg/worker for the polling loop and flow ordering
  - pkg/version for the reap policy built on List/Delete
  - pkg/observability for the config map encoding this package decodes
*/
package cluster
