package cluster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/utils/ptr"

	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/types"
)

const (
	// LabelAgent marks every resource with the agent it belongs to
	LabelAgent = "slipway.sh/agent"

	labelApp       = "app"
	labelManagedBy = "app.kubernetes.io/managed-by"
	managedByValue = "slipway"

	// defaultBuilderImage runs the in-cluster image build
	defaultBuilderImage = "gcr.io/kaniko-project/executor:v1.23.2"

	// defaultUploadsClaim is the shared volume holding raw agent uploads
	defaultUploadsClaim = "agent-uploads"

	// jobTTLSeconds keeps finished build jobs around for an hour of
	// debugging before the cluster garbage-collects them
	jobTTLSeconds = 3600
)

// KubernetesDriver implements Driver against a single namespace of a
// Kubernetes cluster. Build jobs run kaniko; deployments get a matching
// ClusterIP service for the gateway to route to.
type KubernetesDriver struct {
	client       kubernetes.Interface
	namespace    string
	builderImage string
	uploadsClaim string
	log          zerolog.Logger
}

// NewDriver connects to the cluster the process runs in, falling back to
// the local kubeconfig outside a pod.
func NewDriver(namespace string) (*KubernetesDriver, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig := os.Getenv("KUBECONFIG")
		if kubeconfig == "" {
			home, herr := os.UserHomeDir()
			if herr != nil {
				return nil, fmt.Errorf("failed to locate kubeconfig: %w", err)
			}
			kubeconfig = filepath.Join(home, ".kube", "config")
		}
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load cluster config: %w", err)
		}
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster client: %w", err)
	}
	return NewDriverWithClient(client, namespace), nil
}

// NewDriverWithClient wraps an existing clientset, used by tests and by
// embedders that manage their own cluster config
func NewDriverWithClient(client kubernetes.Interface, namespace string) *KubernetesDriver {
	return &KubernetesDriver{
		client:       client,
		namespace:    namespace,
		builderImage: defaultBuilderImage,
		uploadsClaim: defaultUploadsClaim,
		log:          log.WithComponent("cluster"),
	}
}

// Namespace returns the namespace the driver operates in
func (d *KubernetesDriver) Namespace() string {
	return d.namespace
}

// Ping verifies the cluster API is reachable
func (d *KubernetesDriver) Ping(ctx context.Context) error {
	_, err := d.client.CoreV1().Namespaces().Get(ctx, d.namespace, metav1.GetOptions{})
	return err
}

// CreateBuildJob submits a kaniko job building the agent image and
// pushing it to the configured destination. The job is one-shot: any
// failure is terminal and surfaces through GetJobStatus.
func (d *KubernetesDriver) CreateBuildJob(ctx context.Context, spec *BuildJobSpec) error {
	job := d.buildJob(spec)

	_, err := d.client.BatchV1().Jobs(d.namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		// Resubmitting an existing job name attaches to the running job
		// instead of failing, so the call is safe to retry.
		if apierrors.IsAlreadyExists(err) {
			d.log.Info().Str("job", spec.JobName).Msg("Build job already submitted")
			return nil
		}
		return fmt.Errorf("failed to create build job %s: %w", spec.JobName, err)
	}

	d.log.Info().
		Str("job", spec.JobName).
		Str("image", spec.ImageDestination).
		Msg("Build job submitted")
	return nil
}

func (d *KubernetesDriver) buildJob(spec *BuildJobSpec) *batchv1.Job {
	builder := corev1.Container{
		Name:  "kaniko",
		Image: d.builderImage,
		Args: []string{
			"--destination=" + spec.ImageDestination,
			"--dockerfile=Dockerfile",
		},
	}

	var initContainers []corev1.Container
	var volumes []corev1.Volume

	switch {
	case spec.GitURL != "":
		builder.Args = append(builder.Args, "--context="+gitContext(spec.GitURL))

	case spec.FilesConfigMap != "":
		// The config map carries base64-encoded content under escaped
		// base64 keys; an init container materialises the tree into a
		// shared workspace before kaniko starts.
		builder.Args = append(builder.Args, "--context=dir:///workspace")
		builder.VolumeMounts = []corev1.VolumeMount{
			{Name: "workspace", MountPath: "/workspace"},
		}
		initContainers = []corev1.Container{{
			Name:    "decode-files",
			Image:   "busybox:1.36",
			Command: []string{"/bin/sh", "-c"},
			Args:    []string{decodeFilesScript},
			VolumeMounts: []corev1.VolumeMount{
				{Name: "encoded-files", MountPath: "/encoded"},
				{Name: "workspace", MountPath: "/workspace"},
			},
		}}
		volumes = []corev1.Volume{
			{
				Name: "encoded-files",
				VolumeSource: corev1.VolumeSource{
					ConfigMap: &corev1.ConfigMapVolumeSource{
						LocalObjectReference: corev1.LocalObjectReference{Name: spec.FilesConfigMap},
					},
				},
			},
			{
				Name:         "workspace",
				VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
			},
		}

	default:
		builder.Args = append(builder.Args,
			"--context=dir:///uploads/"+strings.TrimLeft(cleanContextPath(spec.ContextPath), "/"))
		builder.VolumeMounts = []corev1.VolumeMount{
			{Name: "uploads", MountPath: "/uploads", ReadOnly: true},
		}
		volumes = []corev1.Volume{{
			Name: "uploads",
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
					ClaimName: d.uploadsClaim,
					ReadOnly:  true,
				},
			},
		}}
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.JobName,
			Namespace: d.namespace,
			Labels: map[string]string{
				LabelAgent:     spec.AgentID,
				labelManagedBy: managedByValue,
			},
		},
		Spec: batchv1.JobSpec{
			TTLSecondsAfterFinished: ptr.To(int32(jobTTLSeconds)),
			BackoffLimit:            ptr.To(int32(0)),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						LabelAgent:     spec.AgentID,
						labelManagedBy: managedByValue,
					},
				},
				Spec: corev1.PodSpec{
					RestartPolicy:  corev1.RestartPolicyNever,
					InitContainers: initContainers,
					Containers:     []corev1.Container{builder},
					Volumes:        volumes,
				},
			},
		},
	}
}

// decodeFilesScript reverses the observability staging encoding: file
// names are base64 paths with =, + and / escaped for store key rules,
// file contents are base64.
const decodeFilesScript = `set -e
cd /encoded
for key in *; do
  [ -f "$key" ] || continue
  path=$(printf '%s' "$key" | sed -e 's/_eq_/=/g' -e 's/_plus_/+/g' -e 's|_slash_|/|g' | base64 -d)
  mkdir -p "/workspace/$(dirname "$path")"
  base64 -d "$key" > "/workspace/$path"
done`

func gitContext(url string) string {
	if strings.HasPrefix(url, "git://") {
		return url
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
	return "git://" + trimmed
}

func cleanContextPath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(p))
}

// GetJobStatus maps the job's counters onto the coarse status set the
// dispatcher polls on. API errors return JobStatusUnknown alongside the
// error so callers can keep waiting through transient flaps.
func (d *KubernetesDriver) GetJobStatus(ctx context.Context, jobName string) (types.JobStatus, error) {
	job, err := d.client.BatchV1().Jobs(d.namespace).Get(ctx, jobName, metav1.GetOptions{})
	if err != nil {
		return types.JobStatusUnknown, fmt.Errorf("failed to get job %s: %w", jobName, err)
	}

	switch {
	case job.Status.Succeeded > 0:
		return types.JobStatusSucceeded, nil
	case job.Status.Failed > 0:
		return types.JobStatusFailed, nil
	case job.Status.Active > 0:
		return types.JobStatusActive, nil
	default:
		return types.JobStatusPending, nil
	}
}

// DeployAgent creates the agent's deployment and service, or updates
// them in place when a deployment with the same name already exists
func (d *KubernetesDriver) DeployAgent(ctx context.Context, spec *DeploySpec) error {
	if err := d.applyDeployment(ctx, d.buildDeployment(spec)); err != nil {
		return err
	}
	if err := d.applyService(ctx, d.buildService(spec)); err != nil {
		return err
	}

	d.log.Info().
		Str("deployment", spec.Name).
		Str("image", spec.Image).
		Msg("Agent deployed")
	return nil
}

func (d *KubernetesDriver) buildDeployment(spec *DeploySpec) *appsv1.Deployment {
	labels := map[string]string{
		labelApp:       spec.Name,
		LabelAgent:     spec.AgentID,
		labelManagedBy: managedByValue,
	}

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: d.namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(int32(1)),
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{labelApp: spec.Name},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: labels,
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  "agent",
						Image: spec.Image,
						Env:   envVars(spec.Env),
						Ports: []corev1.ContainerPort{{
							Name:          "http",
							ContainerPort: spec.Port,
							Protocol:      corev1.ProtocolTCP,
						}},
					}},
				},
			},
		},
	}
}

func (d *KubernetesDriver) buildService(spec *DeploySpec) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: d.namespace,
			Labels: map[string]string{
				labelApp:       spec.Name,
				LabelAgent:     spec.AgentID,
				labelManagedBy: managedByValue,
			},
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: map[string]string{labelApp: spec.Name},
			Ports: []corev1.ServicePort{{
				Name:       "http",
				Port:       80,
				TargetPort: intstr.FromInt32(spec.Port),
				Protocol:   corev1.ProtocolTCP,
			}},
		},
	}
}

func (d *KubernetesDriver) applyDeployment(ctx context.Context, desired *appsv1.Deployment) error {
	deployments := d.client.AppsV1().Deployments(d.namespace)

	existing, err := deployments.Get(ctx, desired.Name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			if _, err := deployments.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
				return fmt.Errorf("failed to create deployment %s: %w", desired.Name, err)
			}
			return nil
		}
		return fmt.Errorf("failed to get deployment %s: %w", desired.Name, err)
	}

	existing.Labels = desired.Labels
	existing.Spec.Replicas = desired.Spec.Replicas
	existing.Spec.Template = desired.Spec.Template
	if _, err := deployments.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update deployment %s: %w", desired.Name, err)
	}
	return nil
}

func (d *KubernetesDriver) applyService(ctx context.Context, desired *corev1.Service) error {
	services := d.client.CoreV1().Services(d.namespace)

	existing, err := services.Get(ctx, desired.Name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			if _, err := services.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
				return fmt.Errorf("failed to create service %s: %w", desired.Name, err)
			}
			return nil
		}
		return fmt.Errorf("failed to get service %s: %w", desired.Name, err)
	}

	// ClusterIP is immutable, carry it over
	desired.Spec.ClusterIP = existing.Spec.ClusterIP
	existing.Labels = desired.Labels
	existing.Spec = desired.Spec
	if _, err := services.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update service %s: %w", desired.Name, err)
	}
	return nil
}

// ListAgentDeployments returns the names of every deployment labelled
// with the given agent
func (d *KubernetesDriver) ListAgentDeployments(ctx context.Context, agentID string) ([]string, error) {
	list, err := d.client.AppsV1().Deployments(d.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: LabelAgent + "=" + agentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments for %s: %w", agentID, err)
	}

	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.Name)
	}
	return names, nil
}

// DeleteAgentDeployment removes a deployment and its service. Resources
// that are already gone count as deleted.
func (d *KubernetesDriver) DeleteAgentDeployment(ctx context.Context, name string) error {
	policy := metav1.DeletePropagationBackground
	opts := metav1.DeleteOptions{PropagationPolicy: &policy}

	err := d.client.AppsV1().Deployments(d.namespace).Delete(ctx, name, opts)
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete deployment %s: %w", name, err)
	}

	err = d.client.CoreV1().Services(d.namespace).Delete(ctx, name, opts)
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete service %s: %w", name, err)
	}

	d.log.Info().Str("deployment", name).Msg("Agent deployment deleted")
	return nil
}

// CreateConfigMapWithFiles publishes the encoded file tree, replacing
// the data wholesale if the config map already exists
func (d *KubernetesDriver) CreateConfigMapWithFiles(ctx context.Context, name string, data map[string]string) error {
	configMaps := d.client.CoreV1().ConfigMaps(d.namespace)

	desired := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: d.namespace,
			Labels: map[string]string{
				labelManagedBy: managedByValue,
			},
		},
		Data: data,
	}

	existing, err := configMaps.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			if _, err := configMaps.Create(ctx, desired, metav1.CreateOptions{}); err != nil {
				return fmt.Errorf("failed to create config map %s: %w", name, err)
			}
			return nil
		}
		return fmt.Errorf("failed to get config map %s: %w", name, err)
	}

	existing.Data = data
	if _, err := configMaps.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update config map %s: %w", name, err)
	}
	return nil
}

func envVars(env map[string]string) []corev1.EnvVar {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vars := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, corev1.EnvVar{Name: k, Value: env[k]})
	}
	return vars
}
