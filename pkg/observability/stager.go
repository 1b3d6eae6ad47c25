package observability

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/slipway-sh/slipway/pkg/archive"
	"github.com/slipway-sh/slipway/pkg/log"
)

// Downloader is the backend surface the stager needs
type Downloader interface {
	DownloadAgentFiles(ctx context.Context, agentName, version string) ([]byte, error)
}

// ConfigMapPublisher is the cluster surface the stager needs
type ConfigMapPublisher interface {
	CreateConfigMapWithFiles(ctx context.Context, name string, data map[string]string) error
}

// Config controls whether and how source trees are instrumented
type Config struct {
	// Enabled turns the whole staging step on
	Enabled bool

	// TracingEnabled runs the injector over the tree and emits OTEL
	// env vars on deployments
	TracingEnabled bool

	// InjectorBin is the external binary that rewrites a source tree
	// in place
	InjectorBin string

	// OTLPEndpoint is where instrumented agents ship their traces
	OTLPEndpoint string
}

// Stager prepares an agent's source tree for building: download the
// upload, run the tracing injector over it, and publish the result as a
// config map the build job decodes.
type Stager struct {
	backend Downloader
	cluster ConfigMapPublisher
	cfg     Config
	log     zerolog.Logger
}

// NewStager creates a stager
func NewStager(backend Downloader, cluster ConfigMapPublisher, cfg Config) *Stager {
	return &Stager{
		backend: backend,
		cluster: cluster,
		cfg:     cfg,
		log:     log.WithComponent("observability"),
	}
}

// Stage runs the staging step for one build. It returns the name of the
// published config map, or "" with a nil error when staging is disabled.
// An empty version downloads the agent's latest upload. Any error means
// the caller should build from the raw upload instead; staging never
// fails a command.
//
// If the injector fails, or leaves the tree without a usable Dockerfile,
// the pristine upload is published instead of the instrumented tree.
func (s *Stager) Stage(ctx context.Context, agentName, version string, timestamp int64) (string, error) {
	if !s.cfg.Enabled || !s.cfg.TracingEnabled {
		return "", nil
	}

	data, err := s.backend.DownloadAgentFiles(ctx, agentName, version)
	if err != nil {
		return "", fmt.Errorf("failed to download agent files: %w", err)
	}

	dir, err := os.MkdirTemp("", "staging-*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := archive.ExtractTarGz(bytes.NewReader(data), dir); err != nil {
		return "", fmt.Errorf("failed to extract agent files: %w", err)
	}

	if !s.inject(ctx, dir, agentName) {
		// Republish the pristine tree, the builder still needs a source
		if err := os.RemoveAll(dir); err != nil {
			return "", fmt.Errorf("failed to reset scratch directory: %w", err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to reset scratch directory: %w", err)
		}
		if err := archive.ExtractTarGz(bytes.NewReader(data), dir); err != nil {
			return "", fmt.Errorf("failed to re-extract agent files: %w", err)
		}
	}

	files, err := encodeTree(dir)
	if err != nil {
		return "", fmt.Errorf("failed to encode source tree: %w", err)
	}

	name := fmt.Sprintf("agent-files-%s-%d", agentName, timestamp)
	if err := s.cluster.CreateConfigMapWithFiles(ctx, name, files); err != nil {
		return "", fmt.Errorf("failed to publish staged files: %w", err)
	}

	s.log.Info().
		Str("agent_name", agentName).
		Str("configmap", name).
		Int("files", len(files)).
		Msg("Source tree staged for build")
	return name, nil
}

// inject runs the external injector over the tree and validates its
// post-conditions. Returns false when the instrumented tree should not
// be used.
func (s *Stager) inject(ctx context.Context, dir, agentName string) bool {
	if s.cfg.InjectorBin == "" {
		return false
	}

	cmd := exec.CommandContext(ctx, s.cfg.InjectorBin, dir)
	cmd.Env = append(os.Environ(), "OTEL_EXPORTER_OTLP_ENDPOINT="+s.cfg.OTLPEndpoint)
	if out, err := cmd.CombinedOutput(); err != nil {
		s.log.Warn().Err(err).
			Str("agent_name", agentName).
			Str("output", strings.TrimSpace(string(out))).
			Msg("Tracing injection failed, using original files")
		return false
	}

	// The injector edits the Dockerfile in place; a missing or empty one
	// means it broke the build input
	info, err := os.Stat(filepath.Join(dir, "Dockerfile"))
	if err != nil || info.Size() == 0 {
		s.log.Warn().
			Str("agent_name", agentName).
			Msg("Injector left no usable Dockerfile, using original files")
		return false
	}
	return true
}

// EnvVars returns the observability environment for an agent container,
// or nil when tracing is off
func (s *Stager) EnvVars(agentName string) map[string]string {
	if !s.cfg.TracingEnabled || s.cfg.OTLPEndpoint == "" {
		return nil
	}
	return map[string]string{
		"OTEL_SERVICE_NAME":           agentName,
		"OTEL_EXPORTER_OTLP_ENDPOINT": s.cfg.OTLPEndpoint,
		"OTEL_TRACES_EXPORTER":        "otlp",
	}
}

// EncodeKey turns a relative file path into a config-map-safe key. Keys
// are base64 of the path with the characters the store rejects escaped;
// the build job's decode step reverses this exactly.
func EncodeKey(path string) string {
	enc := base64.StdEncoding.EncodeToString([]byte(path))
	enc = strings.ReplaceAll(enc, "=", "_eq_")
	enc = strings.ReplaceAll(enc, "+", "_plus_")
	enc = strings.ReplaceAll(enc, "/", "_slash_")
	return enc
}

func encodeTree(dir string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[EncodeKey(filepath.ToSlash(rel))] = base64.StdEncoding.EncodeToString(content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
