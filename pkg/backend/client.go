package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/types"
)

const (
	// defaultTimeout bounds every contract call
	defaultTimeout = 10 * time.Second

	// downloadHeaderTimeout bounds how long the download endpoint may take
	// to start responding
	downloadHeaderTimeout = 30 * time.Second

	// downloadTimeout bounds streaming the full tarball body
	downloadTimeout = 60 * time.Second
)

// Client talks to the backend REST API. Record and status operations
// return booleans or nullable identifiers and log their own failures:
// the backend being down must never wedge a command mid-flight.
type Client struct {
	base       string
	httpClient *http.Client
	downloader *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for the given base URL
func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		downloader: &http.Client{
			Timeout: downloadTimeout,
			Transport: &http.Transport{
				ResponseHeaderTimeout: downloadHeaderTimeout,
			},
		},
		log: log.WithComponent("backend"),
	}
}

// WithBase returns a client pointed at a different base URL, sharing the
// underlying HTTP clients. Commands may carry a base_url override for
// multi-tenant backends.
func (c *Client) WithBase(base string) *Client {
	if base == "" {
		return c
	}
	clone := *c
	clone.base = strings.TrimRight(base, "/")
	return &clone
}

// BaseURL returns the resolved base URL
func (c *Client) BaseURL() string {
	return c.base
}

// Ping probes the backend with a cheap request
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// UpdateUploadStatus reports upload progress for the agent's latest upload.
// Returns false on any failure; the caller continues regardless.
func (c *Client) UpdateUploadStatus(ctx context.Context, agentName string, update *types.UploadStatusUpdate) bool {
	path := fmt.Sprintf("/api/v1/upload-status/agent/%s/latest", url.PathEscape(agentName))
	if err := c.doJSON(ctx, http.MethodPut, path, update, nil); err != nil {
		c.log.Warn().Err(err).
			Str("agent_name", agentName).
			Str("status", string(update.Status)).
			Msg("Upload status update failed")
		return false
	}
	return true
}

// CreateBuildRecord creates a durable build record and returns its ID, or
// an empty string on failure.
func (c *Client) CreateBuildRecord(ctx context.Context, record *types.BuildRecord) string {
	var created struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/agents/build", record, &created); err != nil {
		c.log.Error().Err(err).
			Str("agent_id", record.AgentID).
			Str("job", record.K8sJobName).
			Msg("Build record creation failed")
		return ""
	}
	if created.MongoID != "" {
		return created.MongoID
	}
	return created.ID
}

// UpdateBuildStatus transitions a build record. A missing build ID (from a
// failed creation) is a silent no-op.
func (c *Client) UpdateBuildStatus(ctx context.Context, buildID string, update *types.BuildStatusUpdate) bool {
	if buildID == "" {
		return false
	}
	path := fmt.Sprintf("/api/v1/agents/build/%s/status", url.PathEscape(buildID))
	if err := c.doJSON(ctx, http.MethodPut, path, update, nil); err != nil {
		c.log.Warn().Err(err).
			Str("build_id", buildID).
			Str("status", string(update.Status)).
			Msg("Build status update failed")
		return false
	}
	return true
}

// CreateDeploymentRecord creates a durable deployment record and returns
// its ID, or an empty string on failure.
func (c *Client) CreateDeploymentRecord(ctx context.Context, record *types.DeploymentRecord) string {
	var created struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/agents/deploy", record, &created); err != nil {
		c.log.Error().Err(err).
			Str("agent_id", record.AgentID).
			Str("deployment", record.K8sDeploymentName).
			Msg("Deployment record creation failed")
		return ""
	}
	if created.MongoID != "" {
		return created.MongoID
	}
	return created.ID
}

// UpdateDeploymentStatus transitions a deployment record
func (c *Client) UpdateDeploymentStatus(ctx context.Context, deploymentID string, update *types.DeploymentStatusUpdate) bool {
	if deploymentID == "" {
		return false
	}
	path := fmt.Sprintf("/api/v1/agents/deployment/%s/status", url.PathEscape(deploymentID))
	if err := c.doJSON(ctx, http.MethodPut, path, update, nil); err != nil {
		c.log.Warn().Err(err).
			Str("deployment_id", deploymentID).
			Str("status", string(update.Status)).
			Msg("Deployment status update failed")
		return false
	}
	return true
}

// RegisterInRegistry upserts the agent's discoverable registry document.
// This is the one soft failure the dispatcher branches on: permissions are
// only granted for agents that actually registered.
func (c *Client) RegisterInRegistry(ctx context.Context, agentName string, card map[string]any) bool {
	path := fmt.Sprintf("/api/v1/registry/agent/%s", url.PathEscape(agentName))
	if err := c.doJSON(ctx, http.MethodPut, path, card, nil); err != nil {
		c.log.Error().Err(err).
			Str("agent_name", agentName).
			Msg("Registry upsert failed")
		return false
	}
	return true
}

// UpdateRegistryVersionStatus flips the status of the agent's current
// registry version (active, archived, failed).
func (c *Client) UpdateRegistryVersionStatus(ctx context.Context, agentName string, status types.VersionStatus) bool {
	path := fmt.Sprintf("/api/v1/registry/agent/%s/version/status", url.PathEscape(agentName))
	body := map[string]string{"status": string(status)}
	if err := c.doJSON(ctx, http.MethodPut, path, body, nil); err != nil {
		c.log.Warn().Err(err).
			Str("agent_name", agentName).
			Str("status", string(status)).
			Msg("Registry version status update failed")
		return false
	}
	return true
}

// GetRegistryEntry fetches the agent's registry document, including its
// version history.
func (c *Client) GetRegistryEntry(ctx context.Context, agentName string) (*types.RegistryEntry, error) {
	path := fmt.Sprintf("/api/v1/registry/agent/%s", url.PathEscape(agentName))
	var entry types.RegistryEntry
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &entry); err != nil {
		return nil, fmt.Errorf("failed to fetch registry entry: %w", err)
	}
	return &entry, nil
}

// ResolveVersionTag asks the backend which image tag was built for the
// given semantic version of the agent.
func (c *Client) ResolveVersionTag(ctx context.Context, agentID, semanticVersion string) (string, error) {
	q := url.Values{}
	q.Set("agent_id", agentID)
	q.Set("semantic_version", semanticVersion)
	path := "/api/v1/agents/build/version-mapping?" + q.Encode()

	var mapping struct {
		ImageTag string `json:"image_tag"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &mapping); err != nil {
		return "", fmt.Errorf("failed to resolve version mapping: %w", err)
	}
	if mapping.ImageTag == "" {
		return "", fmt.Errorf("no image tag mapped for %s@%s", agentID, semanticVersion)
	}
	return mapping.ImageTag, nil
}

// DownloadAgentFiles streams the agent's uploaded files as a gzipped
// tarball. Version is optional; empty means the latest upload.
func (c *Client) DownloadAgentFiles(ctx context.Context, agentName, version string) ([]byte, error) {
	path := fmt.Sprintf("/api/v1/agents/%s/download", url.PathEscape(agentName))
	if version != "" {
		path += "?version=" + url.QueryEscape(version)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := c.downloader.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download agent files: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent files download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent files: %w", err)
	}
	return data, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return nil
}
