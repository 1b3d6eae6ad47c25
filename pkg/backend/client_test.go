package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/pkg/types"
)

// TestUpdateUploadStatus tests that upload progress reports hit the
// latest-upload endpoint with the full payload
func TestUpdateUploadStatus(t *testing.T) {
	var gotPath string
	var gotMethod string
	var gotBody types.UploadStatusUpdate

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ok := client.UpdateUploadStatus(context.Background(), "my-agent", &types.UploadStatusUpdate{
		Status:             types.UploadStateCompleted,
		ProgressPercentage: 100,
		StatusMessage:      "Agent deployed successfully",
	})

	assert.True(t, ok)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/api/v1/upload-status/agent/my-agent/latest", gotPath)
	assert.Equal(t, types.UploadStateCompleted, gotBody.Status)
	assert.Equal(t, 100, gotBody.ProgressPercentage)
}

// TestUpdateUploadStatusBackendDown tests that an unreachable backend
// yields false instead of an error
func TestUpdateUploadStatusBackendDown(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	ok := client.UpdateUploadStatus(context.Background(), "my-agent", &types.UploadStatusUpdate{
		Status: types.UploadStateFailed,
	})
	assert.False(t, ok)
}

// TestCreateBuildRecord tests build record creation and ID extraction
func TestCreateBuildRecord(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		wantID   string
	}{
		{
			name:     "mongo style id",
			status:   http.StatusCreated,
			response: `{"_id": "665f1c2e9b1e8a0001a1b2c3"}`,
			wantID:   "665f1c2e9b1e8a0001a1b2c3",
		},
		{
			name:     "plain id",
			status:   http.StatusOK,
			response: `{"id": "build-42"}`,
			wantID:   "build-42",
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			response: `{"detail": "database unavailable"}`,
			wantID:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/v1/agents/build", r.URL.Path)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			client := NewClient(srv.URL)
			id := client.CreateBuildRecord(context.Background(), &types.BuildRecord{
				AgentID:    "my-agent",
				VersionTag: "v1724500000",
				Status:     types.BuildStateBuilding,
				K8sJobName: "job-my-agent-1724500000",
			})
			assert.Equal(t, tt.wantID, id)
		})
	}
}

// TestUpdateBuildStatus tests build status transitions, including the
// no-op for a missing build ID
func TestUpdateBuildStatus(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/api/v1/agents/build/build-42/status", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	ok := client.UpdateBuildStatus(context.Background(), "build-42", &types.BuildStatusUpdate{
		Status: types.BuildStateSuccess,
	})
	assert.True(t, ok)
	assert.True(t, called)

	// Empty ID means record creation already failed upstream
	called = false
	ok = client.UpdateBuildStatus(context.Background(), "", &types.BuildStatusUpdate{
		Status: types.BuildStateSuccess,
	})
	assert.False(t, ok)
	assert.False(t, called)
}

// TestCreateDeploymentRecord tests deployment record creation
func TestCreateDeploymentRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/agents/deploy", r.URL.Path)

		var record types.DeploymentRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
		assert.Equal(t, "agent-my-agent-1724500000", record.K8sDeploymentName)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"_id": "deploy-7"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	id := client.CreateDeploymentRecord(context.Background(), &types.DeploymentRecord{
		AgentID:           "my-agent",
		BuildID:           "build-42",
		Status:            types.DeploymentStateStarting,
		K8sDeploymentName: "agent-my-agent-1724500000",
		Namespace:         "agents",
	})
	assert.Equal(t, "deploy-7", id)
}

// TestRegisterInRegistry tests the registry upsert and its failure signal
func TestRegisterInRegistry(t *testing.T) {
	var gotCard map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/registry/agent/my-agent", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotCard))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ok := client.RegisterInRegistry(context.Background(), "my-agent", map[string]any{
		"name":            "my-agent",
		"deployment_type": "kubernetes",
	})

	assert.True(t, ok)
	assert.Equal(t, "kubernetes", gotCard["deployment_type"])

	down := NewClient("http://127.0.0.1:1")
	assert.False(t, down.RegisterInRegistry(context.Background(), "my-agent", nil))
}

// TestUpdateRegistryVersionStatus tests version status flips in the registry
func TestUpdateRegistryVersionStatus(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/registry/agent/my-agent/version/status", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ok := client.UpdateRegistryVersionStatus(context.Background(), "my-agent", types.VersionStatusActive)

	assert.True(t, ok)
	assert.Equal(t, "active", gotBody["status"])
}

// TestGetRegistryEntry tests fetching the registry document with history
func TestGetRegistryEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/registry/agent/my-agent", r.URL.Path)
		json.NewEncoder(w).Encode(types.RegistryEntry{
			ID:      "my-agent",
			Version: "1.1.0",
			VersionHistory: []types.VersionHistoryEntry{
				{Version: "1.0.0", Status: types.VersionStatusArchived},
				{Version: "1.1.0", Status: types.VersionStatusActive},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	entry, err := client.GetRegistryEntry(context.Background(), "my-agent")

	require.NoError(t, err)
	assert.Equal(t, "1.1.0", entry.Version)
	assert.Len(t, entry.VersionHistory, 2)
}

// TestResolveVersionTag tests the semantic version to image tag lookup
func TestResolveVersionTag(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		wantTag  string
		wantErr  bool
	}{
		{
			name:     "mapped version",
			status:   http.StatusOK,
			response: `{"image_tag": "v1724400000"}`,
			wantTag:  "v1724400000",
		},
		{
			name:     "unknown version",
			status:   http.StatusNotFound,
			response: `{"detail": "not found"}`,
			wantErr:  true,
		},
		{
			name:     "empty mapping",
			status:   http.StatusOK,
			response: `{"image_tag": ""}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/agents/build/version-mapping", r.URL.Path)
				assert.Equal(t, "my-agent", r.URL.Query().Get("agent_id"))
				assert.Equal(t, "1.2.0", r.URL.Query().Get("semantic_version"))
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			client := NewClient(srv.URL)
			tag, err := client.ResolveVersionTag(context.Background(), "my-agent", "1.2.0")

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantTag, tag)
			}
		})
	}
}

// TestDownloadAgentFiles tests tarball downloads with and without an
// explicit version
func TestDownloadAgentFiles(t *testing.T) {
	payload := []byte("tarball-bytes")
	var gotVersion string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/agents/my-agent/download", r.URL.Path)
		gotVersion = r.URL.Query().Get("version")
		w.Write(payload)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	data, err := client.DownloadAgentFiles(context.Background(), "my-agent", "")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Empty(t, gotVersion)

	data, err = client.DownloadAgentFiles(context.Background(), "my-agent", "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "1.2.0", gotVersion)
}

// TestDownloadAgentFilesError tests that HTTP errors surface as errors
func TestDownloadAgentFilesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.DownloadAgentFiles(context.Background(), "ghost", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

// TestWithBase tests per-command base URL overrides
func TestWithBase(t *testing.T) {
	client := NewClient("http://backend-api:8000")

	assert.Equal(t, "http://backend-api:8000", client.BaseURL())
	assert.Equal(t, client, client.WithBase(""))

	override := client.WithBase("http://tenant.example.com/")
	assert.Equal(t, "http://tenant.example.com", override.BaseURL())
	assert.Equal(t, "http://backend-api:8000", client.BaseURL())
}
