package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCreateAgentPermissions tests the grant call shape and its
// soft-failure behavior
func TestCreateAgentPermissions(t *testing.T) {
	tests := []struct {
		name    string
		ownerID string
		status  int
		want    bool
	}{
		{
			name:    "grant succeeds",
			ownerID: "user-123",
			status:  http.StatusCreated,
			want:    true,
		},
		{
			name:    "auth service rejects",
			ownerID: "user-123",
			status:  http.StatusForbidden,
			want:    false,
		},
		{
			name:    "missing owner skips the call",
			ownerID: "",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/auth/agents/agent-1/permissions", r.URL.Path)
				assert.Equal(t, tt.ownerID, r.URL.Query().Get("owner_id"))
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewClient(srv.URL)
			got := client.CreateAgentPermissions(context.Background(), "agent-1", tt.ownerID)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ownerID != "", called)
		})
	}
}

// TestCreateAgentPermissionsServiceDown tests that an unreachable auth
// service is reported as false, not an error
func TestCreateAgentPermissionsServiceDown(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	assert.False(t, client.CreateAgentPermissions(context.Background(), "agent-1", "user-123"))
}
