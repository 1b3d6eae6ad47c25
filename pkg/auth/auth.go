package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipway-sh/slipway/pkg/log"
)

// permissionsTimeout is generous because the auth service provisions
// scoped API keys synchronously
const permissionsTimeout = 30 * time.Second

// Client grants deployed agents their runtime permissions through the
// auth service
type Client struct {
	base       string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for the given auth service base URL
func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		httpClient: &http.Client{
			Timeout: permissionsTimeout,
		},
		log: log.WithComponent("auth"),
	}
}

// CreateAgentPermissions provisions the agent's runtime permissions on
// behalf of its owner. Permissions are a convenience layer: failure is
// logged and reported as false, never raised, so a deployment completes
// even when the auth service is unavailable.
func (c *Client) CreateAgentPermissions(ctx context.Context, agentID, ownerID string) bool {
	if ownerID == "" {
		c.log.Debug().
			Str("agent_id", agentID).
			Msg("No owner on command, skipping permissions")
		return false
	}

	endpoint := fmt.Sprintf("%s/auth/agents/%s/permissions?owner_id=%s",
		c.base, url.PathEscape(agentID), url.QueryEscape(ownerID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		c.log.Error().Err(err).
			Str("agent_id", agentID).
			Msg("Permissions request construction failed")
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).
			Str("agent_id", agentID).
			Str("owner_id", ownerID).
			Msg("Permissions grant failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn().
			Int("status_code", resp.StatusCode).
			Str("agent_id", agentID).
			Str("owner_id", ownerID).
			Msg("Permissions grant rejected")
		return false
	}

	c.log.Info().
		Str("agent_id", agentID).
		Str("owner_id", ownerID).
		Msg("Agent permissions created")
	return true
}
