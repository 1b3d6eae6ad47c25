package agentcard

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/slipway-sh/slipway/pkg/archive"
	"github.com/slipway-sh/slipway/pkg/log"
)

// cardFileName is the manifest agents ship at the root of their upload
const cardFileName = "AgentCard.json"

// Downloader is the backend surface the resolver needs
type Downloader interface {
	DownloadAgentFiles(ctx context.Context, agentName, version string) ([]byte, error)
}

// Request identifies the agent and the deployment facts to overlay onto
// its card
type Request struct {
	AgentName string

	// Version is the semantic version stamped on the card
	Version string

	// DownloadVersion qualifies the tarball download; empty fetches the
	// latest upload
	DownloadVersion string

	PublicURL string
	OwnerID   string
}

// Resolver produces the registry document for an agent: the shipped
// AgentCard when there is one, a generated card when a generator is
// configured, a minimal card otherwise. Resolve never fails; a worse
// card beats no registration.
type Resolver struct {
	backend      Downloader
	generatorBin string
	llmAPIKey    string
	log          zerolog.Logger
}

// NewResolver creates a resolver. generatorBin and llmAPIKey may be
// empty, which disables generation.
func NewResolver(backend Downloader, generatorBin, llmAPIKey string) *Resolver {
	return &Resolver{
		backend:      backend,
		generatorBin: generatorBin,
		llmAPIKey:    llmAPIKey,
		log:          log.WithComponent("agentcard"),
	}
}

// Resolve returns the registry document for the agent. The source card's
// fields pass through verbatim; id, url, deployment_type, version and
// owner are stamped from the deployment itself.
func (r *Resolver) Resolve(ctx context.Context, req *Request) map[string]any {
	card := r.sourceCard(ctx, req)

	card["id"] = req.AgentName
	card["url"] = req.PublicURL
	card["deployment_type"] = "kubernetes"
	if req.OwnerID != "" {
		card["owner_id"] = req.OwnerID
	}
	if req.Version != "" {
		card["version"] = req.Version
	}
	return card
}

func (r *Resolver) sourceCard(ctx context.Context, req *Request) map[string]any {
	data, err := r.backend.DownloadAgentFiles(ctx, req.AgentName, req.DownloadVersion)
	if err != nil {
		r.log.Warn().Err(err).
			Str("agent_name", req.AgentName).
			Msg("Agent files unavailable, using minimal card")
		return minimalCard(req.AgentName)
	}

	dir, err := os.MkdirTemp("", "agentcard-*")
	if err != nil {
		r.log.Warn().Err(err).Msg("Scratch directory creation failed, using minimal card")
		return minimalCard(req.AgentName)
	}
	defer os.RemoveAll(dir)

	if err := archive.ExtractTarGz(bytes.NewReader(data), dir); err != nil {
		r.log.Warn().Err(err).
			Str("agent_name", req.AgentName).
			Msg("Agent archive extraction failed, using minimal card")
		return minimalCard(req.AgentName)
	}

	if card := r.shippedCard(dir, req.AgentName); card != nil {
		return card
	}
	if card := r.generateCard(ctx, dir, req.AgentName); card != nil {
		return card
	}
	return minimalCard(req.AgentName)
}

func (r *Resolver) shippedCard(dir, agentName string) map[string]any {
	data, err := os.ReadFile(filepath.Join(dir, cardFileName))
	if err != nil {
		return nil
	}

	var card map[string]any
	if err := json.Unmarshal(data, &card); err != nil {
		r.log.Warn().Err(err).
			Str("agent_name", agentName).
			Msg("Shipped AgentCard.json is malformed")
		return nil
	}

	r.log.Info().
		Str("agent_name", agentName).
		Msg("Using shipped AgentCard")
	return card
}

func (r *Resolver) generateCard(ctx context.Context, dir, agentName string) map[string]any {
	if r.generatorBin == "" || r.llmAPIKey == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, r.generatorBin, dir)
	cmd.Env = append(os.Environ(), "LLM_API_KEY="+r.llmAPIKey)

	out, err := cmd.Output()
	if err != nil {
		r.log.Warn().Err(err).
			Str("agent_name", agentName).
			Msg("AgentCard generation failed")
		return nil
	}

	var card map[string]any
	if err := json.Unmarshal(out, &card); err != nil {
		r.log.Warn().Err(err).
			Str("agent_name", agentName).
			Msg("AgentCard generator produced malformed output")
		return nil
	}

	r.log.Info().
		Str("agent_name", agentName).
		Msg("AgentCard generated from source analysis")
	return card
}

func minimalCard(agentName string) map[string]any {
	return map[string]any{
		"name":         agentName,
		"description":  "",
		"capabilities": map[string]any{},
		"skills":       []any{},
		"tools":        []any{},
		"prompts":      []any{},
		"version":      "1.0.0",
	}
}
