package version

import (
	"context"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/types"
)

// TagResolver is the backend surface the engine needs for version
// mapping lookups
type TagResolver interface {
	ResolveVersionTag(ctx context.Context, agentID, semanticVersion string) (string, error)
}

// Reaper is the cluster surface the engine needs for deployment cleanup
type Reaper interface {
	ListAgentDeployments(ctx context.Context, agentID string) ([]string, error)
	DeleteAgentDeployment(ctx context.Context, name string) error
}

// Engine resolves semantic versions to immutable image tags and decides
// which old deployments to reap
type Engine struct {
	backend TagResolver
	cluster Reaper
	log     zerolog.Logger
}

// NewEngine creates an engine over the given backend and cluster
func NewEngine(backend TagResolver, cluster Reaper) *Engine {
	return &Engine{
		backend: backend,
		cluster: cluster,
		log:     log.WithComponent("version"),
	}
}

// ResolveImageTag maps a semantic version onto the immutable image tag
// recorded when that version was built. On a mapping miss the engine
// synthesises v<semver> and logs: agents deployed before version mapping
// existed have no record, and their original tags followed that shape.
func (e *Engine) ResolveImageTag(ctx context.Context, agentID, semanticVersion string) string {
	fallback := "v" + semanticVersion

	if _, err := semver.NewVersion(semanticVersion); err != nil {
		e.log.Warn().
			Str("agent_id", agentID).
			Str("version", semanticVersion).
			Msg("Target is not a semantic version, resolving anyway")
	}

	tag, err := e.backend.ResolveVersionTag(ctx, agentID, semanticVersion)
	if err != nil {
		e.log.Warn().Err(err).
			Str("agent_id", agentID).
			Str("version", semanticVersion).
			Str("fallback", fallback).
			Msg("No version mapping, using synthesized tag")
		return fallback
	}

	e.log.Info().
		Str("agent_id", agentID).
		Str("version", semanticVersion).
		Str("image_tag", tag).
		Msg("Version mapping resolved")
	return tag
}

// CleanupOldDeployments reaps the agent's old deployments. When version
// is set, only deployments whose name encodes that version are
// considered; the newest keepLatest survivors (lexicographic order,
// which the -<timestamp> suffix makes chronological) are retained.
// Returns how many deployments were deleted; failures are counted and
// logged, never raised.
func (e *Engine) CleanupOldDeployments(ctx context.Context, agentID, version string, keepLatest int) int {
	names, err := e.cluster.ListAgentDeployments(ctx, agentID)
	if err != nil {
		e.log.Warn().Err(err).
			Str("agent_id", agentID).
			Msg("Deployment listing failed, skipping cleanup")
		return 0
	}

	names = append([]string(nil), names...)
	if version != "" {
		filtered := names[:0]
		for _, name := range names {
			if strings.Contains(name, "-v"+version+"-") || strings.HasSuffix(name, "-"+version) {
				filtered = append(filtered, name)
			}
		}
		names = filtered
	}

	sort.Strings(names)

	if keepLatest > 0 {
		if len(names) <= keepLatest {
			e.log.Debug().
				Str("agent_id", agentID).
				Int("deployments", len(names)).
				Int("keep_latest", keepLatest).
				Msg("Nothing to reap")
			return 0
		}
		names = names[:len(names)-keepLatest]
	}

	deleted, failed := 0, 0
	for _, name := range names {
		if err := e.cluster.DeleteAgentDeployment(ctx, name); err != nil {
			failed++
			e.log.Warn().Err(err).
				Str("deployment", name).
				Msg("Deployment reap failed")
			continue
		}
		deleted++
		metrics.DeploymentsReapedTotal.Inc()
	}

	e.log.Info().
		Str("agent_id", agentID).
		Str("version", version).
		Int("deleted", deleted).
		Int("failed", failed).
		Int("kept", keepLatest).
		Msg("Old deployments reaped")
	return deleted
}

// PreviousActive picks a rollback target from the registry's version
// history: the newest semantic version strictly below current that was
// ever active or archived. Failed and still-building versions are never
// offered. Returns the empty string when no candidate exists.
func PreviousActive(history []types.VersionHistoryEntry, current string) string {
	cur, curErr := semver.NewVersion(current)

	var best *semver.Version
	var bestRaw string
	for _, entry := range history {
		if entry.Version == current {
			continue
		}
		if entry.Status != types.VersionStatusActive && entry.Status != types.VersionStatusArchived {
			continue
		}
		v, err := semver.NewVersion(entry.Version)
		if err != nil {
			continue
		}
		if curErr == nil && !v.LessThan(cur) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestRaw = entry.Version
		}
	}
	return bestRaw
}
