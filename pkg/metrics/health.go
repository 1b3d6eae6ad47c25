package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// criticalComponents are the dependencies the worker cannot orchestrate
// without: the Redis instance behind the stream and status store, the
// backend API, and the cluster API. Readiness stays false until every one
// of them has registered healthy.
var criticalComponents = []string{"redis", "backend", "cluster"}

// componentState is the last recorded probe outcome for one dependency.
type componentState struct {
	healthy bool
	detail  string
	updated time.Time
}

// healthRegistry collects probe outcomes. The binary registers each
// dependency as it wires it; the re-probe loop overwrites outcomes as
// connections flap.
type healthRegistry struct {
	mu      sync.RWMutex
	state   map[string]componentState
	version string
	started time.Time
}

var registry = &healthRegistry{
	state:   make(map[string]componentState),
	started: time.Now(),
}

// Report is the body served by the health and readiness endpoints.
type Report struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime"`
	Timestamp  time.Time         `json:"timestamp"`
}

// SetVersion stamps the build version onto every health response.
func SetVersion(v string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.version = v
}

// RegisterComponent records a probe outcome for a named dependency.
// Registering an existing name overwrites the previous outcome.
func RegisterComponent(name string, healthy bool, detail string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.state[name] = componentState{
		healthy: healthy,
		detail:  detail,
		updated: time.Now(),
	}
}

// UpdateComponent records a later probe outcome for a dependency already
// registered at startup.
func UpdateComponent(name string, healthy bool, detail string) {
	RegisterComponent(name, healthy, detail)
}

// Health reports liveness of everything registered: healthy only while no
// component is failing.
func Health() Report {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	rep := registry.report("healthy")
	for name, comp := range registry.state {
		if comp.healthy {
			rep.Components[name] = "healthy"
			continue
		}
		rep.Status = "unhealthy"
		rep.Components[name] = "unhealthy: " + comp.detail
	}
	return rep
}

// Readiness reports whether the worker should be handed commands: every
// critical component must have registered and be healthy. Components
// outside the critical set never block readiness.
func Readiness() Report {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	rep := registry.report("ready")
	for _, name := range criticalComponents {
		comp, ok := registry.state[name]
		switch {
		case !ok:
			rep.Status = "not_ready"
			rep.Message = "waiting for " + name + " initialization"
			rep.Components[name] = "not registered"
		case !comp.healthy:
			rep.Status = "not_ready"
			rep.Message = "waiting for " + name
			rep.Components[name] = "not ready: " + comp.detail
		default:
			rep.Components[name] = "ready"
		}
	}
	return rep
}

// report assumes the caller holds at least a read lock.
func (r *healthRegistry) report(status string) Report {
	return Report{
		Status:     status,
		Components: make(map[string]string),
		Version:    r.version,
		Uptime:     time.Since(r.started).String(),
		Timestamp:  time.Now(),
	}
}

// HealthHandler serves /health: 200 while every registered component is
// healthy, 503 otherwise.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeReport(w, Health(), "unhealthy")
	}
}

// ReadyHandler serves /ready: 200 once all critical components are up,
// 503 until then.
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeReport(w, Readiness(), "not_ready")
	}
}

// LivenessHandler serves /live. The process answering is the check.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": time.Since(registry.started).String(),
		})
	}
}

func writeReport(w http.ResponseWriter, rep Report, badStatus string) {
	w.Header().Set("Content-Type", "application/json")
	if rep.Status == badStatus {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(rep)
}
