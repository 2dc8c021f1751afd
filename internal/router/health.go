package router

import (
	"time"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/backend"
)

// AppHealth is the diagnostic record for one application.
type AppHealth struct {
	App         string         `yaml:"app"                    json:"app"`
	Backends    []backend.Name `yaml:"backends"               json:"backends"`
	Health      action.Health  `yaml:"health"                 json:"health"`
	LastBackend string         `yaml:"last_backend,omitempty" json:"last_backend,omitempty"`
	SuccessRate float64        `yaml:"success_rate"           json:"success_rate"`
	Requests    int            `yaml:"requests"               json:"requests"`
}

// BackendHealth is the diagnostic record for one backend.
type BackendHealth struct {
	Name        backend.Name                      `yaml:"name"                 json:"name"`
	Health      action.Health                     `yaml:"health"               json:"health"`
	SuccessRate float64                           `yaml:"success_rate"         json:"success_rate"`
	Successes   int                               `yaml:"successes"            json:"successes"`
	Failures    int                               `yaml:"failures"             json:"failures"`
	LastError   string                            `yaml:"last_error,omitempty" json:"last_error,omitempty"`
	LastUsed    time.Time                         `yaml:"last_used,omitempty"  json:"last_used,omitempty"`
	Endpoints   map[string]backend.ReconnectState `yaml:"endpoints,omitempty"  json:"endpoints,omitempty"`
}

type endpointReporter interface {
	Endpoints() map[string]backend.ReconnectState
}

// AppHealthSummary reports, for each app, the backends able to serve it and
// how requests for it have fared. Apps never routed report unknown health.
func (r *Router) AppHealthSummary(apps []string) []AppHealth {
	out := make([]AppHealth, 0, len(apps))
	for _, app := range apps {
		h := AppHealth{App: app, Health: action.HealthUnknown}
		for _, name := range backend.Names() {
			if b, ok := r.backends[name]; ok && b.CanHandle(app, "") {
				h.Backends = append(h.Backends, name)
			}
		}

		r.mu.Lock()
		st, ok := r.apps[appKey(app)]
		if ok {
			h.LastBackend = st.lastBackend
		}
		r.mu.Unlock()

		if ok {
			stats := st.counters.Stats()
			h.Health = st.counters.Health()
			h.SuccessRate = stats.SuccessRate
			h.Requests = stats.Successes + stats.Failures
		}
		out = append(out, h)
	}
	return out
}

// GlobalHealthSummary reports every registered backend in canonical order.
func (r *Router) GlobalHealthSummary() []BackendHealth {
	var out []BackendHealth
	for _, name := range backend.Names() {
		b, ok := r.backends[name]
		if !ok {
			continue
		}
		stats := b.Stats()
		h := BackendHealth{
			Name:        name,
			Health:      b.Health(),
			SuccessRate: stats.SuccessRate,
			Successes:   stats.Successes,
			Failures:    stats.Failures,
			LastError:   stats.LastError,
			LastUsed:    stats.LastUsed,
		}
		if er, ok := b.(endpointReporter); ok {
			h.Endpoints = er.Endpoints()
		}
		out = append(out, h)
	}
	return out
}
