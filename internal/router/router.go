// Package router picks which backend serves an action, falls back across
// backends on failure and on empty reads, and keeps per-app statistics.
package router

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/backend"
)

// preference lists, per action kind, the backends allowed to serve it in the
// order they are tried. Press and set-value are absent: their writers depend
// on which backend read the element, see backend.WritersFor.
var preference = map[action.Kind][]backend.Name{
	action.KindRead:        {backend.TreeWalk, backend.DebugProtocol, backend.PageScript, backend.OSScript},
	action.KindEvaluate:    {backend.DebugProtocol},
	action.KindListTargets: {backend.DebugProtocol},
	action.KindRunScript:   {backend.OSScript},
	action.KindPageScript:  {backend.PageScript},
}

type appStats struct {
	app         string
	lastBackend string
	counters    backend.Counters
}

// Router dispatches actions to backends.
type Router struct {
	backends map[backend.Name]backend.Backend
	log      zerolog.Logger

	mu   sync.Mutex
	apps map[string]*appStats
}

// New returns a Router over the given backends. Registering two backends
// with the same name keeps the last one.
func New(log zerolog.Logger, backends ...backend.Backend) *Router {
	r := &Router{
		backends: make(map[backend.Name]backend.Backend, len(backends)),
		log:      log.With().Str("component", "router").Logger(),
		apps:     make(map[string]*appStats),
	}
	for _, b := range backends {
		r.backends[b.Name()] = b
	}
	return r
}

// Backend returns the registered backend with the given name.
func (r *Router) Backend(name backend.Name) (backend.Backend, bool) {
	b, ok := r.backends[name]
	return b, ok
}

// Candidates returns the capable backends for a, in the order Route tries them.
// Element actions only go to backends that can address the snapshot named by
// a.Source.
func (r *Router) Candidates(a action.Action) []backend.Backend {
	names := preference[a.Kind]
	if a.Kind.TargetsElement() {
		names = backend.WritersFor(a.Source)
	}
	var out []backend.Backend
	for _, name := range names {
		b, ok := r.backends[name]
		if !ok || !b.CanHandle(a.App, a.BundleID) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Route executes a on the first capable backend that succeeds. When every
// candidate fails the last attempted backend's failure is returned. A
// successful read with no elements is retried once through an alternate
// backend chosen by application family.
func (r *Router) Route(a action.Action) action.Result {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	log := r.log.With().
		Str("request_id", a.ID).
		Str("kind", string(a.Kind)).
		Str("app", a.App).
		Logger()

	candidates := r.Candidates(a)
	if len(candidates) == 0 {
		res := action.Failure("", fmt.Errorf("no backend can %s for %q: %w", a.Kind, a.App, action.ErrBackendUnavailable))
		res.RequestID = a.ID
		log.Warn().Msg("no capable backend")
		r.record(a.App, res)
		return res
	}

	var res action.Result
	for _, b := range candidates {
		res = execute(b, a)
		if res.Success {
			break
		}
		log.Debug().
			Str("backend", res.BackendUsed).
			Str("error_class", action.Classify(res.Err)).
			Str("error", res.Error).
			Msg("backend failed")
	}

	if a.Kind.ReadsState() && res.Empty() {
		res = r.qualityFallback(a, res, log)
	}

	res.RequestID = a.ID
	r.record(a.App, res)
	if res.Success {
		log.Debug().Str("backend", res.BackendUsed).Msg("routed")
	} else {
		log.Warn().Str("backend", res.BackendUsed).Str("error", res.Error).Msg("all backends failed")
	}
	return res
}

// qualityFallback retries an empty read through page-script for browsers or
// os-script for everything else. It runs at most once per action.
func (r *Router) qualityFallback(a action.Action, orig action.Result, log zerolog.Logger) action.Result {
	alt := backend.OSScript
	if backend.IsBrowser(a.App, a.BundleID) {
		alt = backend.PageScript
	}
	if backend.BaseName(orig.BackendUsed) == alt {
		return orig
	}
	b, ok := r.backends[alt]
	if !ok || !b.CanHandle(a.App, a.BundleID) {
		log.Debug().Str("alternate", string(alt)).Msg("empty read, no alternate available")
		return orig
	}

	log.Info().
		Str("backend", orig.BackendUsed).
		Str("alternate", string(alt)).
		Msg("empty read, trying alternate backend")
	res := execute(b, a)
	if res.Success && !res.Empty() {
		return res
	}
	return orig
}

// execute converts a panicking backend into a failed result.
func execute(b backend.Backend, a action.Action) (res action.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = action.Failure(string(b.Name()), fmt.Errorf("backend panicked: %v", p))
		}
	}()
	return b.Execute(a)
}

func appKey(app string) string {
	return strings.ToLower(strings.TrimSpace(app))
}

func (r *Router) record(app string, res action.Result) {
	if app == "" {
		return
	}
	key := appKey(app)
	r.mu.Lock()
	st, ok := r.apps[key]
	if !ok {
		st = &appStats{app: app}
		r.apps[key] = st
	}
	if res.BackendUsed != "" {
		st.lastBackend = res.BackendUsed
	}
	r.mu.Unlock()
	st.counters.Record(res)
}

// Apps returns the applications the router has served, sorted.
func (r *Router) Apps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.apps))
	for _, st := range r.apps {
		out = append(out, st.app)
	}
	sort.Strings(out)
	return out
}
