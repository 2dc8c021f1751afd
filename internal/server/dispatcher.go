// Package server exposes the router and snapshot cache to agents over MCP
// and to operators over a diagnostics HTTP API.
package server

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/cache"
	"github.com/mj1618/desktopd/internal/router"
)

// Dispatcher runs actions through the router and keeps the snapshot cache in
// step: reads are served from and stored into the cache, refs on writes are
// resolved through it, and successful writes invalidate the app's entry.
type Dispatcher struct {
	router    *router.Router
	cache     *cache.Cache
	stabilize bool
	log       zerolog.Logger
}

// NewDispatcher returns a Dispatcher. stabilize controls whether cached reads
// carry identity-stable refs.
func NewDispatcher(r *router.Router, c *cache.Cache, stabilize bool, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{router: r, cache: c, stabilize: stabilize, log: log.With().Str("component", "dispatcher").Logger()}
}

func (d *Dispatcher) Router() *router.Router { return d.router }

func (d *Dispatcher) Cache() *cache.Cache { return d.cache }

// Read returns the cached snapshot for a.App when fresh, otherwise routes a
// read and caches a successful result. fresh skips the cache lookup.
func (d *Dispatcher) Read(a action.Action, fresh bool) action.Result {
	a.Kind = action.KindRead
	key := cache.Key(a.App)
	if !fresh && key != "" {
		if entry, ok := d.cache.Get(key); ok {
			res := action.SucceedWithSnapshot(entry.BackendUsed, entry.Snapshot)
			res.Payload["cached"] = true
			return res
		}
	}

	res := d.router.Route(a)
	if res.Success && res.Snapshot != nil && key != "" {
		res.Snapshot = d.cache.Put(key, res.Snapshot, res.BackendUsed, d.stabilize)
	}
	return res
}

// Do executes any action kind.
func (d *Dispatcher) Do(a action.Action) action.Result {
	if a.Kind == action.KindRead {
		return d.Read(a, false)
	}

	key := cache.Key(a.App)
	if a.Kind.TargetsElement() && a.Element == nil {
		if a.Ref == "" {
			return action.Failure("", fmt.Errorf("%s requires a ref from a previous read", a.Kind))
		}
		el, source, err := d.cache.Resolve(key, a.Ref)
		if err != nil {
			d.log.Debug().Str("app", a.App).Str("ref", a.Ref).Err(err).Msg("ref did not resolve")
			return action.Failure("", err)
		}
		// Only backends that can address the snapshot's elements may act on them.
		a.Element = el
		a.Source = source
	}

	res := d.router.Route(a)
	if res.Success && mutates(a.Kind) {
		if key != "" {
			d.cache.Invalidate(key)
		} else {
			d.cache.InvalidateAll()
		}
	}
	return res
}

// mutates reports whether an action kind may change UI state.
func mutates(k action.Kind) bool {
	switch k {
	case action.KindRead, action.KindListTargets:
		return false
	}
	return true
}
