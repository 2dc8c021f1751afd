// Package cache keeps the latest UI snapshot per application together with
// the reference table that keeps its element refs stable.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/model"
	"github.com/mj1618/desktopd/internal/refs"
)

// DefaultTTL applies to backends missing from the TTL table.
const DefaultTTL = 5 * time.Second

// backendTTLs maps backend names to how long their snapshots stay fresh.
var backendTTLs = map[string]time.Duration{
	"tree-walk":      5 * time.Second,
	"debug-protocol": 30 * time.Second,
	"os-script":      30 * time.Second,
}

// TTLFor returns the freshness window for snapshots produced by backend.
// Annotated names such as "debug-protocol@9223" resolve to their base name.
func TTLFor(backend string) time.Duration {
	name, _, _ := strings.Cut(backend, "@")
	if ttl, ok := backendTTLs[name]; ok {
		return ttl
	}
	return DefaultTTL
}

// Entry holds a cached snapshot with its timestamp.
type Entry struct {
	Snapshot    *model.Snapshot
	BackendUsed string
	CachedAt    time.Time
	TTL         time.Duration
}

// IsExpired reports whether more than TTL has passed since the entry was cached.
func (e *Entry) IsExpired(now time.Time) bool {
	return now.Sub(e.CachedAt) > e.TTL
}

// Stats summarizes cache effectiveness.
type Stats struct {
	EntryCount int     `yaml:"entry_count" json:"entry_count"`
	Hits       int     `yaml:"hits"        json:"hits"`
	Misses     int     `yaml:"misses"      json:"misses"`
	HitRate    float64 `yaml:"hit_rate"    json:"hit_rate"`
}

// appTable is an application's reference table. Its lock orders stabilize
// and store so the stored snapshot always matches the table's live set.
type appTable struct {
	mu    sync.Mutex
	table *refs.Table
}

// Cache provides a per-application, per-backend-TTL snapshot cache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	tables  map[string]*appTable
	hits    int
	misses  int
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock, for tests. The clock is shared with the
// reference tables the cache creates.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*Entry),
		tables:  make(map[string]*appTable),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key normalizes an application name into a cache key.
func Key(app string) string {
	return strings.ToLower(strings.TrimSpace(app))
}

// Get returns the fresh entry for appKey. Missing and expired entries count
// as misses.
func (c *Cache) Get(appKey string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[Key(appKey)]
	if !ok || entry.IsExpired(c.now()) {
		c.misses++
		return nil, false
	}
	c.hits++
	return entry, true
}

// Put stores snapshot as the entry for appKey, replacing any previous entry,
// and returns the stored snapshot. With stabilize set, element refs are
// resolved through the application's reference table first; the caller's
// snapshot is never modified. Puts for one application are serialized, so
// the last snapshot stored is the last one stabilized.
func (c *Cache) Put(appKey string, snapshot *model.Snapshot, backendUsed string, stabilize bool) *model.Snapshot {
	key := Key(appKey)
	t := c.table(key)
	t.mu.Lock()
	defer t.mu.Unlock()

	stored := snapshot
	if stabilize && snapshot != nil {
		stored = stabilizeSnapshot(t.table, snapshot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &Entry{
		Snapshot:    stored,
		BackendUsed: backendUsed,
		CachedAt:    c.now(),
		TTL:         TTLFor(backendUsed),
	}
	return stored
}

// table returns the reference table for key, creating it on first use.
func (c *Cache) table(key string) *appTable {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[key]
	if !ok {
		t = &appTable{table: refs.NewTable(refs.WithClock(c.now))}
		c.tables[key] = t
	}
	return t
}

// stabilizeSnapshot flattens a copy of the tree, resolves refs and writes them
// back in pre-order so the structure is unchanged.
func stabilizeSnapshot(table *refs.Table, snapshot *model.Snapshot) *model.Snapshot {
	out := snapshot.Clone()
	stable := table.Stabilize(model.FlattenElements(out.Elements), nil)
	i := 0
	model.Walk(out.Elements, func(el *model.Element) {
		el.Ref = stable[i].Ref
		i++
	})
	return out
}

// Resolve finds the element bound to ref in the latest snapshot of appKey
// and reports which backend read that snapshot. The lookup ignores TTL so a
// ref from a snapshot fetched moments ago still resolves; it fails with
// action.ErrStaleReference once the element is gone.
func (c *Cache) Resolve(appKey, ref string) (*model.Element, string, error) {
	c.mu.Lock()
	entry, ok := c.entries[Key(appKey)]
	c.mu.Unlock()
	if !ok || entry.Snapshot == nil {
		return nil, "", fmt.Errorf("ref %q for %s: no snapshot cached: %w", ref, appKey, action.ErrStaleReference)
	}
	el, err := model.FindElementByRef(entry.Snapshot.Elements, ref)
	if err != nil {
		return nil, "", fmt.Errorf("%v: %w", err, action.ErrStaleReference)
	}
	found := *el
	return &found, entry.BackendUsed, nil
}

// Invalidate removes the cached entry for appKey. Its reference table is kept
// so refs stay stable across the next fetch.
func (c *Cache) Invalidate(appKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, Key(appKey))
}

// InvalidateAll clears every cached entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
}

// Stats returns entry count and hit/miss accounting.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		EntryCount: len(c.entries),
		Hits:       c.hits,
		Misses:     c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
