// Package refs assigns short-lived reference strings to UI elements so that a
// handle obtained from one snapshot keeps resolving against later snapshots of
// the same application.
package refs

import (
	"strconv"
	"sync"
	"time"

	"github.com/mj1618/desktopd/internal/model"
)

// TombstoneTTL is how long a vanished identity keeps its ref reserved.
const TombstoneTTL = 60 * time.Second

const refPrefix = "e"

type tombstone struct {
	identity  Identity
	expiresAt time.Time
}

// Table is the reference table of one application.
//
// identityToRef and refToIdentity are exact inverses for live identities;
// tombstones and tombstonedIdentityToRef hold refs whose identity vanished
// from the latest snapshot. A ref is never in both halves at once. The
// counter only grows, so an expired ref is never handed out again.
type Table struct {
	mu                      sync.Mutex
	identityToRef           identityIndex
	refToIdentity           map[string]Identity
	tombstones              map[string]tombstone
	tombstonedIdentityToRef identityIndex
	counter                 int
	now                     func() time.Time
}

// Option configures a Table.
type Option func(*Table)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Table) { t.now = now }
}

// NewTable creates an empty reference table.
func NewTable(opts ...Option) *Table {
	t := &Table{
		identityToRef:           identityIndex{},
		refToIdentity:           make(map[string]Identity),
		tombstones:              make(map[string]tombstone),
		tombstonedIdentityToRef: identityIndex{},
		now:                     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Stabilize resolves a ref for every element of one snapshot and returns copies
// of the elements with Ref set. positionKeys, when given, overrides the
// position component of each element's identity index by index.
//
// Identities seen before but missing from this snapshot are tombstoned for
// TombstoneTTL; if they reappear in time they get their old ref back.
func (t *Table) Stabilize(elements []model.FlatElement, positionKeys []string) []model.FlatElement {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.purgeExpired(now)

	seen := make(map[string]bool, len(elements))
	out := make([]model.FlatElement, len(elements))
	for i, el := range elements {
		var pos string
		if i < len(positionKeys) {
			pos = positionKeys[i]
		}
		id := IdentityOf(el, pos)

		ref, live := t.identityToRef.get(id)
		if live {
			t.rebind(ref, id)
		} else if r, dead := t.tombstonedIdentityToRef.get(id); dead {
			ref = r
			t.reclaim(ref, id)
		} else {
			ref = t.allocate()
			t.identityToRef.put(id, ref)
			t.refToIdentity[ref] = id
		}

		seen[ref] = true
		out[i] = el
		out[i].Ref = ref
	}

	expiresAt := now.Add(TombstoneTTL)
	for ref, id := range t.refToIdentity {
		if seen[ref] {
			continue
		}
		t.identityToRef.remove(id, ref)
		delete(t.refToIdentity, ref)
		t.tombstones[ref] = tombstone{identity: id, expiresAt: expiresAt}
		t.tombstonedIdentityToRef.put(id, ref)
	}

	return out
}

// purgeExpired drops tombstones whose expiry is at or before now.
func (t *Table) purgeExpired(now time.Time) {
	for ref, ts := range t.tombstones {
		if ts.expiresAt.After(now) {
			continue
		}
		delete(t.tombstones, ref)
		t.tombstonedIdentityToRef.remove(ts.identity, ref)
	}
}

// rebind records the latest form of a live identity, e.g. a new title on an
// element matched by stable identifier.
func (t *Table) rebind(ref string, id Identity) {
	old := t.refToIdentity[ref]
	if old == id {
		return
	}
	t.identityToRef.remove(old, ref)
	t.identityToRef.put(id, ref)
	t.refToIdentity[ref] = id
}

// reclaim moves a tombstoned ref back into the live maps.
func (t *Table) reclaim(ref string, id Identity) {
	ts := t.tombstones[ref]
	delete(t.tombstones, ref)
	t.tombstonedIdentityToRef.remove(ts.identity, ref)
	t.identityToRef.put(id, ref)
	t.refToIdentity[ref] = id
}

func (t *Table) allocate() string {
	for {
		t.counter++
		ref := refPrefix + strconv.Itoa(t.counter)
		if _, dead := t.tombstones[ref]; dead {
			continue
		}
		if _, live := t.refToIdentity[ref]; live {
			continue
		}
		return ref
	}
}

// Lookup returns the live identity bound to ref.
func (t *Table) Lookup(ref string) (Identity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.refToIdentity[ref]
	return id, ok
}

// Tombstoned reports whether ref belongs to an identity that vanished less
// than TombstoneTTL ago.
func (t *Table) Tombstoned(ref string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.tombstones[ref]
	return ok && ts.expiresAt.After(t.now())
}

// Counts returns the number of live and tombstoned refs.
func (t *Table) Counts() (live, tombstoned int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.refToIdentity), len(t.tombstones)
}

// Reset clears all four maps at once. The counter is kept so refs handed out
// before the reset are never reissued.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.identityToRef = identityIndex{}
	t.refToIdentity = make(map[string]Identity)
	t.tombstones = make(map[string]tombstone)
	t.tombstonedIdentityToRef = identityIndex{}
}
