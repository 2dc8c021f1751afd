package refs

import "github.com/mj1618/desktopd/internal/model"

// Identity is the structural fingerprint used to recognize the same element
// across independently regenerated snapshots.
type Identity struct {
	Role        string
	Title       string
	StableID    string
	PositionKey string
}

// IdentityOf builds the identity of a flattened element. The position key
// defaults to the element's own position when pos is empty.
func IdentityOf(el model.FlatElement, pos string) Identity {
	if pos == "" {
		pos = el.Position
	}
	return Identity{
		Role:        el.Role,
		Title:       el.Title,
		StableID:    el.Identifier,
		PositionKey: pos,
	}
}

// Equal compares two identities. When both carry a stable identifier only
// role and identifier are compared, so label and position drift is ignored.
// Otherwise role, title and position key must all match.
func (a Identity) Equal(b Identity) bool {
	if a.Role != b.Role {
		return false
	}
	if a.StableID != "" && b.StableID != "" {
		return a.StableID == b.StableID
	}
	return a.Title == b.Title && a.PositionKey == b.PositionKey
}

// hashKey must agree with Equal: equal identities always share a key. Role is
// the only field both branches of Equal compare.
func (a Identity) hashKey() string {
	return a.Role
}

type indexEntry struct {
	id  Identity
	ref string
}

// identityIndex maps identities to refs using Equal within role buckets.
type identityIndex map[string][]indexEntry

func (x identityIndex) get(id Identity) (string, bool) {
	for _, e := range x[id.hashKey()] {
		if e.id.Equal(id) {
			return e.ref, true
		}
	}
	return "", false
}

func (x identityIndex) put(id Identity, ref string) {
	key := id.hashKey()
	x[key] = append(x[key], indexEntry{id: id, ref: ref})
}

// remove deletes the entry bound to ref in id's bucket.
func (x identityIndex) remove(id Identity, ref string) {
	key := id.hashKey()
	bucket := x[key]
	for i, e := range bucket {
		if e.ref == ref {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(x, key)
		return
	}
	x[key] = bucket
}

func (x identityIndex) len() int {
	n := 0
	for _, bucket := range x {
		n += len(bucket)
	}
	return n
}
