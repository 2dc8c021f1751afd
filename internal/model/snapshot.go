package model

import "time"

// Snapshot is the acquired UI state of one application at a point in time.
type Snapshot struct {
	App      string    `yaml:"app,omitempty"       json:"app,omitempty"`
	BundleID string    `yaml:"bundle_id,omitempty" json:"bundle_id,omitempty"`
	PID      int       `yaml:"pid,omitempty"       json:"pid,omitempty"`
	Window   string    `yaml:"window,omitempty"    json:"window,omitempty"`
	URL      string    `yaml:"url,omitempty"       json:"url,omitempty"`
	TS       int64     `yaml:"ts"                  json:"ts"`
	Elements []Element `yaml:"elements"            json:"elements"`
}

// NewSnapshot wraps an element tree read at the current time.
func NewSnapshot(app string, elements []Element) *Snapshot {
	return &Snapshot{
		App:      app,
		TS:       time.Now().UnixMilli(),
		Elements: elements,
	}
}

// Count returns the total number of elements in the snapshot.
// A nil snapshot has zero elements.
func (s *Snapshot) Count() int {
	if s == nil {
		return 0
	}
	return CountElements(s.Elements)
}

// Clone returns a deep copy so callers can rewrite refs without touching the original.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Elements = CloneElements(s.Elements)
	return &c
}
