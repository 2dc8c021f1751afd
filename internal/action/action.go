// Package action defines the request/response values exchanged between the
// router and every acquisition backend.
package action

import (
	"time"

	"github.com/mj1618/desktopd/internal/model"
)

// Kind selects which backends are eligible to execute an action.
type Kind string

const (
	KindRead        Kind = "read"
	KindPress       Kind = "press"
	KindSetValue    Kind = "set-value"
	KindEvaluate    Kind = "evaluate"
	KindListTargets Kind = "list-targets"
	KindRunScript   Kind = "run-script"
	KindPageScript  Kind = "page-script"
)

// ReadsState reports whether the action returns a UI snapshot.
func (k Kind) ReadsState() bool {
	return k == KindRead
}

// TargetsElement reports whether the action acts on one element of a
// previously read snapshot.
func (k Kind) TargetsElement() bool {
	return k == KindPress || k == KindSetValue
}

// Action describes one unit of work against a target application.
// Zero values mean "unset" for every optional field.
type Action struct {
	ID         string         `yaml:"id,omitempty"         json:"id,omitempty"`
	Kind       Kind           `yaml:"kind"                 json:"kind"`
	App        string         `yaml:"app"                  json:"app"`
	BundleID   string         `yaml:"bundle_id,omitempty"  json:"bundle_id,omitempty"`
	PID        int            `yaml:"pid,omitempty"        json:"pid,omitempty"`
	Depth      int            `yaml:"depth,omitempty"      json:"depth,omitempty"`
	Ref        string         `yaml:"ref,omitempty"        json:"ref,omitempty"`
	Element    *model.Element `yaml:"element,omitempty"    json:"element,omitempty"` // resolved target of Ref
	Source     string         `yaml:"source,omitempty"     json:"source,omitempty"`  // backend whose snapshot produced Element
	Value      string         `yaml:"value,omitempty"      json:"value,omitempty"`
	Expression string         `yaml:"expression,omitempty" json:"expression,omitempty"`
	Endpoint   string         `yaml:"endpoint,omitempty"   json:"endpoint,omitempty"`
	Timeout    time.Duration  `yaml:"timeout,omitempty"    json:"timeout,omitempty"`
}

// TimeoutOr returns the action's timeout, or def when none was requested.
func (a Action) TimeoutOr(def time.Duration) time.Duration {
	if a.Timeout > 0 {
		return a.Timeout
	}
	return def
}

// Result is the outcome of executing an Action.
type Result struct {
	RequestID   string          `yaml:"request_id,omitempty" json:"request_id,omitempty"`
	Success     bool            `yaml:"success"              json:"success"`
	Payload     map[string]any  `yaml:"payload,omitempty"    json:"payload,omitempty"`
	Snapshot    *model.Snapshot `yaml:"snapshot,omitempty"   json:"snapshot,omitempty"`
	Error       string          `yaml:"error,omitempty"      json:"error,omitempty"`
	Err         error           `yaml:"-"                    json:"-"`
	BackendUsed string          `yaml:"backend"              json:"backend"`
}

// Succeed builds a successful result carrying an opaque payload.
func Succeed(backend string, payload map[string]any) Result {
	return Result{Success: true, Payload: payload, BackendUsed: backend}
}

// SucceedWithSnapshot builds a successful read-state result.
func SucceedWithSnapshot(backend string, snap *model.Snapshot) Result {
	return Result{
		Success:     true,
		Payload:     map[string]any{"element_count": snap.Count()},
		Snapshot:    snap,
		BackendUsed: backend,
	}
}

// Failure converts an error into a non-throwing failed result.
func Failure(backend string, err error) Result {
	return Result{
		Success:     false,
		Error:       err.Error(),
		Err:         err,
		BackendUsed: backend,
	}
}

// Empty reports whether a successful read-state result carries no elements,
// which happens when the display is off or the screen is locked.
func (r Result) Empty() bool {
	return r.Success && r.Snapshot.Count() == 0
}
