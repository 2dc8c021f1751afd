// Package backend implements the acquisition backends that read and drive
// application UI: the accessibility tree walker, the remote debugging
// protocol, OS scripting and in-page scripting.
package backend

import (
	"strings"

	"github.com/mj1618/desktopd/internal/action"
)

// Name identifies one backend variant.
type Name string

// The closed set of backend variants.
const (
	TreeWalk      Name = "tree-walk"
	DebugProtocol Name = "debug-protocol"
	OSScript      Name = "os-script"
	PageScript    Name = "page-script"
)

// Names returns every backend variant in canonical order.
func Names() []Name {
	return []Name{TreeWalk, DebugProtocol, OSScript, PageScript}
}

// At annotates a backend name with the endpoint that actually served a request.
func (n Name) At(endpoint string) string {
	return string(n) + "@" + endpoint
}

// BaseName strips an endpoint annotation from a BackendUsed value.
func BaseName(used string) Name {
	name, _, _ := strings.Cut(used, "@")
	return Name(name)
}

// Backend is one way to acquire or mutate UI state.
type Backend interface {
	Name() Name
	// CanHandle reports whether the backend can serve the application.
	// bundleID may be empty when the caller only knows the display name.
	CanHandle(app, bundleID string) bool
	// Execute runs the action. Failures are reported in the result, never panicked.
	Execute(a action.Action) action.Result
	Health() action.Health
	Stats() Stats
}

// writers lists, per snapshot source, the backends able to locate an element
// of that snapshot, in the order they are tried. Tree-walk presses by element
// ID and os-script by bounds, so only screen-coordinate snapshots carry over
// between them. The DOM backends share one node walk.
var writers = map[Name][]Name{
	TreeWalk:      {TreeWalk, OSScript},
	OSScript:      {OSScript},
	PageScript:    {PageScript, DebugProtocol},
	DebugProtocol: {DebugProtocol, PageScript},
}

// WritersFor returns the backends that can press or set the value of an
// element read by source. An empty source is treated as a native snapshot.
func WritersFor(source string) []Name {
	if source == "" {
		return writers[TreeWalk]
	}
	return writers[BaseName(source)]
}
