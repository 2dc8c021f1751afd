// Package platform declares the OS collaborators the acquisition backends
// drive: the accessibility-tree walker, element action/value APIs and the OS
// scripting bridge.
package platform

import (
	"context"

	"github.com/mj1618/desktopd/internal/model"
)

// Reader reads the UI element tree from the OS accessibility layer.
type Reader interface {
	// ReadElements returns the element tree for the specified target.
	ReadElements(opts ReadOptions) ([]model.Element, error)
}

// ActionPerformer performs accessibility actions directly on UI elements.
type ActionPerformer interface {
	// PerformAction executes an accessibility action on an element identified
	// by its sequential ID within the given read scope.
	PerformAction(opts ActionOptions) error
}

// ValueSetter sets an element's value through the accessibility API.
type ValueSetter interface {
	SetValue(opts SetValueOptions) error
}

// ScriptRunner runs OS automation scripts (AppleScript or JavaScript for
// Automation) and returns their standard output.
type ScriptRunner interface {
	Run(ctx context.Context, lang ScriptLanguage, script string) (string, error)
}
