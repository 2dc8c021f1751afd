package platform

import (
	"fmt"
	"runtime"
)

// Provider bundles the accessibility collaborators for the current OS.
type Provider struct {
	Reader          Reader
	ActionPerformer ActionPerformer
	ValueSetter     ValueSetter
	// CheckPermission reports whether the process may use the accessibility
	// API. Nil means no check is needed.
	CheckPermission func() error
}

// ErrUnsupported is returned on platforms without an accessibility walker.
var ErrUnsupported = fmt.Errorf("accessibility tree walking is not supported on %s/%s", runtime.GOOS, runtime.GOARCH)

// NewProviderFunc is set by platform-specific packages via init().
var NewProviderFunc func() (*Provider, error)

// NewProvider returns a Provider for the current OS.
func NewProvider() (*Provider, error) {
	if NewProviderFunc == nil {
		return nil, ErrUnsupported
	}
	return NewProviderFunc()
}
