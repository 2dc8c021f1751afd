package backend

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/model"
	"github.com/mj1618/desktopd/internal/platform"
)

// TreeWalkBackend reads and drives applications through the OS
// accessibility tree. Every application exposes one, so it handles any app
// on hosts where a walker is available.
type TreeWalkBackend struct {
	provider *platform.Provider
	counters Counters
	log      zerolog.Logger
}

// NewTreeWalk returns the tree-walk backend. A nil provider yields a backend
// that handles nothing.
func NewTreeWalk(provider *platform.Provider, log zerolog.Logger) *TreeWalkBackend {
	return &TreeWalkBackend{
		provider: provider,
		log:      log.With().Str("backend", string(TreeWalk)).Logger(),
	}
}

func (b *TreeWalkBackend) Name() Name { return TreeWalk }

func (b *TreeWalkBackend) CanHandle(app, bundleID string) bool {
	return b.provider != nil && b.provider.Reader != nil
}

func (b *TreeWalkBackend) Health() action.Health { return b.counters.Health() }

func (b *TreeWalkBackend) Stats() Stats { return b.counters.Stats() }

func (b *TreeWalkBackend) Execute(a action.Action) action.Result {
	res := b.execute(a)
	b.counters.Record(res)
	return res
}

func (b *TreeWalkBackend) execute(a action.Action) action.Result {
	name := string(TreeWalk)
	if b.provider == nil || b.provider.Reader == nil {
		return action.Failure(name, fmt.Errorf("no accessibility walker: %w", action.ErrBackendUnavailable))
	}
	if b.provider.CheckPermission != nil {
		if err := b.provider.CheckPermission(); err != nil {
			return action.Failure(name, fmt.Errorf("accessibility access: %v: %w", err, action.ErrPermissionDenied))
		}
	}

	switch a.Kind {
	case action.KindRead:
		elements, err := callWithTimeout(a.TimeoutOr(TreeReadTimeout), func() ([]model.Element, error) {
			return b.provider.Reader.ReadElements(platform.ReadOptions{App: a.App, PID: a.PID, Depth: a.Depth})
		})
		if err != nil {
			return action.Failure(name, b.classify(err))
		}
		snap := model.NewSnapshot(a.App, elements)
		snap.BundleID = a.BundleID
		snap.PID = a.PID
		return action.SucceedWithSnapshot(name, snap)

	case action.KindPress:
		if a.Element == nil {
			return action.Failure(name, fmt.Errorf("press needs a resolved element: %w", action.ErrStaleReference))
		}
		if b.provider.ActionPerformer == nil {
			return action.Failure(name, fmt.Errorf("element actions: %w", action.ErrBackendUnavailable))
		}
		_, err := callWithTimeout(a.TimeoutOr(TreeReadTimeout), func() (struct{}, error) {
			return struct{}{}, b.provider.ActionPerformer.PerformAction(platform.ActionOptions{
				App: a.App, PID: a.PID, ID: a.Element.ID, Action: "press",
			})
		})
		if err != nil {
			return action.Failure(name, b.classify(err))
		}
		return action.Succeed(name, map[string]any{"ref": a.Ref, "action": "press"})

	case action.KindSetValue:
		if a.Element == nil {
			return action.Failure(name, fmt.Errorf("set-value needs a resolved element: %w", action.ErrStaleReference))
		}
		if b.provider.ValueSetter == nil {
			return action.Failure(name, fmt.Errorf("value setting: %w", action.ErrBackendUnavailable))
		}
		_, err := callWithTimeout(a.TimeoutOr(TreeReadTimeout), func() (struct{}, error) {
			return struct{}{}, b.provider.ValueSetter.SetValue(platform.SetValueOptions{
				App: a.App, PID: a.PID, ID: a.Element.ID, Value: a.Value,
			})
		})
		if err != nil {
			return action.Failure(name, b.classify(err))
		}
		return action.Succeed(name, map[string]any{"ref": a.Ref, "value": a.Value})
	}
	return action.Failure(name, fmt.Errorf("%s does not support %q: %w", TreeWalk, a.Kind, action.ErrBackendUnavailable))
}

// classify leaves taxonomy errors alone and reports unsupported platforms as
// an unavailable backend.
func (b *TreeWalkBackend) classify(err error) error {
	if errors.Is(err, platform.ErrUnsupported) {
		return fmt.Errorf("%v: %w", err, action.ErrBackendUnavailable)
	}
	return err
}
