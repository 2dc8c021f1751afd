package server

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/backend"
	"github.com/mj1618/desktopd/internal/cache"
	"github.com/mj1618/desktopd/internal/model"
	"github.com/mj1618/desktopd/internal/router"
)

// fakeBackend serves reads from a fixed tree and records every action.
type fakeBackend struct {
	name     backend.Name
	elements []model.Element
	fail     error
	calls    []action.Action
	counters backend.Counters
}

func (f *fakeBackend) Name() backend.Name { return f.name }

func (f *fakeBackend) CanHandle(app, bundleID string) bool { return true }

func (f *fakeBackend) Execute(a action.Action) action.Result {
	f.calls = append(f.calls, a)
	var res action.Result
	switch {
	case f.fail != nil:
		res = action.Failure(string(f.name), f.fail)
	case a.Kind == action.KindRead:
		res = action.SucceedWithSnapshot(string(f.name), model.NewSnapshot(a.App, model.CloneElements(f.elements)))
	default:
		res = action.Succeed(string(f.name), map[string]any{"kind": string(a.Kind)})
	}
	f.counters.Record(res)
	return res
}

func (f *fakeBackend) Health() action.Health { return f.counters.Health() }

func (f *fakeBackend) Stats() backend.Stats { return f.counters.Stats() }

func notesTree() []model.Element {
	return []model.Element{
		{ID: 1, Role: "window", Title: "Notes", Children: []model.Element{
			{ID: 2, Role: "toolbar", Children: []model.Element{
				{ID: 3, Role: "btn", Title: "New Note"},
				{ID: 4, Role: "btn", Title: "Delete"},
			}},
			{ID: 5, Role: "input", Identifier: "search", Title: "Search"},
		}},
	}
}

func newTestDispatcher(t *testing.T, backends ...backend.Backend) *Dispatcher {
	t.Helper()
	r := router.New(zerolog.Nop(), backends...)
	return NewDispatcher(r, cache.New(), true, zerolog.Nop())
}

func refOf(t *testing.T, snap *model.Snapshot, title string) string {
	t.Helper()
	var ref string
	model.Walk(snap.Elements, func(el *model.Element) {
		if el.Title == title {
			ref = el.Ref
		}
	})
	if ref == "" {
		t.Fatalf("no element titled %q", title)
	}
	return ref
}
