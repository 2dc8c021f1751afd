package cmd

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/backend"
	"github.com/mj1618/desktopd/internal/cache"
	"github.com/mj1618/desktopd/internal/model"
	"github.com/mj1618/desktopd/internal/router"
	"github.com/mj1618/desktopd/internal/server"
)

type fakeBackend struct {
	name     backend.Name
	elements []model.Element
	calls    []action.Action
	counters backend.Counters
}

func (f *fakeBackend) Name() backend.Name { return f.name }

func (f *fakeBackend) CanHandle(app, bundleID string) bool { return true }

func (f *fakeBackend) Execute(a action.Action) action.Result {
	f.calls = append(f.calls, a)
	var res action.Result
	if a.Kind == action.KindRead {
		res = action.SucceedWithSnapshot(string(f.name), model.NewSnapshot(a.App, model.CloneElements(f.elements)))
	} else {
		res = action.Succeed(string(f.name), map[string]any{"kind": string(a.Kind)})
	}
	f.counters.Record(res)
	return res
}

func (f *fakeBackend) Health() action.Health { return f.counters.Health() }

func (f *fakeBackend) Stats() backend.Stats { return f.counters.Stats() }

func formTree() []model.Element {
	return []model.Element{
		{ID: 1, Role: "window", Title: "Form", Children: []model.Element{
			{ID: 2, Role: "input", Title: "Name"},
			{ID: 3, Role: "btn", Title: "Submit"},
		}},
	}
}

func newTestDispatcher(t *testing.T, backends ...backend.Backend) *server.Dispatcher {
	t.Helper()
	return server.NewDispatcher(router.New(zerolog.Nop(), backends...), cache.New(), true, zerolog.Nop())
}
