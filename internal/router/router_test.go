package router

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/backend"
	"github.com/mj1618/desktopd/internal/model"
)

type fakeBackend struct {
	name    backend.Name
	handles bool
	result  func(a action.Action) action.Result
	calls   []action.Action
	stats   backend.Counters
	health  action.Health
	panics  bool
}

func (f *fakeBackend) Name() backend.Name { return f.name }

func (f *fakeBackend) CanHandle(app, bundleID string) bool { return f.handles }

func (f *fakeBackend) Execute(a action.Action) action.Result {
	f.calls = append(f.calls, a)
	if f.panics {
		panic("boom")
	}
	res := f.result(a)
	f.stats.Record(res)
	return res
}

func (f *fakeBackend) Health() action.Health {
	if f.health != "" {
		return f.health
	}
	return f.stats.Health()
}

func (f *fakeBackend) Stats() backend.Stats { return f.stats.Stats() }

func snapshotOf(n int) *model.Snapshot {
	els := make([]model.Element, n)
	for i := range els {
		els[i] = model.Element{ID: i + 1, Role: "btn", Title: fmt.Sprintf("b%d", i)}
	}
	return model.NewSnapshot("App", els)
}

func succeeding(name backend.Name, elements int) *fakeBackend {
	return &fakeBackend{name: name, handles: true, result: func(a action.Action) action.Result {
		if a.Kind.ReadsState() {
			return action.SucceedWithSnapshot(string(name), snapshotOf(elements))
		}
		return action.Succeed(string(name), map[string]any{"ok": true})
	}}
}

func failing(name backend.Name, err error) *fakeBackend {
	return &fakeBackend{name: name, handles: true, result: func(action.Action) action.Result {
		return action.Failure(string(name), err)
	}}
}

func TestCandidates_Ordering(t *testing.T) {
	tw := succeeding(backend.TreeWalk, 1)
	dp := succeeding(backend.DebugProtocol, 1)
	os := succeeding(backend.OSScript, 1)
	ps := succeeding(backend.PageScript, 1)
	r := New(zerolog.Nop(), os, ps, dp, tw)

	tests := []struct {
		kind action.Kind
		want []backend.Name
	}{
		{action.KindRead, []backend.Name{backend.TreeWalk, backend.DebugProtocol, backend.PageScript, backend.OSScript}},
		{action.KindPress, []backend.Name{backend.TreeWalk, backend.OSScript}},
		{action.KindSetValue, []backend.Name{backend.TreeWalk, backend.OSScript}},
		{action.KindEvaluate, []backend.Name{backend.DebugProtocol}},
		{action.KindListTargets, []backend.Name{backend.DebugProtocol}},
		{action.KindRunScript, []backend.Name{backend.OSScript}},
		{action.KindPageScript, []backend.Name{backend.PageScript}},
		{action.Kind("bogus"), nil},
	}
	for _, tt := range tests {
		var got []backend.Name
		for _, b := range r.Candidates(action.Action{Kind: tt.kind, App: "Chrome"}) {
			got = append(got, b.Name())
		}
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("Candidates(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestCandidates_WritersFollowSnapshotSource(t *testing.T) {
	r := New(zerolog.Nop(),
		succeeding(backend.TreeWalk, 1),
		succeeding(backend.DebugProtocol, 1),
		succeeding(backend.OSScript, 1),
		succeeding(backend.PageScript, 1),
	)
	tests := []struct {
		source string
		want   []backend.Name
	}{
		{"tree-walk", []backend.Name{backend.TreeWalk, backend.OSScript}},
		{"os-script", []backend.Name{backend.OSScript}},
		{"page-script", []backend.Name{backend.PageScript, backend.DebugProtocol}},
		{"debug-protocol@9223", []backend.Name{backend.DebugProtocol, backend.PageScript}},
	}
	for _, tt := range tests {
		for _, kind := range []action.Kind{action.KindPress, action.KindSetValue} {
			var got []backend.Name
			for _, b := range r.Candidates(action.Action{Kind: kind, App: "Chrome", Source: tt.source}) {
				got = append(got, b.Name())
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Candidates(%s from %s) = %v, want %v", kind, tt.source, got, tt.want)
			}
		}
	}
}

func TestRoute_DOMElementNeverReachesNativeWriters(t *testing.T) {
	tw := succeeding(backend.TreeWalk, 1)
	os := succeeding(backend.OSScript, 1)
	r := New(zerolog.Nop(), tw, os)

	res := r.Route(action.Action{
		Kind:    action.KindPress,
		App:     "Safari",
		Ref:     "e1",
		Element: &model.Element{ID: 1, Role: "btn", Title: "Sign in"},
		Source:  "page-script",
	})
	if res.Success {
		t.Fatalf("result = %+v, want failure", res)
	}
	if action.Classify(res.Err) != "backend_unavailable" {
		t.Errorf("class = %q", action.Classify(res.Err))
	}
	if len(tw.calls) != 0 || len(os.calls) != 0 {
		t.Errorf("native writers called: tree-walk %d, os-script %d", len(tw.calls), len(os.calls))
	}
}

func TestCandidates_SkipsIncapable(t *testing.T) {
	tw := succeeding(backend.TreeWalk, 1)
	dp := succeeding(backend.DebugProtocol, 1)
	dp.handles = false
	r := New(zerolog.Nop(), tw, dp)

	got := r.Candidates(action.Action{Kind: action.KindRead, App: "Notes"})
	if len(got) != 1 || got[0].Name() != backend.TreeWalk {
		t.Errorf("Candidates = %v", got)
	}
}

func TestRoute_FirstSuccessWins(t *testing.T) {
	tw := succeeding(backend.TreeWalk, 3)
	os := succeeding(backend.OSScript, 3)
	r := New(zerolog.Nop(), tw, os)

	res := r.Route(action.Action{Kind: action.KindRead, App: "Notes"})
	if !res.Success || res.BackendUsed != "tree-walk" {
		t.Fatalf("result = %+v", res)
	}
	if len(os.calls) != 0 {
		t.Error("os-script should not be tried after a success")
	}
	if res.RequestID == "" {
		t.Error("router should assign a request id")
	}
	if tw.calls[0].ID != res.RequestID {
		t.Error("backend should see the same request id")
	}
}

func TestRoute_KeepsCallerRequestID(t *testing.T) {
	r := New(zerolog.Nop(), succeeding(backend.TreeWalk, 1))
	res := r.Route(action.Action{ID: "req-1", Kind: action.KindRead, App: "Notes"})
	if res.RequestID != "req-1" {
		t.Errorf("RequestID = %q", res.RequestID)
	}
}

func TestRoute_FallsThroughFailures(t *testing.T) {
	tw := failing(backend.TreeWalk, fmt.Errorf("denied: %w", action.ErrPermissionDenied))
	os := succeeding(backend.OSScript, 2)
	r := New(zerolog.Nop(), tw, os)

	res := r.Route(action.Action{Kind: action.KindPress, App: "Notes", Element: &model.Element{ID: 1}})
	if !res.Success || res.BackendUsed != "os-script" {
		t.Fatalf("result = %+v", res)
	}
}

func TestRoute_AllFailReturnsLastError(t *testing.T) {
	tw := failing(backend.TreeWalk, errors.New("first"))
	os := failing(backend.OSScript, fmt.Errorf("second: %w", action.ErrTimeout))
	r := New(zerolog.Nop(), tw, os)

	res := r.Route(action.Action{Kind: action.KindRead, App: "Notes"})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.BackendUsed != "os-script" || res.Error != "second: timeout" {
		t.Errorf("result = %+v", res)
	}
	if action.Classify(res.Err) != "timeout" {
		t.Errorf("class = %q", action.Classify(res.Err))
	}
}

func TestRoute_NoCandidates(t *testing.T) {
	r := New(zerolog.Nop(), succeeding(backend.TreeWalk, 1))
	res := r.Route(action.Action{Kind: action.KindEvaluate, App: "Chrome", Expression: "1"})
	if res.Success {
		t.Fatal("expected failure")
	}
	if action.Classify(res.Err) != "backend_unavailable" {
		t.Errorf("class = %q", action.Classify(res.Err))
	}
}

func TestRoute_PanickingBackend(t *testing.T) {
	tw := succeeding(backend.TreeWalk, 1)
	tw.panics = true
	os := succeeding(backend.OSScript, 1)
	r := New(zerolog.Nop(), tw, os)

	res := r.Route(action.Action{Kind: action.KindRead, App: "Notes"})
	if !res.Success || res.BackendUsed != "os-script" {
		t.Errorf("result = %+v", res)
	}
}

func TestRoute_QualityFallbackBrowser(t *testing.T) {
	tw := succeeding(backend.TreeWalk, 0)
	ps := succeeding(backend.PageScript, 5)
	os := succeeding(backend.OSScript, 5)
	r := New(zerolog.Nop(), tw, ps, os)

	res := r.Route(action.Action{Kind: action.KindRead, App: "Safari", BundleID: "com.apple.Safari"})
	if !res.Success || res.BackendUsed != "page-script" || res.Snapshot.Count() != 5 {
		t.Fatalf("result = %+v", res)
	}
	if len(ps.calls) != 1 {
		t.Errorf("page-script calls = %d, want exactly 1", len(ps.calls))
	}
	if len(os.calls) != 0 {
		t.Error("os-script should not be tried for browsers")
	}
}

func TestRoute_QualityFallbackNonBrowser(t *testing.T) {
	tw := succeeding(backend.TreeWalk, 0)
	ps := succeeding(backend.PageScript, 5)
	os := succeeding(backend.OSScript, 4)
	r := New(zerolog.Nop(), tw, ps, os)

	res := r.Route(action.Action{Kind: action.KindRead, App: "Notes"})
	if res.BackendUsed != "os-script" || res.Snapshot.Count() != 4 {
		t.Fatalf("result = %+v", res)
	}
	if len(ps.calls) != 0 {
		t.Error("page-script should not be tried for non-browsers")
	}
}

func TestRoute_QualityFallbackAlternateEmptyKeepsOriginal(t *testing.T) {
	tw := succeeding(backend.TreeWalk, 0)
	os := succeeding(backend.OSScript, 0)
	r := New(zerolog.Nop(), tw, os)

	res := r.Route(action.Action{Kind: action.KindRead, App: "Notes"})
	if !res.Success || res.BackendUsed != "tree-walk" {
		t.Errorf("result = %+v, want original empty tree-walk success", res)
	}
	if len(os.calls) != 1 {
		t.Errorf("os-script calls = %d, want 1", len(os.calls))
	}
}

func TestRoute_QualityFallbackAlternateFailsKeepsOriginal(t *testing.T) {
	tw := succeeding(backend.TreeWalk, 0)
	os := failing(backend.OSScript, errors.New("nope"))
	r := New(zerolog.Nop(), tw, os)

	res := r.Route(action.Action{Kind: action.KindRead, App: "Notes"})
	if !res.Success || res.BackendUsed != "tree-walk" {
		t.Errorf("result = %+v", res)
	}
}

func TestRoute_NoFallbackForWrites(t *testing.T) {
	tw := succeeding(backend.TreeWalk, 0)
	os := succeeding(backend.OSScript, 0)
	r := New(zerolog.Nop(), tw, os)

	r.Route(action.Action{Kind: action.KindPress, App: "Notes", Element: &model.Element{ID: 1}})
	if len(os.calls) != 0 {
		t.Error("press must not trigger quality fallback")
	}
}

func TestRoute_NoFallbackWhenAlternateAlreadyServed(t *testing.T) {
	tw := failing(backend.TreeWalk, errors.New("down"))
	os := succeeding(backend.OSScript, 0)
	r := New(zerolog.Nop(), tw, os)

	res := r.Route(action.Action{Kind: action.KindRead, App: "Notes"})
	if res.BackendUsed != "os-script" {
		t.Errorf("BackendUsed = %q", res.BackendUsed)
	}
	if len(os.calls) != 1 {
		t.Errorf("os-script calls = %d, want 1", len(os.calls))
	}
}

func TestAppHealthSummary(t *testing.T) {
	tw := succeeding(backend.TreeWalk, 2)
	dp := succeeding(backend.DebugProtocol, 2)
	dp.handles = false
	r := New(zerolog.Nop(), tw, dp)

	r.Route(action.Action{Kind: action.KindRead, App: "Notes"})
	r.Route(action.Action{Kind: action.KindRead, App: "notes"})

	got := r.AppHealthSummary([]string{"Notes", "Mail"})
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	notes := got[0]
	if notes.Health != action.HealthHealthy || notes.LastBackend != "tree-walk" || notes.Requests != 2 || notes.SuccessRate != 1 {
		t.Errorf("notes = %+v", notes)
	}
	if len(notes.Backends) != 1 || notes.Backends[0] != backend.TreeWalk {
		t.Errorf("backends = %v", notes.Backends)
	}
	mail := got[1]
	if mail.Health != action.HealthUnknown || mail.Requests != 0 || mail.LastBackend != "" {
		t.Errorf("mail = %+v", mail)
	}
	if apps := r.Apps(); len(apps) != 1 || apps[0] != "Notes" {
		t.Errorf("Apps() = %v", apps)
	}
}

func TestGlobalHealthSummary(t *testing.T) {
	tw := succeeding(backend.TreeWalk, 2)
	os := failing(backend.OSScript, errors.New("denied"))
	dp := succeeding(backend.DebugProtocol, 1)
	dp.health = action.HealthReconnecting
	r := New(zerolog.Nop(), os, dp, tw)

	r.Route(action.Action{Kind: action.KindRunScript, Expression: "1"})

	got := r.GlobalHealthSummary()
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Name != backend.TreeWalk || got[1].Name != backend.DebugProtocol || got[2].Name != backend.OSScript {
		t.Errorf("order = %s, %s, %s", got[0].Name, got[1].Name, got[2].Name)
	}
	if got[0].Health != action.HealthUnknown {
		t.Errorf("tree-walk health = %s", got[0].Health)
	}
	if got[1].Health != action.HealthReconnecting {
		t.Errorf("debug-protocol health = %s", got[1].Health)
	}
	if got[2].Health != action.HealthDead || got[2].Failures != 1 || got[2].LastError != "denied" {
		t.Errorf("os-script = %+v", got[2])
	}
}

func TestGlobalHealthSummary_DebugEndpoints(t *testing.T) {
	dp := backend.NewDebugProtocol(nil, "", zerolog.Nop())
	r := New(zerolog.Nop(), dp)
	got := r.GlobalHealthSummary()
	if len(got) != 1 || got[0].Endpoints == nil {
		t.Errorf("summary = %+v", got)
	}
}

// devTools answers only on the endpoints marked up.
type devTools struct {
	mu    sync.Mutex
	up    map[string]bool
	calls []string
}

func (d *devTools) call(endpoint string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, endpoint)
	if !d.up[endpoint] {
		return fmt.Errorf("connect to port %s: refused: %w", endpoint, action.ErrBackendUnavailable)
	}
	return nil
}

func (d *devTools) ListTargets(endpoint string, timeout time.Duration) ([]backend.Target, error) {
	if err := d.call(endpoint); err != nil {
		return nil, err
	}
	return []backend.Target{{ID: "T1", Type: "page", Title: "Inbox"}}, nil
}

func (d *devTools) Evaluate(endpoint, expression string, timeout time.Duration) (any, error) {
	if err := d.call(endpoint); err != nil {
		return nil, err
	}
	return "ok", nil
}

func TestRoute_DebugEndpointRediscovery(t *testing.T) {
	tools := &devTools{up: map[string]bool{"9223": true}}
	var slept []time.Duration
	dp := backend.NewDebugProtocol(tools, "9222", zerolog.Nop(),
		backend.WithSleep(func(d time.Duration) { slept = append(slept, d) }))
	r := New(zerolog.Nop(), dp)

	res := r.Route(action.Action{Kind: action.KindListTargets, App: "Google Chrome"})
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if res.BackendUsed != "debug-protocol@9223" {
		t.Errorf("BackendUsed = %q, want debug-protocol@9223", res.BackendUsed)
	}
	if res.Payload["rediscovered_endpoint"] != "9223" {
		t.Errorf("rediscovered_endpoint = %v", res.Payload["rediscovered_endpoint"])
	}
	if fmt.Sprint(slept) != "[1s 2s 4s]" {
		t.Errorf("backoff sleeps = %v, want [1s 2s 4s]", slept)
	}

	eps := dp.Endpoints()
	if eps["9222"].Health != action.HealthDead {
		t.Errorf("9222 = %+v, want dead", eps["9222"])
	}
	if st := eps["9223"]; st.Health != action.HealthHealthy || st.RetryCount != 0 || st.Backoff != backend.InitialBackoff {
		t.Errorf("9223 = %+v, want healthy with reset backoff", st)
	}

	summary := r.AppHealthSummary([]string{"Google Chrome"})
	if len(summary) != 1 || summary[0].LastBackend != "debug-protocol@9223" {
		t.Errorf("summary = %+v", summary)
	}
}
