package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/model"
	"github.com/mj1618/desktopd/internal/platform"
)

// fakeDevTools answers only on the endpoints marked up.
type fakeDevTools struct {
	mu      sync.Mutex
	up      map[string]bool
	targets []Target
	value   any
	evalErr error
	calls   []string
	scripts []string
}

func newFakeDevTools(up ...string) *fakeDevTools {
	f := &fakeDevTools{up: make(map[string]bool)}
	for _, ep := range up {
		f.up[ep] = true
	}
	return f
}

func (f *fakeDevTools) record(endpoint string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpoint)
	return f.up[endpoint]
}

func (f *fakeDevTools) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDevTools) ListTargets(endpoint string, timeout time.Duration) ([]Target, error) {
	if !f.record(endpoint) {
		return nil, fmt.Errorf("connect to port %s: refused: %w", endpoint, action.ErrBackendUnavailable)
	}
	return f.targets, nil
}

func (f *fakeDevTools) Evaluate(endpoint, expression string, timeout time.Duration) (any, error) {
	f.mu.Lock()
	f.scripts = append(f.scripts, expression)
	f.mu.Unlock()
	if !f.record(endpoint) {
		return nil, fmt.Errorf("connect to port %s: refused: %w", endpoint, action.ErrBackendUnavailable)
	}
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	return f.value, nil
}

// fakeRunner records the last script and returns canned output.
type fakeRunner struct {
	out         string
	err         error
	lang        platform.ScriptLanguage
	script      string
	hadDeadline bool
	calls       int
}

func (f *fakeRunner) Run(ctx context.Context, lang platform.ScriptLanguage, script string) (string, error) {
	f.calls++
	f.lang = lang
	f.script = script
	_, f.hadDeadline = ctx.Deadline()
	return f.out, f.err
}

type fakeReader struct {
	elements []model.Element
	err      error
	opts     platform.ReadOptions
}

func (f *fakeReader) ReadElements(opts platform.ReadOptions) ([]model.Element, error) {
	f.opts = opts
	return f.elements, f.err
}

type fakePerformer struct {
	opts platform.ActionOptions
	err  error
}

func (f *fakePerformer) PerformAction(opts platform.ActionOptions) error {
	f.opts = opts
	return f.err
}

type fakeSetter struct {
	opts platform.SetValueOptions
	err  error
}

func (f *fakeSetter) SetValue(opts platform.SetValueOptions) error {
	f.opts = opts
	return f.err
}

// sleepRecorder replaces time.Sleep and remembers every requested delay.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	during func()
}

func (s *sleepRecorder) Sleep(d time.Duration) {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	during := s.during
	s.mu.Unlock()
	if during != nil {
		during()
	}
}

func (s *sleepRecorder) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}
