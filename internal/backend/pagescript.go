package backend

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/platform"
)

// PageScriptBackend runs JavaScript inside a browser's active tab through the
// browser's own scripting dictionary. It needs no debugging port.
type PageScriptBackend struct {
	runner   platform.ScriptRunner
	counters Counters
	log      zerolog.Logger
}

// NewPageScript returns the page-script backend.
func NewPageScript(runner platform.ScriptRunner, log zerolog.Logger) *PageScriptBackend {
	return &PageScriptBackend{
		runner: runner,
		log:    log.With().Str("backend", string(PageScript)).Logger(),
	}
}

func (b *PageScriptBackend) Name() Name { return PageScript }

func (b *PageScriptBackend) CanHandle(app, bundleID string) bool {
	return b.runner != nil && scriptableBrowsers.match(app, bundleID)
}

func (b *PageScriptBackend) Health() action.Health { return b.counters.Health() }

func (b *PageScriptBackend) Stats() Stats { return b.counters.Stats() }

func (b *PageScriptBackend) Execute(a action.Action) action.Result {
	res := b.execute(a)
	b.counters.Record(res)
	return res
}

func (b *PageScriptBackend) execute(a action.Action) action.Result {
	name := string(PageScript)
	timeout := a.TimeoutOr(ScriptTimeout)

	switch a.Kind {
	case action.KindRead:
		out, err := runScript(b.runner, platform.JavaScript, tabScript(a.App, a.BundleID, domSnapshotJS), timeout)
		if err != nil {
			return action.Failure(name, err)
		}
		snap, err := parseDOMSnapshot(a.App, out)
		if err != nil {
			return action.Failure(name, err)
		}
		snap.BundleID = a.BundleID
		snap.PID = a.PID
		return action.SucceedWithSnapshot(name, snap)

	case action.KindPress, action.KindSetValue:
		if a.Element == nil {
			return action.Failure(name, fmt.Errorf("%s needs a resolved element: %w", a.Kind, action.ErrStaleReference))
		}
		setValue := a.Kind == action.KindSetValue
		js := domActionJS(a.Element, setValue, a.Value)
		out, err := runScript(b.runner, platform.JavaScript, tabScript(a.App, a.BundleID, js), timeout)
		if err != nil {
			return action.Failure(name, err)
		}
		if err := domActionResult(a.Ref, out); err != nil {
			return action.Failure(name, err)
		}
		payload := map[string]any{"ref": a.Ref}
		if setValue {
			payload["value"] = a.Value
		} else {
			payload["action"] = "press"
		}
		return action.Succeed(name, payload)

	case action.KindPageScript:
		if a.Expression == "" {
			return action.Failure(name, fmt.Errorf("page-script requires a script"))
		}
		out, err := runScript(b.runner, platform.JavaScript, tabScript(a.App, a.BundleID, a.Expression), timeout)
		if err != nil {
			return action.Failure(name, err)
		}
		return action.Succeed(name, map[string]any{"output": out})
	}
	return action.Failure(name, fmt.Errorf("%s does not support %q: %w", PageScript, a.Kind, action.ErrBackendUnavailable))
}

// tabScript wraps js in the browser's "run JavaScript in the active tab"
// command. Safari and Chromium browsers use different dictionaries.
func tabScript(app, bundleID, js string) string {
	target := jsString(app)
	if isSafari(app, bundleID) {
		return fmt.Sprintf(`const b = Application(%s);
b.doJavaScript(%s, {in: b.windows[0].currentTab});`, target, jsString(js))
	}
	return fmt.Sprintf(`const b = Application(%s);
b.windows[0].activeTab.execute({javascript: %s});`, target, jsString(js))
}
