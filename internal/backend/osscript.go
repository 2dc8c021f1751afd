package backend

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/model"
	"github.com/mj1618/desktopd/internal/platform"
)

// OSScriptBackend reads and drives applications through System Events UI
// scripting. It is slower than the tree walker but works for any app the
// scripting bridge may control.
type OSScriptBackend struct {
	runner   platform.ScriptRunner
	counters Counters
	log      zerolog.Logger
}

// NewOSScript returns the os-script backend.
func NewOSScript(runner platform.ScriptRunner, log zerolog.Logger) *OSScriptBackend {
	return &OSScriptBackend{
		runner: runner,
		log:    log.With().Str("backend", string(OSScript)).Logger(),
	}
}

func (b *OSScriptBackend) Name() Name { return OSScript }

func (b *OSScriptBackend) CanHandle(app, bundleID string) bool {
	return b.runner != nil
}

func (b *OSScriptBackend) Health() action.Health { return b.counters.Health() }

func (b *OSScriptBackend) Stats() Stats { return b.counters.Stats() }

func (b *OSScriptBackend) Execute(a action.Action) action.Result {
	res := b.execute(a)
	b.counters.Record(res)
	return res
}

func (b *OSScriptBackend) execute(a action.Action) action.Result {
	name := string(OSScript)
	timeout := a.TimeoutOr(ScriptTimeout)

	switch a.Kind {
	case action.KindRead:
		out, err := runScript(b.runner, platform.JavaScript, uiReadScript(a.App), timeout)
		if err != nil {
			return action.Failure(name, err)
		}
		snap, err := parseUIElements(a.App, out)
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
		script := uiActionScript(a.App, a.Element, a.Kind == action.KindSetValue, a.Value)
		out, err := runScript(b.runner, platform.JavaScript, script, timeout)
		if err != nil {
			return action.Failure(name, err)
		}
		if out != "ok" {
			return action.Failure(name, fmt.Errorf("element %s not found in %s: %w", a.Ref, a.App, action.ErrStaleReference))
		}
		payload := map[string]any{"ref": a.Ref}
		if a.Kind == action.KindSetValue {
			payload["value"] = a.Value
		} else {
			payload["action"] = "press"
		}
		return action.Succeed(name, payload)

	case action.KindRunScript:
		if a.Expression == "" {
			return action.Failure(name, fmt.Errorf("run-script requires a script"))
		}
		out, err := runScript(b.runner, platform.AppleScript, a.Expression, timeout)
		if err != nil {
			return action.Failure(name, err)
		}
		return action.Succeed(name, map[string]any{"output": out})
	}
	return action.Failure(name, fmt.Errorf("%s does not support %q: %w", OSScript, a.Kind, action.ErrBackendUnavailable))
}

// uiReadScript lists every UI element of the app's front window as JSON.
func uiReadScript(app string) string {
	return `const proc = Application("System Events").processes.byName(` + jsString(app) + `);
const win = proc.windows[0];
const get = (f) => { try { const v = f(); return v === null || v === undefined ? "" : v; } catch (e) { return ""; } };
const out = [];
for (const el of win.entireContents()) {
  out.push({
    role: get(() => el.role()),
    subrole: get(() => el.subrole()),
    title: get(() => el.title()) || get(() => el.name()),
    description: get(() => el.description()),
    value: String(get(() => el.value())),
    identifier: get(() => el.attributes.byName("AXIdentifier").value()),
    position: get(() => el.position()) || [0, 0],
    size: get(() => el.size()) || [0, 0],
    focused: get(() => el.focused()) === true,
    enabled: get(() => el.enabled()) !== false,
  });
}
JSON.stringify({window: get(() => win.name()), elements: out});`
}

// uiActionScript finds an element by role and bounds and presses it or sets
// its value. It prints "ok" when the element was found.
func uiActionScript(app string, el *model.Element, setValue bool, value string) string {
	act := `el.actions.byName("AXPress").perform();`
	if setValue {
		act = `el.value = ` + jsString(value) + `;`
	}
	return fmt.Sprintf(`const proc = Application("System Events").processes.byName(%s);
const want = %s;
let done = "missing";
for (const el of proc.windows[0].entireContents()) {
  let p, s;
  try { p = el.position(); s = el.size(); } catch (e) { continue; }
  if (p[0] === want[0] && p[1] === want[1] && s[0] === want[2] && s[1] === want[3]) {
    %s
    done = "ok";
    break;
  }
}
done;`, jsString(app), mustJSON(el.Bounds), act)
}

func mustJSON(v any) string {
	out, _ := json.Marshal(v)
	return string(out)
}

type uiElement struct {
	Role        string `json:"role"`
	Subrole     string `json:"subrole"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Value       string `json:"value"`
	Identifier  string `json:"identifier"`
	Position    []int  `json:"position"`
	Size        []int  `json:"size"`
	Focused     bool   `json:"focused"`
	Enabled     bool   `json:"enabled"`
}

// parseUIElements decodes the output of uiReadScript into a flat snapshot.
func parseUIElements(app, raw string) (*model.Snapshot, error) {
	var doc struct {
		Window   string      `json:"window"`
		Elements []uiElement `json:"elements"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode UI elements: %v: %w", err, action.ErrProtocol)
	}
	elements := make([]model.Element, 0, len(doc.Elements))
	for i, ui := range doc.Elements {
		el := model.Element{
			ID:          i + 1,
			Role:        model.MapRole(ui.Role),
			Subrole:     ui.Subrole,
			Identifier:  ui.Identifier,
			Title:       ui.Title,
			Value:       ui.Value,
			Description: ui.Description,
			Focused:     ui.Focused,
		}
		if !ui.Enabled {
			el.Enabled = boolPtr(false)
		}
		if len(ui.Position) == 2 && len(ui.Size) == 2 {
			el.Bounds = [4]int{ui.Position[0], ui.Position[1], ui.Size[0], ui.Size[1]}
		}
		elements = append(elements, el)
	}
	snap := model.NewSnapshot(app, elements)
	snap.Window = doc.Window
	return snap, nil
}

func boolPtr(v bool) *bool { return &v }
