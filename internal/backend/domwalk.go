package backend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/model"
)

// domWalkJS defines the node walk shared by every page script: visible()
// returns the candidate nodes in document order, so the i-th node is element
// ID i+1 of the snapshot.
const domWalkJS = `
  const tagRole = (el) => {
    switch (el.tagName) {
      case 'BUTTON': return 'button';
      case 'A': return 'link';
      case 'INPUT':
        if (el.type === 'checkbox') return 'checkbox';
        if (el.type === 'radio') return 'radio';
        if (el.type === 'submit' || el.type === 'button') return 'button';
        return 'textbox';
      case 'TEXTAREA': return 'textbox';
      case 'SELECT': return 'combobox';
      case 'IMG': return 'img';
      case 'H1': case 'H2': case 'H3': case 'H4': case 'H5': case 'H6': return 'heading';
      default: return 'text';
    }
  };
  const label = (el) => (el.getAttribute('aria-label') || el.alt || el.placeholder || el.innerText || '').trim().slice(0, 120);
  const visible = () => Array.from(document.querySelectorAll('a,button,input,textarea,select,img,h1,h2,h3,h4,h5,h6,label,[role]'))
    .filter((el) => { const r = el.getBoundingClientRect(); return r.width !== 0 || r.height !== 0; });
`

// domSnapshotJS collects visible interactive and text elements from the
// current page. It is a single expression returning a JSON string so both the
// debugging protocol and OS scripting bridges can run it unchanged.
const domSnapshotJS = `(() => {` + domWalkJS + `
  const out = [];
  for (const el of visible()) {
    const r = el.getBoundingClientRect();
    out.push({
      r: el.getAttribute('role') || tagRole(el),
      t: label(el),
      v: typeof el.value === 'string' ? el.value : '',
      sid: el.id || el.getAttribute('data-testid') || '',
      b: [Math.round(r.x), Math.round(r.y), Math.round(r.width), Math.round(r.height)],
      f: document.activeElement === el,
      e: el.disabled ? false : undefined,
    });
  }
  return JSON.stringify({url: location.href, title: document.title, elements: out});
})()`

// Results of domActionJS.
const (
	domActionOK    = "ok"
	domActionStale = "stale"
)

// domActionJS presses, or sets the value of, the page element that el was
// read as. The node at el's position in the walk must still carry el's
// label, otherwise the page changed underneath the snapshot and the script
// returns domActionStale.
func domActionJS(el *model.Element, setValue bool, value string) string {
	act := `el.focus();
  el.click();`
	if setValue {
		v := jsString(value)
		act = `el.focus();
  const desc = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(el), 'value');
  if (desc && desc.set) desc.set.call(el, ` + v + `); else el.value = ` + v + `;
  el.dispatchEvent(new Event('input', {bubbles: true}));
  el.dispatchEvent(new Event('change', {bubbles: true}));`
	}
	return `(() => {` + domWalkJS + `
  const el = visible()[` + strconv.Itoa(el.ID-1) + `];
  if (!el || label(el) !== ` + jsString(el.Title) + `) return '` + domActionStale + `';
  ` + act + `
  return '` + domActionOK + `';
})()`
}

// domActionResult maps the value returned by domActionJS to an error.
func domActionResult(ref string, val any) error {
	switch val {
	case domActionOK:
		return nil
	case domActionStale:
		return fmt.Errorf("element %s no longer on the page: %w", ref, action.ErrStaleReference)
	}
	return fmt.Errorf("element action returned %v: %w", val, action.ErrProtocol)
}

// webRoles maps ARIA roles to the compact role codes used for native elements.
var webRoles = map[string]string{
	"button":    "btn",
	"link":      "lnk",
	"textbox":   "input",
	"searchbox": "input",
	"combobox":  "list",
	"listbox":   "list",
	"checkbox":  "chk",
	"radio":     "radio",
	"switch":    "toggle",
	"tab":       "tab",
	"menu":      "menu",
	"menuitem":  "menuitem",
	"img":       "img",
	"heading":   "txt",
	"text":      "txt",
	"dialog":    "group",
	"toolbar":   "toolbar",
}

func webRole(role string) string {
	if r, ok := webRoles[strings.ToLower(role)]; ok {
		return r
	}
	return "other"
}

type domSnapshot struct {
	URL      string          `json:"url"`
	Title    string          `json:"title"`
	Elements []model.Element `json:"elements"`
}

// parseDOMSnapshot decodes the output of domSnapshotJS into a snapshot.
func parseDOMSnapshot(app, raw string) (*model.Snapshot, error) {
	var dom domSnapshot
	if err := json.Unmarshal([]byte(raw), &dom); err != nil {
		return nil, fmt.Errorf("decode page snapshot: %v: %w", err, action.ErrProtocol)
	}
	for i := range dom.Elements {
		dom.Elements[i].ID = i + 1
		dom.Elements[i].Role = webRole(dom.Elements[i].Role)
	}
	snap := model.NewSnapshot(app, dom.Elements)
	snap.URL = dom.URL
	snap.Window = dom.Title
	return snap, nil
}

// snapshotFromValue accepts the value returned by an evaluation: either the
// JSON string produced by domSnapshotJS or anything else, which is rejected.
func snapshotFromValue(app string, val any) (*model.Snapshot, error) {
	raw, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("page snapshot returned %T, want string: %w", val, action.ErrProtocol)
	}
	return parseDOMSnapshot(app, raw)
}
