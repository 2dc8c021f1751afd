package server

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mj1618/desktopd/internal/backend"
)

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return res, text.Text
}

func newTestMCPServer(t *testing.T, backends ...backend.Backend) *MCPServer {
	t.Helper()
	return NewMCPServer(newTestDispatcher(t, backends...), "desktopd", "test", zerolog.Nop())
}

func TestHandleRead(t *testing.T) {
	s := newTestMCPServer(t, &fakeBackend{name: backend.TreeWalk, elements: notesTree()})

	res, text := callTool(t, s.handleRead, map[string]any{"app": "Notes"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	var doc struct {
		OK       bool   `yaml:"ok"`
		Backend  string `yaml:"backend"`
		Snapshot struct {
			App      string `yaml:"app"`
			Elements []struct {
				Ref string `yaml:"ref"`
			} `yaml:"elements"`
		} `yaml:"snapshot"`
	}
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, text)
	}
	if !doc.OK || doc.Backend != "tree-walk" || doc.Snapshot.App != "Notes" {
		t.Errorf("doc = %+v", doc)
	}
	if len(doc.Snapshot.Elements) != 1 || doc.Snapshot.Elements[0].Ref == "" {
		t.Errorf("elements = %+v", doc.Snapshot.Elements)
	}
}

func TestHandleRead_RequiresApp(t *testing.T) {
	s := newTestMCPServer(t, &fakeBackend{name: backend.TreeWalk})
	res, _ := callTool(t, s.handleRead, map[string]any{})
	if !res.IsError {
		t.Error("expected tool error")
	}
}

func TestHandleRead_FiltersDoNotTouchCache(t *testing.T) {
	s := newTestMCPServer(t, &fakeBackend{name: backend.TreeWalk, elements: notesTree()})

	_, text := callTool(t, s.handleRead, map[string]any{"app": "Notes", "roles": "btn", "flat": true})
	if !strings.Contains(text, "New Note") || strings.Contains(text, "Search") {
		t.Errorf("role filter not applied:\n%s", text)
	}

	_, text = callTool(t, s.handleRead, map[string]any{"app": "Notes"})
	if !strings.Contains(text, "Search") {
		t.Errorf("cached snapshot lost filtered elements:\n%s", text)
	}
}

func TestHandlePress(t *testing.T) {
	tw := &fakeBackend{name: backend.TreeWalk, elements: notesTree()}
	s := newTestMCPServer(t, tw)

	_, text := callTool(t, s.handleRead, map[string]any{"app": "Notes", "flat": true})
	var doc struct {
		Elements []struct {
			Title string `yaml:"t"`
			Ref   string `yaml:"ref"`
		} `yaml:"elements"`
	}
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatal(err)
	}
	var ref string
	for _, el := range doc.Elements {
		if el.Title == "New Note" {
			ref = el.Ref
		}
	}
	if ref == "" {
		t.Fatalf("no ref for New Note:\n%s", text)
	}

	res, text := callTool(t, s.handlePress, map[string]any{"app": "Notes", "ref": ref})
	if res.IsError {
		t.Fatalf("press failed: %s", text)
	}
	if got := tw.calls[len(tw.calls)-1].Element.ID; got != 3 {
		t.Errorf("pressed element ID = %d, want 3", got)
	}
}

func TestHandlePress_StaleRef(t *testing.T) {
	s := newTestMCPServer(t, &fakeBackend{name: backend.TreeWalk, elements: notesTree()})
	res, text := callTool(t, s.handlePress, map[string]any{"app": "Notes", "ref": "e42"})
	if !res.IsError {
		t.Fatal("expected tool error")
	}
	if !strings.Contains(text, "error_class: stale_reference") {
		t.Errorf("text = %s", text)
	}
}

func TestHandleEvaluate_RequiresExpression(t *testing.T) {
	s := newTestMCPServer(t, &fakeBackend{name: backend.DebugProtocol})
	res, _ := callTool(t, s.handleEvaluate, map[string]any{"app": "Google Chrome"})
	if !res.IsError {
		t.Error("expected tool error")
	}
}

func TestHandleEvaluate(t *testing.T) {
	dp := &fakeBackend{name: backend.DebugProtocol}
	s := newTestMCPServer(t, dp)
	res, text := callTool(t, s.handleEvaluate, map[string]any{
		"app": "Google Chrome", "expression": "document.title", "endpoint": "9223", "timeout-ms": float64(2500),
	})
	if res.IsError {
		t.Fatalf("evaluate failed: %s", text)
	}
	got := dp.calls[0]
	if got.Expression != "document.title" || got.Endpoint != "9223" || got.Timeout.Milliseconds() != 2500 {
		t.Errorf("action = %+v", got)
	}
}

func TestHandleScripts(t *testing.T) {
	os := &fakeBackend{name: backend.OSScript}
	ps := &fakeBackend{name: backend.PageScript}
	s := newTestMCPServer(t, os, ps)

	if res, text := callTool(t, s.handleRunScript, map[string]any{"script": "beep"}); res.IsError {
		t.Errorf("run_script failed: %s", text)
	}
	if res, text := callTool(t, s.handlePageScript, map[string]any{"app": "Safari", "script": "1+1"}); res.IsError {
		t.Errorf("page_script failed: %s", text)
	}
	if res, _ := callTool(t, s.handlePageScript, map[string]any{"script": "1+1"}); !res.IsError {
		t.Error("page_script without app should fail")
	}
	if len(os.calls) != 1 || len(ps.calls) != 1 {
		t.Errorf("calls: os-script=%d page-script=%d", len(os.calls), len(ps.calls))
	}
}

func TestHandleHealthAndCache(t *testing.T) {
	s := newTestMCPServer(t, &fakeBackend{name: backend.TreeWalk, elements: notesTree()})
	callTool(t, s.handleRead, map[string]any{"app": "Notes"})

	_, text := callTool(t, s.handleHealth, map[string]any{"apps": "Notes, Mail"})
	if !strings.Contains(text, "name: tree-walk") || !strings.Contains(text, "app: Mail") {
		t.Errorf("health = %s", text)
	}

	_, text = callTool(t, s.handleCacheStats, nil)
	if !strings.Contains(text, "entry_count: 1") {
		t.Errorf("cache stats = %s", text)
	}

	_, text = callTool(t, s.handleInvalidate, map[string]any{"app": "NOTES"})
	if !strings.Contains(text, "invalidated: NOTES") {
		t.Errorf("invalidate = %s", text)
	}
	_, text = callTool(t, s.handleCacheStats, nil)
	if !strings.Contains(text, "entry_count: 0") {
		t.Errorf("cache stats after invalidate = %s", text)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" Notes, ,Mail ")
	if len(got) != 2 || got[0] != "Notes" || got[1] != "Mail" {
		t.Errorf("splitList = %q", got)
	}
}
