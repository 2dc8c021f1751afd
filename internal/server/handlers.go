package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/mj1618/desktopd/internal/action"
	"github.com/mj1618/desktopd/internal/cache"
	"github.com/mj1618/desktopd/internal/model"
)

// toolResponse is the YAML document returned by every action tool.
type toolResponse struct {
	OK         bool                `yaml:"ok"`
	RequestID  string              `yaml:"request_id,omitempty"`
	Backend    string              `yaml:"backend,omitempty"`
	Error      string              `yaml:"error,omitempty"`
	ErrorClass string              `yaml:"error_class,omitempty"`
	Payload    map[string]any      `yaml:"payload,omitempty"`
	Snapshot   *model.Snapshot     `yaml:"snapshot,omitempty"`
	Flat       []model.FlatElement `yaml:"elements,omitempty"`
}

func newToolResponse(res action.Result) toolResponse {
	return toolResponse{
		OK:         res.Success,
		RequestID:  res.RequestID,
		Backend:    res.BackendUsed,
		Error:      res.Error,
		ErrorClass: action.Classify(res.Err),
		Payload:    res.Payload,
		Snapshot:   res.Snapshot,
	}
}

// resultToText serializes a tool response to YAML for the MCP response.
func resultToText(resp toolResponse) string {
	b, err := yaml.Marshal(resp)
	if err != nil {
		return fmt.Sprintf("ok: %v\nbackend: %s\nerror: %s", resp.OK, resp.Backend, resp.Error)
	}
	return string(b)
}

func toolResult(resp toolResponse) *mcp.CallToolResult {
	if !resp.OK {
		return mcp.NewToolResultError(resultToText(resp))
	}
	return mcp.NewToolResultText(resultToText(resp))
}

func yamlResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// targetAction builds the fields shared by every action from tool arguments.
func targetAction(kind action.Kind, params map[string]interface{}) action.Action {
	return action.Action{
		Kind:     kind,
		App:      stringParam(params, "app", ""),
		BundleID: stringParam(params, "bundle-id", ""),
		PID:      intParam(params, "pid", 0),
		Endpoint: stringParam(params, "endpoint", ""),
		Timeout:  timeoutParam(params),
	}
}

func (s *MCPServer) handleRead(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	a := targetAction(action.KindRead, params)
	if a.App == "" {
		return mcp.NewToolResultError("app is required"), nil
	}
	a.Depth = intParam(params, "depth", 0)

	res := s.dispatcher.Read(a, boolParam(params, "fresh", false))
	resp := newToolResponse(res)
	if res.Success && res.Snapshot != nil {
		view := res.Snapshot.Clone()
		if roles := stringParam(params, "roles", ""); roles != "" {
			view.Elements = model.FilterElements(view.Elements, model.ExpandRoles(strings.Split(roles, ",")), nil)
		}
		if text := stringParam(params, "text", ""); text != "" {
			view.Elements = model.FilterByText(view.Elements, text)
		}
		view.Elements = model.PruneEmptyGroups(view.Elements)
		resp.Snapshot = view
		if boolParam(params, "flat", false) {
			resp.Flat = model.FlattenElements(view.Elements)
			view.Elements = nil
		}
	}
	return toolResult(resp), nil
}

func (s *MCPServer) handlePress(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	a := targetAction(action.KindPress, params)
	a.Ref = stringParam(params, "ref", "")
	return toolResult(newToolResponse(s.dispatcher.Do(a))), nil
}

func (s *MCPServer) handleSetValue(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	a := targetAction(action.KindSetValue, params)
	a.Ref = stringParam(params, "ref", "")
	a.Value = stringParam(params, "value", "")
	return toolResult(newToolResponse(s.dispatcher.Do(a))), nil
}

func (s *MCPServer) handleEvaluate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	a := targetAction(action.KindEvaluate, params)
	a.Expression = stringParam(params, "expression", "")
	if a.Expression == "" {
		return mcp.NewToolResultError("expression is required"), nil
	}
	return toolResult(newToolResponse(s.dispatcher.Do(a))), nil
}

func (s *MCPServer) handleListTargets(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := targetAction(action.KindListTargets, request.GetArguments())
	return toolResult(newToolResponse(s.dispatcher.Do(a))), nil
}

func (s *MCPServer) handleRunScript(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	a := targetAction(action.KindRunScript, params)
	a.Expression = stringParam(params, "script", "")
	if a.Expression == "" {
		return mcp.NewToolResultError("script is required"), nil
	}
	return toolResult(newToolResponse(s.dispatcher.Do(a))), nil
}

func (s *MCPServer) handlePageScript(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	a := targetAction(action.KindPageScript, params)
	a.Expression = stringParam(params, "script", "")
	if a.App == "" || a.Expression == "" {
		return mcp.NewToolResultError("app and script are required"), nil
	}
	return toolResult(newToolResponse(s.dispatcher.Do(a))), nil
}

// healthReport is the document returned by the health tool and endpoint.
type healthReport struct {
	Backends interface{} `yaml:"backends"       json:"backends"`
	Apps     interface{} `yaml:"apps,omitempty" json:"apps,omitempty"`
}

func (s *MCPServer) handleHealth(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r := s.dispatcher.Router()
	report := healthReport{Backends: r.GlobalHealthSummary()}
	if apps := splitList(stringParam(request.GetArguments(), "apps", "")); len(apps) > 0 {
		report.Apps = r.AppHealthSummary(apps)
	}
	return yamlResult(report)
}

func (s *MCPServer) handleCacheStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return yamlResult(s.dispatcher.Cache().Stats())
}

func (s *MCPServer) handleInvalidate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	app := stringParam(request.GetArguments(), "app", "")
	if app == "" {
		s.dispatcher.Cache().InvalidateAll()
		return mcp.NewToolResultText("invalidated: all\n"), nil
	}
	s.dispatcher.Cache().Invalidate(cache.Key(app))
	return mcp.NewToolResultText(fmt.Sprintf("invalidated: %s\n", app)), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
