package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// MCPServer exposes the dispatcher as MCP tools.
type MCPServer struct {
	dispatcher *Dispatcher
	mcp        *mcpserver.MCPServer
	log        zerolog.Logger
}

// NewMCPServer creates an MCP server with every desktopd tool registered.
func NewMCPServer(d *Dispatcher, name, version string, log zerolog.Logger) *MCPServer {
	s := &MCPServer{
		dispatcher: d,
		mcp:        mcpserver.NewMCPServer(name, version),
		log:        log.With().Str("component", "mcp").Logger(),
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on the given transport until it stops.
// addr is the listen address for streamable-http and is ignored for stdio.
func (s *MCPServer) Serve(transport, addr string) error {
	switch transport {
	case "stdio":
		return mcpserver.ServeStdio(s.mcp)
	case "streamable-http":
		s.log.Info().Str("addr", addr).Msg("serving MCP over streamable HTTP")
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		return httpServer.Start(addr)
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", transport)
	}
}

func (s *MCPServer) registerTools() {
	// read
	s.mcp.AddTool(
		mcp.NewTool("read",
			mcp.WithDescription("Read an application's UI. Served from cache when fresh; otherwise routed to the best available backend with fallback. Elements carry stable refs (e1, e2, ...) usable by press and set_value."),
			mcp.WithString("app", mcp.Description("Application name (e.g. 'Safari', 'Notes')"), mcp.Required()),
			mcp.WithString("bundle-id", mcp.Description("Application bundle identifier, when known")),
			mcp.WithNumber("pid", mcp.Description("Process ID")),
			mcp.WithNumber("depth", mcp.Description("Max depth to traverse (0 = unlimited)")),
			mcp.WithBoolean("fresh", mcp.Description("Bypass the snapshot cache")),
			mcp.WithString("roles", mcp.Description("Comma-separated roles to include (e.g. 'btn,input' or 'interactive')")),
			mcp.WithString("text", mcp.Description("Only elements whose text contains this substring")),
			mcp.WithBoolean("flat", mcp.Description("Return a flat element list with paths")),
			mcp.WithNumber("timeout-ms", mcp.Description("Per-backend deadline in milliseconds")),
		),
		s.handleRead,
	)

	// press
	s.mcp.AddTool(
		mcp.NewTool("press",
			mcp.WithDescription("Press a UI element by the ref returned from read"),
			mcp.WithString("app", mcp.Description("Application name"), mcp.Required()),
			mcp.WithString("ref", mcp.Description("Element ref from the latest read (e.g. 'e12')"), mcp.Required()),
			mcp.WithString("bundle-id", mcp.Description("Application bundle identifier")),
			mcp.WithNumber("pid", mcp.Description("Process ID")),
		),
		s.handlePress,
	)

	// set_value
	s.mcp.AddTool(
		mcp.NewTool("set_value",
			mcp.WithDescription("Set the value of a UI element by the ref returned from read"),
			mcp.WithString("app", mcp.Description("Application name"), mcp.Required()),
			mcp.WithString("ref", mcp.Description("Element ref from the latest read"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value to set"), mcp.Required()),
			mcp.WithString("bundle-id", mcp.Description("Application bundle identifier")),
			mcp.WithNumber("pid", mcp.Description("Process ID")),
		),
		s.handleSetValue,
	)

	// evaluate
	s.mcp.AddTool(
		mcp.NewTool("evaluate",
			mcp.WithDescription("Evaluate a JavaScript expression over the remote debugging protocol (Chromium browsers and Electron apps)"),
			mcp.WithString("expression", mcp.Description("JavaScript expression"), mcp.Required()),
			mcp.WithString("app", mcp.Description("Application name (e.g. 'Google Chrome', 'Slack')")),
			mcp.WithString("bundle-id", mcp.Description("Application bundle identifier")),
			mcp.WithString("endpoint", mcp.Description("Debugging port (default from config)")),
			mcp.WithNumber("timeout-ms", mcp.Description("Deadline in milliseconds (default 10000)")),
		),
		s.handleEvaluate,
	)

	// list_targets
	s.mcp.AddTool(
		mcp.NewTool("list_targets",
			mcp.WithDescription("List debuggable targets (pages, workers) on a remote debugging endpoint"),
			mcp.WithString("app", mcp.Description("Application name")),
			mcp.WithString("bundle-id", mcp.Description("Application bundle identifier")),
			mcp.WithString("endpoint", mcp.Description("Debugging port (default from config)")),
		),
		s.handleListTargets,
	)

	// run_script
	s.mcp.AddTool(
		mcp.NewTool("run_script",
			mcp.WithDescription("Run an AppleScript through the OS scripting bridge"),
			mcp.WithString("script", mcp.Description("AppleScript source"), mcp.Required()),
			mcp.WithString("app", mcp.Description("Application the script drives; its cache entry is invalidated")),
			mcp.WithNumber("timeout-ms", mcp.Description("Deadline in milliseconds (default 10000)")),
		),
		s.handleRunScript,
	)

	// page_script
	s.mcp.AddTool(
		mcp.NewTool("page_script",
			mcp.WithDescription("Run JavaScript in a browser's active tab through its scripting dictionary (Safari, Chrome and other Chromium browsers)"),
			mcp.WithString("app", mcp.Description("Browser name"), mcp.Required()),
			mcp.WithString("script", mcp.Description("JavaScript source"), mcp.Required()),
			mcp.WithString("bundle-id", mcp.Description("Browser bundle identifier")),
			mcp.WithNumber("timeout-ms", mcp.Description("Deadline in milliseconds (default 10000)")),
		),
		s.handlePageScript,
	)

	// health
	s.mcp.AddTool(
		mcp.NewTool("health",
			mcp.WithDescription("Report backend health and, optionally, per-application health"),
			mcp.WithString("apps", mcp.Description("Comma-separated application names to report on")),
		),
		s.handleHealth,
	)

	// cache_stats
	s.mcp.AddTool(
		mcp.NewTool("cache_stats",
			mcp.WithDescription("Report snapshot cache entry count and hit rate"),
		),
		s.handleCacheStats,
	)

	// invalidate
	s.mcp.AddTool(
		mcp.NewTool("invalidate",
			mcp.WithDescription("Drop the cached snapshot for an application, or every snapshot when app is omitted"),
			mcp.WithString("app", mcp.Description("Application name")),
		),
		s.handleInvalidate,
	)
}
