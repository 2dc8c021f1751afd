package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mj1618/desktopd/internal/config"
	"github.com/mj1618/desktopd/internal/server"
	"github.com/mj1618/desktopd/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an MCP server exposing desktopd tools",
	Long: `Start a Model Context Protocol (MCP) server that exposes reads and actions as
tools. Reads are cached per application and carry stable element refs that
later press and set_value calls resolve.

Supported transports:
  stdio             Standard I/O (default, for MCP clients)
  streamable-http   Streamable HTTP transport (for remote agents)

Examples:
  desktopd serve
  desktopd serve --transport streamable-http --port 8080
  desktopd serve --diagnostics --diagnostics-addr 127.0.0.1:8932`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", "", "Transport: stdio, streamable-http (overrides mcp.transport)")
	serveCmd.Flags().Int("port", 0, "HTTP port for streamable-http transport (overrides mcp.port)")
	serveCmd.Flags().Bool("diagnostics", false, "Serve the diagnostics HTTP API (overrides diagnostics.enabled)")
	serveCmd.Flags().String("diagnostics-addr", "", "Diagnostics listen address (overrides diagnostics.addr)")
}

// applyServeFlags overlays explicitly set flags on the loaded config.
func applyServeFlags(cmd *cobra.Command, cfg config.Config) (config.Config, error) {
	if v, _ := cmd.Flags().GetString("transport"); v != "" {
		cfg.MCP.Transport = v
	}
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		cfg.MCP.Port = v
	}
	if cmd.Flags().Changed("diagnostics") {
		cfg.Diagnostics.Enabled, _ = cmd.Flags().GetBool("diagnostics")
	}
	if v, _ := cmd.Flags().GetString("diagnostics-addr"); v != "" {
		cfg.Diagnostics.Addr = v
	}
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := applyServeFlags(cmd, appConfig)
	if err != nil {
		return err
	}
	log := logger

	st := newStack(cfg, log)
	defer st.Close()

	if cfg.Diagnostics.Enabled {
		diag := server.NewDiagnostics(st.dispatcher, log)
		go func() {
			if err := diag.Start(cfg.Diagnostics.Addr); err != nil {
				log.Error().Err(err).Str("addr", cfg.Diagnostics.Addr).Msg("diagnostics server stopped")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
			defer cancel()
			if err := diag.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("diagnostics shutdown")
			}
		}()
	}

	log.Info().
		Str("transport", cfg.MCP.Transport).
		Bool("stabilize", cfg.Cache.StabilizeRefs()).
		Str("devtools", cfg.DevTools.Host+":"+cfg.DevTools.Port).
		Msg("starting MCP server")

	srv := server.NewMCPServer(st.dispatcher, cfg.Server.Name, version.Version, log)
	if err := srv.Serve(cfg.MCP.Transport, cfg.MCP.HTTPAddr()); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
