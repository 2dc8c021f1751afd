// Package config loads the daemon configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config captures every tunable setting of the daemon. Cache TTLs, backoff
// parameters and the rediscovery port list are fixed and not configurable.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	MCP         MCPConfig         `yaml:"mcp"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	DevTools    DevToolsConfig    `yaml:"devtools"`
	Scripting   ScriptingConfig   `yaml:"scripting"`
	Cache       CacheConfig       `yaml:"cache"`
}

type ServerConfig struct {
	Name string `yaml:"name"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "console" for human-readable lines or "json".
	Format string `yaml:"format"`
	// File receives log output when set; stderr otherwise.
	File string `yaml:"file"`
}

type MCPConfig struct {
	// Transport is "stdio" or "streamable-http".
	Transport string `yaml:"transport"`
	// Port is the HTTP listen port; ignored for stdio.
	Port int `yaml:"port"`
}

// DiagnosticsConfig configures the read-only health HTTP server.
type DiagnosticsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DevToolsConfig locates the remote debugging endpoint.
type DevToolsConfig struct {
	Host string `yaml:"host"`
	// Port is the default debugging port tried before rediscovery.
	Port string `yaml:"port"`
}

type ScriptingConfig struct {
	// OSAScript is the path to the osascript binary; empty means PATH lookup.
	OSAScript string `yaml:"osascript"`
}

type CacheConfig struct {
	// Stabilize assigns identity-stable refs to cached reads.
	Stabilize *bool `yaml:"stabilize"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name: "desktopd",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Port:      8931,
		},
		Diagnostics: DiagnosticsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8932",
		},
		DevTools: DevToolsConfig{
			Host: "127.0.0.1",
			Port: "9222",
		},
	}
}

// Load reads YAML config from path over the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate ensures the settings can start the daemon deterministically.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	switch c.MCP.Transport {
	case "stdio":
	case "streamable-http":
		if c.MCP.Port <= 0 || c.MCP.Port > 65535 {
			errs = append(errs, fmt.Errorf("mcp.port out of range: %d", c.MCP.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("mcp.transport must be stdio or streamable-http, got %q", c.MCP.Transport))
	}
	if c.Diagnostics.Enabled && c.Diagnostics.Addr == "" {
		errs = append(errs, errors.New("diagnostics.addr is required when diagnostics are enabled"))
	}
	if p, err := strconv.Atoi(c.DevTools.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("devtools.port must be a port number, got %q", c.DevTools.Port))
	}
	return errors.Join(errs...)
}

// StabilizeRefs reports whether reads get identity-stable refs (default true).
func (c CacheConfig) StabilizeRefs() bool {
	if c.Stabilize == nil {
		return true
	}
	return *c.Stabilize
}

// LogLevel returns the parsed level, falling back to info.
func (l LoggingConfig) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// HTTPAddr returns the listen address for the streamable-http transport.
func (m MCPConfig) HTTPAddr() string {
	return ":" + strconv.Itoa(m.Port)
}

// ShutdownTimeout bounds graceful shutdown of network listeners.
const ShutdownTimeout = 5 * time.Second
