package cmd

import (
	"github.com/rs/zerolog"

	"github.com/mj1618/desktopd/internal/backend"
	"github.com/mj1618/desktopd/internal/cache"
	"github.com/mj1618/desktopd/internal/config"
	"github.com/mj1618/desktopd/internal/platform"
	"github.com/mj1618/desktopd/internal/router"
	"github.com/mj1618/desktopd/internal/server"
)

// stack is the assembled routing core shared by every command.
type stack struct {
	dispatcher *server.Dispatcher
	devtools   *backend.RodDevTools
}

func (s *stack) Close() {
	s.devtools.Close()
}

// newBackends builds the four backends from configuration. A platform
// without an accessibility walker still gets a tree-walk backend; it simply
// declines every app.
func newBackends(cfg config.Config, log zerolog.Logger, tools backend.DevTools) []backend.Backend {
	provider, err := platform.NewProvider()
	if err != nil {
		log.Debug().Err(err).Msg("tree walking unavailable")
		provider = nil
	}
	runner := &platform.OSAScript{Path: cfg.Scripting.OSAScript}

	return []backend.Backend{
		backend.NewTreeWalk(provider, log),
		backend.NewDebugProtocol(tools, cfg.DevTools.Port, log),
		backend.NewOSScript(runner, log),
		backend.NewPageScript(runner, log),
	}
}

func newStack(cfg config.Config, log zerolog.Logger) *stack {
	tools := backend.NewRodDevTools(cfg.DevTools.Host)
	r := router.New(log, newBackends(cfg, log, tools)...)
	return &stack{
		dispatcher: server.NewDispatcher(r, cache.New(), cfg.Cache.StabilizeRefs(), log),
		devtools:   tools,
	}
}
