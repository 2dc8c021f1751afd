package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/mj1618/desktopd/internal/cache"
)

// Diagnostics serves read-only health and cache state over HTTP, plus cache
// invalidation.
type Diagnostics struct {
	dispatcher *Dispatcher
	echo       *echo.Echo
	log        zerolog.Logger
}

// NewDiagnostics builds the diagnostics HTTP server.
func NewDiagnostics(d *Dispatcher, log zerolog.Logger) *Diagnostics {
	s := &Diagnostics{
		dispatcher: d,
		echo:       echo.New(),
		log:        log.With().Str("component", "diagnostics").Logger(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger)
	RegisterRoutes(s.echo, s)
	return s
}

// RegisterRoutes mounts the diagnostics API on e.
func RegisterRoutes(e *echo.Echo, s *Diagnostics) {
	e.GET("/health", s.handleHealth)
	e.GET("/health/apps", s.handleAppHealth)
	e.GET("/cache/stats", s.handleCacheStats)
	e.DELETE("/cache", s.handleInvalidateAll)
	e.DELETE("/cache/:app", s.handleInvalidateApp)
}

// Handler exposes the router for tests and embedding.
func (s *Diagnostics) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown.
func (s *Diagnostics) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("diagnostics listening")
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Diagnostics) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Diagnostics) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		s.log.Debug().
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", c.Response().Status).
			Msg("diagnostics request")
		return err
	}
}

func (s *Diagnostics) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthReport{
		Backends: s.dispatcher.Router().GlobalHealthSummary(),
	})
}

// handleAppHealth reports the apps named by repeated ?app= parameters, or
// every app routed so far when none are given.
func (s *Diagnostics) handleAppHealth(c echo.Context) error {
	r := s.dispatcher.Router()
	apps := c.QueryParams()["app"]
	if len(apps) == 0 {
		apps = r.Apps()
	}
	return c.JSON(http.StatusOK, healthReport{
		Backends: r.GlobalHealthSummary(),
		Apps:     r.AppHealthSummary(apps),
	})
}

func (s *Diagnostics) handleCacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.dispatcher.Cache().Stats())
}

func (s *Diagnostics) handleInvalidateAll(c echo.Context) error {
	s.dispatcher.Cache().InvalidateAll()
	return c.NoContent(http.StatusNoContent)
}

func (s *Diagnostics) handleInvalidateApp(c echo.Context) error {
	app := c.Param("app")
	if app == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "app is required")
	}
	s.dispatcher.Cache().Invalidate(cache.Key(app))
	return c.NoContent(http.StatusNoContent)
}
