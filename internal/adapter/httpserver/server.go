package httpserver

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/adapter/metrics"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/platform/config"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/smoothing"
	"github.com/igorrivin/vite-sentiment-dashboard/web"
)

// dashboardService is the refresh coordinator as seen by the HTTP layer.
type dashboardService interface {
	Refresh()
	SetSmoothing(mode smoothing.Mode, customAlpha float64) error
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

// headlessVisibility counts clients that show the dashboard without a websocket.
type headlessVisibility interface {
	JoinHeadless()
	LeaveHeadless()
}

// viewerCounter reports how many browsers currently watch the dashboard.
type viewerCounter interface {
	ViewerCount() int
}

// Deps are the collaborators a Server routes requests to. Optional fields may be nil.
type Deps struct {
	Dashboard        dashboardService
	Ingest           domain.ScoreWriter
	Viewers          viewerCounter
	Visibility       headlessVisibility
	WebsocketHandler http.Handler
	MetricsHandler   http.Handler
	HTTPMetrics      *metrics.HTTPMetrics
	IngestMetrics    *metrics.IngestMetrics
	HealthChecks     []HealthCheck
	Clock            clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	dashboard        dashboardService
	ingest           domain.ScoreWriter
	viewers          viewerCounter
	visibility       headlessVisibility
	websocketHandler http.Handler
	metricsHandler   http.Handler
	httpMetrics      *metrics.HTTPMetrics
	ingestMetrics    *metrics.IngestMetrics

	templates    *template.Template
	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	templates, err := template.ParseFS(web.TemplateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:             newEcho(),
		config:           cfg,
		dashboard:        deps.Dashboard,
		ingest:           deps.Ingest,
		viewers:          deps.Viewers,
		visibility:       deps.Visibility,
		websocketHandler: deps.WebsocketHandler,
		metricsHandler:   deps.MetricsHandler,
		httpMetrics:      deps.HTTPMetrics,
		ingestMetrics:    deps.IngestMetrics,
		templates:        templates,
		healthChecks:     deps.HealthChecks,
		clock:            clock,
		startTime:        clock.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return e
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) renderTemplate(c echo.Context, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Template execution failed", "path", c.Request().URL.Path, "error", err)
		if err := c.String(http.StatusInternalServerError, "Failed to render page"); err != nil {
			return fmt.Errorf("failed to send error response: %w", err)
		}
		return nil
	}
	if err := c.HTMLBlob(status, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send HTML response: %w", err)
	}
	return nil
}

func (s *Server) sendJSON(c echo.Context, status int, body any) error {
	if err := c.JSON(status, body); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
