package httpserver

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/platform/config"
	apperrors "github.com/igorrivin/vite-sentiment-dashboard/internal/platform/errors"
	"github.com/igorrivin/vite-sentiment-dashboard/web"
)

// NewConfigErrorServer serves a visible configuration-error page on every route
// when the data source is not configured. Liveness stays green so the process is
// not restart-looped; readiness reports the cause.
func NewConfigErrorServer(cfg *config.Config, cause error) (*Server, error) {
	templates, err := template.ParseFS(web.TemplateFiles, "templates/config_error.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	clock := clockwork.NewRealClock()
	srv := &Server{
		echo:      newEcho(),
		config:    cfg,
		templates: templates,
		clock:     clock,
		startTime: clock.Now(),
		healthChecks: []HealthCheck{
			{Name: "config", Check: func(context.Context) error { return cause }},
		},
	}

	srv.echo.Use(srv.setupRequestLoggerMiddleware())
	srv.echo.Use(middleware.Recover())
	srv.echo.Use(ErrorHandlingMiddleware())
	srv.echo.Use(secureHeaders())
	srv.registerHealthRoutes()

	page := func(c echo.Context) error {
		if strings.HasPrefix(c.Request().URL.Path, "/api/") {
			return apperrors.UnavailableError("configuration error", cause)
		}
		return srv.renderTemplate(c, http.StatusServiceUnavailable, "config_error.html", map[string]string{
			"Message": cause.Error(),
		})
	}
	srv.echo.Any("/", page)
	srv.echo.Any("/*", page)

	return srv, nil
}
