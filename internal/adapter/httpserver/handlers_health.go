package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second

	dashboardCheckName = "dashboard"
)

// HealthCheck is a named dependency probe, e.g. a database ping.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Failed []string          `json:"failed,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

// handleStartup only probes backing stores; the dashboard may still be warming up.
func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupProbeTimeout)
	defer cancel()

	return s.writeHealth(c, runHealthChecks(ctx, s.healthChecks))
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status":  "ok",
		"uptime":  s.clock.Since(s.startTime).Seconds(),
		"version": version.Get().Version,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// handleReadiness also requires the coordinator to answer, so a wedged
// coordinator takes the instance out of rotation.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	checks := s.healthChecks
	if s.dashboard != nil {
		checks = append(checks[:len(checks):len(checks)], HealthCheck{
			Name: dashboardCheckName,
			Check: func(ctx context.Context) error {
				_, err := s.dashboard.Snapshot(ctx)
				return err
			},
		})
	}
	return s.writeHealth(c, runHealthChecks(ctx, checks))
}

// runHealthChecks probes every dependency concurrently and reports each result.
func runHealthChecks(ctx context.Context, checks []HealthCheck) healthResponse {
	results := make(map[string]string, len(checks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, hc := range checks {
		wg.Go(func() {
			result := "ok"
			if err := hc.Check(ctx); err != nil {
				slog.WarnContext(ctx, "Health check failed", "check", hc.Name, "error", err)
				result = err.Error()
			}
			mu.Lock()
			results[hc.Name] = result
			mu.Unlock()
		})
	}
	wg.Wait()

	resp := healthResponse{Status: "ready", Checks: results}
	for name, result := range results {
		if result != "ok" {
			resp.Failed = append(resp.Failed, name)
		}
	}
	if len(resp.Failed) > 0 {
		sort.Strings(resp.Failed)
		resp.Status = "unhealthy"
	}
	return resp
}

func (s *Server) writeHealth(c echo.Context, resp healthResponse) error {
	status := http.StatusOK
	if len(resp.Failed) > 0 {
		status = http.StatusServiceUnavailable
	}
	if err := c.JSON(status, resp); err != nil {
		return fmt.Errorf("failed to write health response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
