package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/igorrivin/vite-sentiment-dashboard/internal/platform/errors"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/smoothing"
)

type smoothingRequest struct {
	Mode  string   `json:"mode"`
	Alpha *float64 `json:"alpha"`
}

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

func (s *Server) registerAPIRoutes(rateLimiter echo.MiddlewareFunc) {
	s.echo.POST("/api/smoothing", s.handleSetSmoothing, rateLimiter)
	s.echo.POST("/api/refresh", s.handleRefresh, rateLimiter)
	if s.visibility != nil {
		s.echo.POST("/api/visibility", s.handleVisibility, rateLimiter)
	}
}

func (s *Server) handleSetSmoothing(c echo.Context) error {
	var req smoothingRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	mode, err := smoothing.ParseMode(req.Mode)
	if err != nil {
		return apperrors.FromDomain(err).WithField("mode", req.Mode)
	}

	var alpha float64
	if mode == smoothing.ModeCustom {
		if req.Alpha == nil {
			return apperrors.ValidationError("alpha is required for custom smoothing")
		}
		alpha = *req.Alpha
	}

	if err := s.dashboard.SetSmoothing(mode, alpha); err != nil {
		return apperrors.FromDomain(err).WithField("mode", string(mode)).WithField("alpha", alpha)
	}

	slog.InfoContext(c.Request().Context(), "Smoothing changed", "mode", mode, "alpha", alpha)
	return s.sendJSON(c, http.StatusAccepted, map[string]any{"status": "accepted", "mode": mode})
}

func (s *Server) handleRefresh(c echo.Context) error {
	s.dashboard.Refresh()
	return s.sendJSON(c, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleVisibility lets a headless client join or leave the viewer count.
// Browsers are counted through their websocket subscriptions.
func (s *Server) handleVisibility(c echo.Context) error {
	var req visibilityRequest
	if err := c.Bind(&req); err != nil || req.Visible == nil {
		return apperrors.ValidationError("body must be {\"visible\": true|false}")
	}

	if *req.Visible {
		s.visibility.JoinHeadless()
	} else {
		s.visibility.LeaveHeadless()
	}
	return s.sendJSON(c, http.StatusAccepted, map[string]bool{"visible": *req.Visible})
}
