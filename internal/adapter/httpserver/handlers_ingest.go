package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
	apperrors "github.com/igorrivin/vite-sentiment-dashboard/internal/platform/errors"
)

const maxIngestBodyBytes = 64 << 10

type ingestRequest struct {
	Timestamp *time.Time      `json:"timestamp"`
	Scores    json.RawMessage `json:"scores"`
}

func (s *Server) registerIngestRoutes(rateLimiter echo.MiddlewareFunc) {
	if s.ingest == nil || s.config.IngestToken == "" {
		return
	}
	s.echo.POST("/api/scores", s.handleIngest, rateLimiter, s.requireIngestToken)
}

func (s *Server) requireIngestToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.config.IngestToken)) != 1 {
			return apperrors.UnauthorizedError("invalid ingest token")
		}
		return next(c)
	}
}

func (s *Server) handleIngest(c echo.Context) error {
	ctx := c.Request().Context()
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxIngestBodyBytes)

	var req ingestRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		s.countIngest("invalid")
		return apperrors.ValidationError("invalid request body")
	}

	scores, err := domain.ParseScores(req.Scores)
	if err != nil {
		s.countIngest("invalid")
		return apperrors.ValidationError("scores must be an object of ticker to number")
	}

	point := domain.SeriesPoint{Timestamp: s.clock.Now().UTC(), Values: scores}
	if req.Timestamp != nil {
		point.Timestamp = req.Timestamp.UTC()
	}
	if err := point.Validate(); err != nil {
		s.countIngest("invalid")
		return apperrors.FromDomain(err)
	}

	if err := s.ingest.Insert(ctx, point); err != nil {
		s.countIngest("error")
		return apperrors.InternalError("failed to store scores", err).WithField("tickers", len(scores))
	}

	s.countIngest("stored")
	slog.DebugContext(ctx, "Scores ingested", "timestamp", point.Timestamp, "tickers", len(scores))
	return s.sendJSON(c, http.StatusCreated, map[string]any{"status": "stored", "tickers": len(scores)})
}

func (s *Server) countIngest(result string) {
	if s.ingestMetrics != nil {
		s.ingestMetrics.PointsTotal.WithLabelValues(result).Inc()
	}
}
