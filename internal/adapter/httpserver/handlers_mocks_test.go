package httpserver

import (
	"context"
	"html/template"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/platform/config"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/smoothing"
)

// --- Mock implementations ---

type mockDashboard struct {
	snapshotFn     func(ctx context.Context) (domain.Snapshot, error)
	setSmoothingFn func(mode smoothing.Mode, customAlpha float64) error

	mu          sync.Mutex
	activates   int
	deactivates int
	refreshes   int
	modes       []smoothing.Mode
}

// Activate and Deactivate let the mock stand in as the viewer tracker's controller.
func (m *mockDashboard) Activate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activates++
}

func (m *mockDashboard) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivates++
}

func (m *mockDashboard) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
}

func (m *mockDashboard) SetSmoothing(mode smoothing.Mode, customAlpha float64) error {
	m.mu.Lock()
	m.modes = append(m.modes, mode)
	m.mu.Unlock()
	if m.setSmoothingFn != nil {
		return m.setSmoothingFn(mode, customAlpha)
	}
	return nil
}

func (m *mockDashboard) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	if m.snapshotFn != nil {
		return m.snapshotFn(ctx)
	}
	return domain.Snapshot{Status: domain.Status{Mode: string(smoothing.ModeHour), Alpha: smoothing.DefaultAlpha}}, nil
}

type mockScoreWriter struct {
	insertFn func(ctx context.Context, point domain.SeriesPoint) error

	mu     sync.Mutex
	points []domain.SeriesPoint
}

func (m *mockScoreWriter) Insert(ctx context.Context, point domain.SeriesPoint) error {
	if m.insertFn != nil {
		if err := m.insertFn(ctx, point); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, point)
	return nil
}

type staticViewers int

func (v staticViewers) ViewerCount() int { return int(v) }

// --- Test helpers ---

const testIngestToken = "ingest-secret"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, dashboard dashboardService, opts ...func(*Server)) *Server {
	t.Helper()

	tmpl := template.Must(template.New("dashboard.html").Parse(`Dashboard {{.Title}} {{range .Modes}}[{{.Value}}{{if .Selected}}*{{end}}]{{end}}`))

	srv := &Server{
		echo:      newEcho(),
		config:    &config.Config{Port: "0", SmoothingDebounce: 200 * time.Millisecond},
		dashboard: dashboard,
		templates: tmpl,
		clock:     clockwork.NewFakeClockAt(testNow),
		startTime: testNow,
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withIngest(w *mockScoreWriter) func(*Server) {
	return func(s *Server) {
		s.ingest = w
		s.config.IngestToken = testIngestToken
	}
}

func withVisibility(v headlessVisibility) func(*Server) {
	return func(s *Server) {
		s.visibility = v
	}
}

func withViewers(n int) func(*Server) {
	return func(s *Server) {
		s.viewers = staticViewers(n)
	}
}

func doRequest(t *testing.T, srv *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	require.Zero(t, len(headers)%2, "headers must be key/value pairs")

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}
