package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
	apperrors "github.com/igorrivin/vite-sentiment-dashboard/internal/platform/errors"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/render"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/smoothing"
)

const (
	pageTitle     = "Ticker Sentiment Dashboard"
	websocketPath = "/connection/websocket"
)

var modeLabels = map[smoothing.Mode]string{
	smoothing.ModeNone:   "No smoothing",
	smoothing.ModeFast:   "Fast (α = 0.1)",
	smoothing.ModeHour:   "~1 hour (α = 0.033)",
	smoothing.ModeSlow:   "Slow (α = 0.01)",
	smoothing.ModeCustom: "Custom",
}

type modeOption struct {
	Value    string
	Label    string
	Selected bool
}

type pageData struct {
	Title         string
	Modes         []modeOption
	Alpha         float64
	Breakpoint    int
	DebounceMs    int64
	WebsocketPath string
}

type statusResponse struct {
	Status  domain.Status       `json:"status"`
	Banner  render.StatusBanner `json:"banner"`
	Viewers int                 `json:"viewers"`
}

func (s *Server) registerDashboardRoutes() {
	s.echo.GET("/", s.handleDashboardPage)
	s.echo.GET("/api/dashboard", s.handleDashboardView)
	s.echo.GET("/api/status", s.handleStatus)
}

func (s *Server) handleDashboardPage(c echo.Context) error {
	snapshot, err := s.dashboard.Snapshot(c.Request().Context())
	if err != nil {
		return apperrors.FromDomain(err)
	}

	modes := make([]modeOption, 0, len(smoothing.Modes()))
	for _, m := range smoothing.Modes() {
		modes = append(modes, modeOption{
			Value:    string(m),
			Label:    modeLabels[m],
			Selected: string(m) == snapshot.Mode,
		})
	}

	data := pageData{
		Title:         pageTitle,
		Modes:         modes,
		Alpha:         snapshot.Alpha,
		Breakpoint:    render.NarrowBreakpoint,
		DebounceMs:    s.config.SmoothingDebounce.Milliseconds(),
		WebsocketPath: websocketPath,
	}
	return s.renderTemplate(c, http.StatusOK, "dashboard.html", data)
}

// layoutColumns picks the grid width from ?layout=wide|narrow or ?width=<px>.
func layoutColumns(c echo.Context) (int, error) {
	switch layout := c.QueryParam("layout"); layout {
	case "narrow":
		return render.NarrowColumns, nil
	case "wide":
		return render.WideColumns, nil
	case "":
	default:
		return 0, apperrors.ValidationError("layout must be 'wide' or 'narrow'").WithField("layout", layout)
	}

	raw := c.QueryParam("width")
	if raw == "" {
		return render.WideColumns, nil
	}
	width, err := strconv.Atoi(raw)
	if err != nil || width <= 0 {
		return 0, apperrors.ValidationError("width must be a positive integer").WithField("width", raw)
	}
	return render.ColumnsFor(render.IsNarrow(width)), nil
}

func (s *Server) handleDashboardView(c echo.Context) error {
	columns, err := layoutColumns(c)
	if err != nil {
		return err
	}

	snapshot, err := s.dashboard.Snapshot(c.Request().Context())
	if err != nil {
		return apperrors.FromDomain(err)
	}

	return s.sendJSON(c, http.StatusOK, render.BuildView(snapshot, columns))
}

func (s *Server) handleStatus(c echo.Context) error {
	snapshot, err := s.dashboard.Snapshot(c.Request().Context())
	if err != nil {
		return apperrors.FromDomain(err)
	}

	resp := statusResponse{
		Status: snapshot.Status,
		Banner: render.BuildStatus(snapshot.Status),
	}
	if s.viewers != nil {
		resp.Viewers = s.viewers.ViewerCount()
	}
	return s.sendJSON(c, http.StatusOK, resp)
}
