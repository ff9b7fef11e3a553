// Package render turns dashboard snapshots into the view models the browser draws:
// a grid of per-ticker charts, the latest-scores table and a status banner.
package render

import (
	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

// StatusBanner describes the connection indicator and error affordance.
type StatusBanner struct {
	Phase      string `json:"phase"`
	Connection string `json:"connection"`
	Live       bool   `json:"live"`
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
}

// DashboardView is the full payload pushed to a browser.
type DashboardView struct {
	Status StatusBanner `json:"status"`
	Alpha  float64      `json:"alpha"`
	Mode   string       `json:"mode"`
	Chart  ChartView    `json:"chart"`
	Latest LatestView   `json:"latest"`
}

// BuildView renders a snapshot for a grid with the given column count.
func BuildView(snapshot domain.Snapshot, columns int) DashboardView {
	return DashboardView{
		Status: BuildStatus(snapshot.Status),
		Alpha:  snapshot.Alpha,
		Mode:   snapshot.Mode,
		Chart:  BuildChart(snapshot.Smoothed, columns),
		Latest: BuildLatest(snapshot.Smoothed),
	}
}

// BuildStatus renders the connection indicator text.
func BuildStatus(status domain.Status) StatusBanner {
	banner := StatusBanner{
		Phase:      status.Phase.String(),
		Connection: status.Connection.String(),
		Live:       status.Connection == domain.Connected,
		Error:      status.Error,
	}

	switch status.Connection {
	case domain.Connected:
		banner.Message = "Real-time updates active - Live data streaming"
	case domain.Connecting:
		banner.Message = "Connecting to real-time updates..."
	case domain.Errored:
		banner.Message = "Real-time updates disconnected - Connection error"
	default:
		banner.Message = "Real-time updates disconnected"
	}

	if status.Phase == domain.PhaseDegraded {
		banner.Message += " - Error loading data, showing last known scores"
	} else if status.Phase == domain.PhaseReady && status.Connection != domain.Connected {
		banner.Message += " - Data loaded, trying to reconnect..."
	}
	return banner
}
