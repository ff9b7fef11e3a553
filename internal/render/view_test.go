package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

func TestBuildView(t *testing.T) {
	snapshot := domain.Snapshot{
		Status: domain.Status{
			Phase:      domain.PhaseReady,
			Connection: domain.Connected,
			Alpha:      0.1,
			Mode:       "fast",
		},
		Smoothed: domain.Dataset{point(0, map[string]float64{"AAPL": 0.2})},
	}

	view := BuildView(snapshot, WideColumns)

	assert.Equal(t, 0.1, view.Alpha)
	assert.Equal(t, "fast", view.Mode)
	assert.True(t, view.Status.Live)
	assert.Equal(t, "ready", view.Status.Phase)
	assert.Len(t, view.Chart.Charts, 1)
	assert.Len(t, view.Latest.Rows, 1)
}

func TestBuildStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.Status
		live     bool
		contains string
	}{
		{"live", domain.Status{Phase: domain.PhaseReady, Connection: domain.Connected}, true, "Live data streaming"},
		{"connecting", domain.Status{Phase: domain.PhaseLoading, Connection: domain.Connecting}, false, "Connecting"},
		{"reconnecting", domain.Status{Phase: domain.PhaseReady, Connection: domain.Errored}, false, "trying to reconnect"},
		{"degraded", domain.Status{Phase: domain.PhaseDegraded, Connection: domain.Connected, Error: "boom"}, true, "last known scores"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			banner := BuildStatus(tt.status)
			assert.Equal(t, tt.live, banner.Live)
			assert.Contains(t, banner.Message, tt.contains)
			assert.Equal(t, tt.status.Error, banner.Error)
		})
	}
}
