package domain

import (
	"context"
	"time"
)

// Phase is the refresh lifecycle state of the dashboard.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseDegraded // last fetch failed; held data is stale
)

// MarshalText renders the phase by name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Status is the dashboard's lifecycle summary without data.
type Status struct {
	Phase      Phase           `json:"phase"`
	Connection ConnectionState `json:"connection"`
	Active     bool            `json:"active"`
	Alpha      float64         `json:"alpha"`
	Mode       string          `json:"mode"`
	Error      string          `json:"error,omitempty"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Snapshot is the dashboard's published state: raw and smoothed data plus status.
type Snapshot struct {
	Status
	Raw      Dataset `json:"-"`
	Smoothed Dataset `json:"smoothed"`
}

// DashboardPublisher is the presentation sink. It renders whatever it receives.
type DashboardPublisher interface {
	PublishDataset(ctx context.Context, snapshot Snapshot) error
	PublishStatus(ctx context.Context, status Status) error
}
