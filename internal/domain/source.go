package domain

import "context"

// ConnectionState is the lifecycle state of the push subscription.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Errored
)

func (s ConnectionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// ScoreSource fetches a bounded historical window from the backing store.
// Results are sorted ascending by timestamp. Failures wrap ErrFetch.
// Implementations own fetch timeouts; callers only react to success or failure.
type ScoreSource interface {
	FetchWindow(ctx context.Context, lookbackDays int) (Dataset, error)
}

// Subscription is a live change-notification handle.
// Unsubscribe is idempotent and safe to call on an already-closed handle.
type Subscription interface {
	Unsubscribe()
}

// ChangeNotifier opens push subscriptions on the backing store.
//
// Subscribe must not block on the network. Establishment progress and later failures
// are reported through onStatus; onChange fires for every change event. Change events
// carry no payload: consumers always refetch the full window.
type ChangeNotifier interface {
	Subscribe(ctx context.Context, onChange func(), onStatus func(ConnectionState)) (Subscription, error)
}

// DataSource is the abstract backing store consumed by the coordinator.
type DataSource interface {
	ScoreSource
	ChangeNotifier
}

// AuditEvent names a best-effort visit/update log entry.
type AuditEvent string

const (
	AuditDashboardLoad  AuditEvent = "dashboard_load"
	AuditRealtimeUpdate AuditEvent = "realtime_update"
)

// AuditLog records visit/update events. Failures are never surfaced to users.
type AuditLog interface {
	Record(ctx context.Context, event AuditEvent) error
}

// ScoreWriter stores new points. Used by producers and the ingest endpoint.
type ScoreWriter interface {
	Insert(ctx context.Context, point SeriesPoint) error
}
