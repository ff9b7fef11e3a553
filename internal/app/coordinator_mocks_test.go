package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

// --- Mock implementations ---

type mockSubscription struct {
	source   *mockSource
	onChange func()
	onStatus func(domain.ConnectionState)

	mu     sync.Mutex
	closed bool
}

func (s *mockSubscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.source.mu.Lock()
	s.source.live--
	s.source.mu.Unlock()
}

type mockSource struct {
	fetchWindowFn func(ctx context.Context, call int) (domain.Dataset, error)
	subscribeErr  error

	mu         sync.Mutex
	fetchCalls int
	subs       []*mockSubscription
	live       int
}

func (m *mockSource) FetchWindow(ctx context.Context, _ int) (domain.Dataset, error) {
	m.mu.Lock()
	m.fetchCalls++
	call := m.fetchCalls
	m.mu.Unlock()

	if m.fetchWindowFn != nil {
		return m.fetchWindowFn(ctx, call)
	}
	return domain.Dataset{}, nil
}

func (m *mockSource) Subscribe(_ context.Context, onChange func(), onStatus func(domain.ConnectionState)) (domain.Subscription, error) {
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &mockSubscription{source: m, onChange: onChange, onStatus: onStatus}
	m.subs = append(m.subs, sub)
	m.live++
	return sub, nil
}

func (m *mockSource) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

func (m *mockSource) subscriptions() []*mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*mockSubscription(nil), m.subs...)
}

func (m *mockSource) liveHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

type mockPublisher struct {
	mu       sync.Mutex
	datasets []domain.Snapshot
	statuses []domain.Status
}

func (m *mockPublisher) PublishDataset(_ context.Context, snapshot domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets = append(m.datasets, snapshot)
	return nil
}

func (m *mockPublisher) PublishStatus(_ context.Context, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *mockPublisher) published() []domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Snapshot(nil), m.datasets...)
}

type mockAudit struct {
	recordFn func(ctx context.Context, event domain.AuditEvent) error

	mu     sync.Mutex
	events []domain.AuditEvent
}

func (m *mockAudit) Record(ctx context.Context, event domain.AuditEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.recordFn != nil {
		return m.recordFn(ctx, event)
	}
	return nil
}

func (m *mockAudit) recorded() []domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEvent(nil), m.events...)
}

type mockObserver struct {
	mu    sync.Mutex
	stale int
}

func (m *mockObserver) RefreshCompleted(string, string, time.Duration) {}
func (m *mockObserver) PhaseChanged(domain.Phase)                      {}
func (m *mockObserver) ConnectionChanged(domain.ConnectionState)       {}

func (m *mockObserver) StaleResultDiscarded(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale++
}

func (m *mockObserver) staleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stale
}

// --- Helpers ---

type coordinatorHarness struct {
	coordinator *Coordinator
	clock       *clockwork.FakeClock
	source      *mockSource
	publisher   *mockPublisher
	audit       *mockAudit
	observer    *mockObserver
}

func newTestCoordinator(t *testing.T, source *mockSource, cfg CoordinatorConfig) *coordinatorHarness {
	t.Helper()

	h := &coordinatorHarness{
		clock:     clockwork.NewFakeClock(),
		source:    source,
		publisher: &mockPublisher{},
		audit:     &mockAudit{},
		observer:  &mockObserver{},
	}

	c, err := NewCoordinator(cfg, source, h.publisher, h.audit, h.observer, h.clock)
	require.NoError(t, err)
	h.coordinator = c
	t.Cleanup(c.Stop)
	return h
}

// sync waits until every command sent so far has been processed.
func (h *coordinatorHarness) sync(t *testing.T) domain.Snapshot {
	t.Helper()
	snap, err := h.coordinator.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

// peek is sync for use inside assert.Eventually conditions.
func (h *coordinatorHarness) peek() domain.Snapshot {
	snap, _ := h.coordinator.Snapshot(context.Background())
	return snap
}

func (h *coordinatorHarness) lastSubscription(t *testing.T) *mockSubscription {
	t.Helper()
	subs := h.source.subscriptions()
	require.NotEmpty(t, subs)
	return subs[len(subs)-1]
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dataset(values ...float64) domain.Dataset {
	d := make(domain.Dataset, len(values))
	for i, v := range values {
		d[i] = domain.SeriesPoint{
			Timestamp: t0.Add(time.Duration(i) * 2 * time.Minute),
			Values:    map[string]float64{"AAPL": v},
		}
	}
	return d
}
