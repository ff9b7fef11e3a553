package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), clockwork.NewFakeClockAt(now), "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_FetchWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, domain.SeriesPoint{Timestamp: now.Add(-time.Hour), Values: map[string]float64{"AAPL": 0.5}}))
	require.NoError(t, s.Insert(ctx, domain.SeriesPoint{Timestamp: now.Add(-2 * time.Hour), Values: map[string]float64{"AAPL": 0.1, "MSFT": -0.2}}))
	require.NoError(t, s.Insert(ctx, domain.SeriesPoint{Timestamp: now.AddDate(0, 0, -8), Values: map[string]float64{"AAPL": 0.9}}))

	dataset, err := s.FetchWindow(ctx, 7)
	require.NoError(t, err)
	require.Len(t, dataset, 2)

	assert.Equal(t, now.Add(-2*time.Hour), dataset[0].Timestamp)
	assert.Equal(t, map[string]float64{"AAPL": 0.1, "MSFT": -0.2}, dataset[0].Values)
	assert.Equal(t, now.Add(-time.Hour), dataset[1].Timestamp)
}

func TestStore_FetchWindow_Empty(t *testing.T) {
	s := newTestStore(t)

	dataset, err := s.FetchWindow(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, dataset)
}

func TestStore_FetchWindow_SkipsMalformedRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO sentiment_scores (timestamp, scores) VALUES (?, ?)`, now.UnixNano(), "not json")
	require.NoError(t, err)
	_, err = s.db.Exec(`INSERT INTO sentiment_scores (timestamp, scores) VALUES (?, ?)`, now.UnixNano(), `{"timestamp":"x","TSLA":-0.6}`)
	require.NoError(t, err)

	dataset, err := s.FetchWindow(ctx, 7)
	require.NoError(t, err)
	require.Len(t, dataset, 1)
	assert.Equal(t, map[string]float64{"TSLA": -0.6}, dataset[0].Values)
}

func TestStore_FetchWindow_ClosedDatabase(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.FetchWindow(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestStore_Insert_RejectsInvalidPoint(t *testing.T) {
	s := newTestStore(t)

	err := s.Insert(context.Background(), domain.SeriesPoint{Timestamp: now, Values: map[string]float64{"timestamp": 1}})
	assert.ErrorIs(t, err, domain.ErrInvalidPoint)
}

func TestStore_Record(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.AuditDashboardLoad))
	require.NoError(t, s.Record(ctx, domain.AuditRealtimeUpdate))

	n, err := s.CountVisits(ctx, domain.AuditDashboardLoad)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPollingOnlyNotifier(t *testing.T) {
	states := make(chan domain.ConnectionState, 1)

	sub, err := PollingOnlyNotifier{}.Subscribe(context.Background(), func() {}, func(s domain.ConnectionState) {
		states <- s
	})
	require.NoError(t, err)

	select {
	case s := <-states:
		assert.Equal(t, domain.Disconnected, s)
	case <-time.After(time.Second):
		t.Fatal("expected a status report")
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
}
