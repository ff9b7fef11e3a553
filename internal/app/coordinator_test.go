package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/smoothing"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func TestCoordinator_ActivateLoadsThenSubscribes(t *testing.T) {
	source := &mockSource{fetchWindowFn: func(context.Context, int) (domain.Dataset, error) {
		return dataset(1, 0, 0), nil
	}}
	h := newTestCoordinator(t, source, CoordinatorConfig{Mode: smoothing.ModeCustom, CustomAlpha: 0.5})

	h.coordinator.Activate()

	assert.Eventually(t, func() bool { return len(h.publisher.published()) == 1 }, waitFor, tick)
	assert.Eventually(t, func() bool { return len(h.source.subscriptions()) == 1 }, waitFor, tick)

	snap := h.sync(t)
	assert.Equal(t, domain.PhaseReady, snap.Phase)
	assert.Equal(t, domain.Connecting, snap.Connection)
	assert.True(t, snap.Active)
	require.Len(t, snap.Smoothed, 3)
	assert.InDelta(t, 0.25, snap.Smoothed[2].Values["AAPL"], 1e-12)
	assert.InDelta(t, 0.0, snap.Raw[2].Values["AAPL"], 1e-12)

	assert.Eventually(t, func() bool {
		events := h.audit.recorded()
		return len(events) == 1 && events[0] == domain.AuditDashboardLoad
	}, waitFor, tick)
}

func TestCoordinator_DoubleActivateIsIdempotent(t *testing.T) {
	source := &mockSource{}
	h := newTestCoordinator(t, source, CoordinatorConfig{})

	h.coordinator.Activate()
	h.coordinator.Activate()

	assert.Eventually(t, func() bool { return len(h.source.subscriptions()) == 1 }, waitFor, tick)
	h.coordinator.Activate()
	h.sync(t)

	assert.Equal(t, 1, h.source.calls())
	assert.Len(t, h.source.subscriptions(), 1)
	assert.Equal(t, 1, h.source.liveHandles())
}

func TestCoordinator_QuickTriggersPublishOnlyLatest(t *testing.T) {
	release := make(chan struct{})
	source := &mockSource{fetchWindowFn: func(ctx context.Context, call int) (domain.Dataset, error) {
		if call == 1 {
			<-release
			return dataset(0.1), nil
		}
		return dataset(0.9), nil
	}}
	h := newTestCoordinator(t, source, CoordinatorConfig{Mode: smoothing.ModeNone})

	h.coordinator.Refresh()
	assert.Eventually(t, func() bool { return h.source.calls() == 1 }, waitFor, tick)

	h.coordinator.Refresh()
	h.coordinator.Refresh()
	h.sync(t)
	assert.Equal(t, 1, h.source.calls(), "triggers during a fetch must coalesce")

	close(release)

	assert.Eventually(t, func() bool { return len(h.publisher.published()) == 1 }, waitFor, tick)
	h.sync(t)

	published := h.publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, 0.9, published[0].Smoothed[0].Values["AAPL"])
	assert.Equal(t, 2, h.source.calls())
	assert.Equal(t, 1, h.observer.staleCount())
}

func TestCoordinator_SustainedTriggersStillPublish(t *testing.T) {
	gate := make(chan struct{})
	source := &mockSource{fetchWindowFn: func(ctx context.Context, call int) (domain.Dataset, error) {
		select {
		case <-gate:
			return dataset(float64(call) / 10), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	h := newTestCoordinator(t, source, CoordinatorConfig{Mode: smoothing.ModeNone})

	h.coordinator.Refresh()
	for call := 1; call <= maxSupersededResults+1; call++ {
		assert.Eventually(t, func() bool { return h.source.calls() == call }, waitFor, tick)
		h.coordinator.Refresh()
		h.sync(t)
		gate <- struct{}{}
	}

	// every fetch had a trigger queued behind it, yet one result got through
	assert.Eventually(t, func() bool { return len(h.publisher.published()) == 1 }, waitFor, tick)
	published := h.publisher.published()
	assert.InDelta(t, 0.4, published[0].Smoothed[0].Values["AAPL"], 1e-12)
	assert.Equal(t, maxSupersededResults, h.observer.staleCount())

	assert.Eventually(t, func() bool { return h.source.calls() == maxSupersededResults+2 }, waitFor, tick)
	gate <- struct{}{}
	assert.Eventually(t, func() bool { return len(h.publisher.published()) == 2 }, waitFor, tick)
	assert.InDelta(t, 0.5, h.publisher.published()[1].Smoothed[0].Values["AAPL"], 1e-12)
	assert.Equal(t, domain.PhaseReady, h.sync(t).Phase)
}

func TestCoordinator_DeactivateReactivateKeepsOneHandle(t *testing.T) {
	source := &mockSource{}
	h := newTestCoordinator(t, source, CoordinatorConfig{})

	h.coordinator.Activate()
	assert.Eventually(t, func() bool { return len(h.source.subscriptions()) == 1 }, waitFor, tick)

	h.coordinator.Deactivate()
	h.coordinator.Activate()

	assert.Eventually(t, func() bool { return len(h.source.subscriptions()) == 2 }, waitFor, tick)
	h.sync(t)

	subs := h.source.subscriptions()
	assert.True(t, subs[0].closed)
	assert.False(t, subs[1].closed)
	assert.Equal(t, 1, h.source.liveHandles())
}

func TestCoordinator_DeactivateKeepsDataAndDiscardsInFlight(t *testing.T) {
	release := make(chan struct{})
	source := &mockSource{fetchWindowFn: func(ctx context.Context, call int) (domain.Dataset, error) {
		if call == 1 {
			return dataset(0.4), nil
		}
		<-release
		return dataset(-0.4), nil
	}}
	h := newTestCoordinator(t, source, CoordinatorConfig{Mode: smoothing.ModeNone})

	h.coordinator.Activate()
	assert.Eventually(t, func() bool { return len(h.source.subscriptions()) == 1 }, waitFor, tick)

	h.coordinator.Refresh()
	assert.Eventually(t, func() bool { return h.source.calls() == 2 }, waitFor, tick)

	h.coordinator.Deactivate()
	h.sync(t)
	close(release)

	assert.Eventually(t, func() bool { return h.observer.staleCount() == 1 }, waitFor, tick)

	snap := h.sync(t)
	assert.False(t, snap.Active)
	assert.Equal(t, domain.PhaseReady, snap.Phase)
	assert.Equal(t, domain.Disconnected, snap.Connection)
	assert.Equal(t, 0.4, snap.Smoothed[0].Values["AAPL"])
	assert.Len(t, h.publisher.published(), 1)
	assert.Equal(t, 0, h.source.liveHandles())
}

func TestCoordinator_FetchFailureDegradesAndKeepsData(t *testing.T) {
	source := &mockSource{fetchWindowFn: func(ctx context.Context, call int) (domain.Dataset, error) {
		if call == 1 {
			return dataset(0.3), nil
		}
		return nil, errors.Join(domain.ErrFetch, errors.New("connection refused"))
	}}
	h := newTestCoordinator(t, source, CoordinatorConfig{Mode: smoothing.ModeNone})

	h.coordinator.Refresh()
	assert.Eventually(t, func() bool { return len(h.publisher.published()) == 1 }, waitFor, tick)

	h.coordinator.Refresh()
	assert.Eventually(t, func() bool { return h.peek().Phase == domain.PhaseDegraded }, waitFor, tick)

	snap := h.sync(t)
	assert.Contains(t, snap.Error, "connection refused")
	require.Len(t, snap.Smoothed, 1)
	assert.Equal(t, 0.3, snap.Smoothed[0].Values["AAPL"])
}

func TestCoordinator_FirstFetchFailureIsDegradedWithoutData(t *testing.T) {
	source := &mockSource{fetchWindowFn: func(context.Context, int) (domain.Dataset, error) {
		return nil, domain.ErrFetch
	}}
	h := newTestCoordinator(t, source, CoordinatorConfig{})

	h.coordinator.Activate()

	// the subscription is still opened after a failed initial load
	assert.Eventually(t, func() bool { return len(h.source.subscriptions()) == 1 }, waitFor, tick)
	snap := h.sync(t)
	assert.Equal(t, domain.PhaseDegraded, snap.Phase)
	assert.Empty(t, snap.Smoothed)
	assert.Empty(t, h.publisher.published())
}

func TestCoordinator_PushNotificationRefetches(t *testing.T) {
	source := &mockSource{fetchWindowFn: func(ctx context.Context, call int) (domain.Dataset, error) {
		return dataset(float64(call) / 10), nil
	}}
	h := newTestCoordinator(t, source, CoordinatorConfig{Mode: smoothing.ModeNone})

	h.coordinator.Activate()
	assert.Eventually(t, func() bool { return len(h.source.subscriptions()) == 1 }, waitFor, tick)

	sub := h.lastSubscription(t)
	sub.onStatus(domain.Connected)
	sub.onChange()

	assert.Eventually(t, func() bool { return len(h.publisher.published()) == 2 }, waitFor, tick)
	snap := h.sync(t)
	assert.Equal(t, 0.2, snap.Smoothed[0].Values["AAPL"])
	assert.Equal(t, domain.Connected, snap.Connection)

	assert.Eventually(t, func() bool { return len(h.audit.recorded()) == 2 }, waitFor, tick)
	assert.ElementsMatch(t, []domain.AuditEvent{domain.AuditDashboardLoad, domain.AuditRealtimeUpdate}, h.audit.recorded())
}

func TestCoordinator_StaleHandleEventsIgnored(t *testing.T) {
	source := &mockSource{}
	h := newTestCoordinator(t, source, CoordinatorConfig{})

	h.coordinator.Activate()
	assert.Eventually(t, func() bool { return len(h.source.subscriptions()) == 1 }, waitFor, tick)
	old := h.lastSubscription(t)

	h.coordinator.Deactivate()
	h.coordinator.Activate()
	assert.Eventually(t, func() bool { return len(h.source.subscriptions()) == 2 }, waitFor, tick)
	calls := h.source.calls()

	old.onStatus(domain.Connected)
	old.onChange()
	snap := h.sync(t)
	assert.Equal(t, domain.Connecting, snap.Connection)
	assert.Equal(t, calls, h.source.calls())

	h.lastSubscription(t).onStatus(domain.Connected)
	snap = h.sync(t)
	assert.Equal(t, domain.Connected, snap.Connection)
}

func TestCoordinator_FallbackPolling(t *testing.T) {
	source := &mockSource{}
	h := newTestCoordinator(t, source, CoordinatorConfig{FallbackInterval: 5 * time.Minute})

	h.coordinator.Activate()
	assert.Eventually(t, func() bool { return len(h.source.subscriptions()) == 1 }, waitFor, tick)

	h.lastSubscription(t).onStatus(domain.Connected)
	h.sync(t)
	calls := h.source.calls()

	// connected: polling is disabled
	h.clock.Advance(15 * time.Minute)
	h.sync(t)
	assert.Equal(t, calls, h.source.calls())

	h.lastSubscription(t).onStatus(domain.Errored)
	snap := h.sync(t)
	assert.Equal(t, domain.Errored, snap.Connection)

	h.clock.Advance(5 * time.Minute)

	// not connected: the tick refreshes and rebuilds the dead subscription
	assert.Eventually(t, func() bool { return h.source.calls() == calls+1 }, waitFor, tick)
	assert.Eventually(t, func() bool { return len(h.source.subscriptions()) == 2 }, waitFor, tick)
	h.sync(t)
	assert.Equal(t, 1, h.source.liveHandles())
}

func TestCoordinator_FallbackKeepsCleanlyEndedHandle(t *testing.T) {
	source := &mockSource{}
	h := newTestCoordinator(t, source, CoordinatorConfig{FallbackInterval: time.Minute})

	h.coordinator.Activate()
	assert.Eventually(t, func() bool { return len(h.source.subscriptions()) == 1 }, waitFor, tick)

	// a notifier without a push channel ends its subscription right away
	h.lastSubscription(t).onStatus(domain.Disconnected)
	h.sync(t)
	calls := h.source.calls()

	for i := 1; i <= 3; i++ {
		h.clock.Advance(time.Minute)
		assert.Eventually(t, func() bool { return h.source.calls() == calls+i }, waitFor, tick)
	}

	snap := h.sync(t)
	assert.Equal(t, domain.Disconnected, snap.Connection)
	assert.Len(t, h.source.subscriptions(), 1)
	assert.Equal(t, 1, h.source.liveHandles())
}

func TestCoordinator_SubscribeErrorFallsBackToPolling(t *testing.T) {
	source := &mockSource{subscribeErr: domain.ErrSubscription}
	h := newTestCoordinator(t, source, CoordinatorConfig{FallbackInterval: time.Minute})

	h.coordinator.Activate()
	assert.Eventually(t, func() bool { return h.peek().Connection == domain.Errored }, waitFor, tick)
	calls := h.source.calls()

	h.clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return h.source.calls() == calls+1 }, waitFor, tick)
}

func TestCoordinator_PresetSmoothingAppliesImmediately(t *testing.T) {
	source := &mockSource{fetchWindowFn: func(context.Context, int) (domain.Dataset, error) {
		return dataset(1, 0), nil
	}}
	h := newTestCoordinator(t, source, CoordinatorConfig{Mode: smoothing.ModeNone})

	h.coordinator.Refresh()
	assert.Eventually(t, func() bool { return len(h.publisher.published()) == 1 }, waitFor, tick)

	require.NoError(t, h.coordinator.SetSmoothing(smoothing.ModeFast, 0))
	assert.Eventually(t, func() bool { return len(h.publisher.published()) == 2 }, waitFor, tick)

	snap := h.sync(t)
	assert.Equal(t, 0.1, snap.Alpha)
	assert.Equal(t, "fast", snap.Mode)
	assert.InDelta(t, 0.9, snap.Smoothed[1].Values["AAPL"], 1e-12)
	assert.Equal(t, 1, h.source.calls(), "smoothing changes must not refetch")
}

func TestCoordinator_CustomSmoothingIsDebounced(t *testing.T) {
	source := &mockSource{fetchWindowFn: func(context.Context, int) (domain.Dataset, error) {
		return dataset(1, 0), nil
	}}
	h := newTestCoordinator(t, source, CoordinatorConfig{Mode: smoothing.ModeNone, DebounceWindow: 200 * time.Millisecond})

	h.coordinator.Refresh()
	assert.Eventually(t, func() bool { return len(h.publisher.published()) == 1 }, waitFor, tick)

	for _, a := range []float64{0.2, 0.4, 0.6, 0.8} {
		require.NoError(t, h.coordinator.SetSmoothing(smoothing.ModeCustom, a))
	}
	h.sync(t)
	assert.Len(t, h.publisher.published(), 1)

	h.clock.Advance(200 * time.Millisecond)

	assert.Eventually(t, func() bool { return len(h.publisher.published()) == 2 }, waitFor, tick)
	snap := h.sync(t)
	assert.Equal(t, 0.8, snap.Alpha)
	assert.InDelta(t, 0.2, snap.Smoothed[1].Values["AAPL"], 1e-12)
	assert.Len(t, h.publisher.published(), 2)
}

func TestCoordinator_PresetCancelsPendingCustom(t *testing.T) {
	source := &mockSource{fetchWindowFn: func(context.Context, int) (domain.Dataset, error) {
		return dataset(1, 0), nil
	}}
	h := newTestCoordinator(t, source, CoordinatorConfig{Mode: smoothing.ModeNone})

	h.coordinator.Refresh()
	assert.Eventually(t, func() bool { return len(h.publisher.published()) == 1 }, waitFor, tick)

	require.NoError(t, h.coordinator.SetSmoothing(smoothing.ModeCustom, 0.7))
	require.NoError(t, h.coordinator.SetSmoothing(smoothing.ModeSlow, 0))
	h.sync(t)

	h.clock.Advance(time.Second)
	snap := h.sync(t)
	assert.Equal(t, 0.01, snap.Alpha)
	assert.Equal(t, "slow", snap.Mode)
	assert.Len(t, h.publisher.published(), 2)
}

func TestCoordinator_SetSmoothingRejectsInvalidAlpha(t *testing.T) {
	h := newTestCoordinator(t, &mockSource{}, CoordinatorConfig{})

	err := h.coordinator.SetSmoothing(smoothing.ModeCustom, 1.5)
	assert.ErrorIs(t, err, domain.ErrInvalidAlpha)

	err = h.coordinator.SetSmoothing(smoothing.Mode("weekly"), 0)
	assert.ErrorIs(t, err, domain.ErrUnknownMode)
}

func TestCoordinator_AuditFailureIsSwallowed(t *testing.T) {
	source := &mockSource{fetchWindowFn: func(context.Context, int) (domain.Dataset, error) {
		return dataset(0.5), nil
	}}
	h := newTestCoordinator(t, source, CoordinatorConfig{})
	h.audit.recordFn = func(context.Context, domain.AuditEvent) error {
		return domain.ErrAudit
	}

	h.coordinator.Activate()

	assert.Eventually(t, func() bool { return len(h.audit.recorded()) == 1 }, waitFor, tick)
	assert.Eventually(t, func() bool { return h.peek().Phase == domain.PhaseReady }, waitFor, tick)
}

func TestCoordinator_EmptyDatasetIsReady(t *testing.T) {
	h := newTestCoordinator(t, &mockSource{}, CoordinatorConfig{})

	h.coordinator.Refresh()
	assert.Eventually(t, func() bool { return len(h.publisher.published()) == 1 }, waitFor, tick)

	snap := h.sync(t)
	assert.Equal(t, domain.PhaseReady, snap.Phase)
	assert.Empty(t, snap.Smoothed)
}

func TestCoordinator_StopReleasesSubscription(t *testing.T) {
	source := &mockSource{}
	h := newTestCoordinator(t, source, CoordinatorConfig{})

	h.coordinator.Activate()
	assert.Eventually(t, func() bool { return len(h.source.subscriptions()) == 1 }, waitFor, tick)

	h.coordinator.Stop()
	assert.Equal(t, 0, h.source.liveHandles())

	_, err := h.coordinator.Snapshot(context.Background())
	assert.ErrorIs(t, err, domain.ErrCoordinatorStopped)

	// further commands are dropped
	h.coordinator.Activate()
	h.coordinator.Stop()
}

func TestNewCoordinator_RejectsInvalidInitialSmoothing(t *testing.T) {
	_, err := NewCoordinator(CoordinatorConfig{Mode: smoothing.ModeCustom, CustomAlpha: -1}, &mockSource{}, &mockPublisher{}, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAlpha)
}
