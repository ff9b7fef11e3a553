package websocket

import (
	"log/slog"
	"sync"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/adapter/metrics"
)

// VisibilityController is told when the dashboard gains its first viewer and
// loses its last one.
type VisibilityController interface {
	Activate()
	Deactivate()
}

// ViewerTracker counts local dashboard viewers. The first viewer activates the
// dashboard, the last one leaving deactivates it.
//
// Websocket subscriptions and headless clients (visibility API) are counted
// separately: a headless leave only cancels a headless join, so an API call can
// never deactivate the dashboard under connected browsers.
type ViewerTracker struct {
	controller VisibilityController
	wsMetrics  *metrics.WebSocketMetrics

	mu       sync.Mutex
	count    int
	headless int
}

func NewViewerTracker(controller VisibilityController, wsMetrics *metrics.WebSocketMetrics) *ViewerTracker {
	return &ViewerTracker{controller: controller, wsMetrics: wsMetrics}
}

// Join registers a websocket subscription to channel.
func (t *ViewerTracker) Join(channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.count++
	t.observe()
	t.joined("channel", channel)
}

// Leave drops a websocket subscription. Extra leaves are ignored.
func (t *ViewerTracker) Leave(channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return
	}
	t.count--
	t.observe()
	t.left("channel", channel)
}

// JoinHeadless registers a client that renders the dashboard without a websocket.
func (t *ViewerTracker) JoinHeadless() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.headless++
	t.joined("source", "api")
}

// LeaveHeadless cancels one JoinHeadless. Without a matching join it is a no-op.
func (t *ViewerTracker) LeaveHeadless() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.headless == 0 {
		return
	}
	t.headless--
	t.left("source", "api")
}

// Count returns the websocket viewers on this instance.
func (t *ViewerTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *ViewerTracker) total() int {
	return t.count + t.headless
}

func (t *ViewerTracker) joined(key, value string) {
	if t.total() == 1 {
		slog.Info("First viewer joined, activating dashboard", key, value)
		t.controller.Activate()
	}
}

func (t *ViewerTracker) left(key, value string) {
	if t.total() == 0 {
		slog.Info("Last viewer left, deactivating dashboard", key, value)
		t.controller.Deactivate()
	}
}

func (t *ViewerTracker) observe() {
	if t.wsMetrics != nil {
		t.wsMetrics.Viewers.Set(float64(t.count))
	}
}
