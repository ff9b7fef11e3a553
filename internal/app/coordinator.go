package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/platform/correlation"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/smoothing"
)

const (
	defaultLookbackDays     = 7
	defaultFallbackInterval = 5 * time.Minute
	defaultDebounceWindow   = 200 * time.Millisecond

	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
	publishTimeout = 2 * time.Second
	auditTimeout   = 5 * time.Second
	cmdBufferSize  = 256

	// maxSupersededResults bounds how many results in a row may be discarded for
	// a queued follow-up. Past it the result is applied before the follow-up runs,
	// so a steady trigger stream cannot starve publishing.
	maxSupersededResults = 3
)

// Trigger names what started a refresh cycle.
type Trigger string

const (
	TriggerActivate Trigger = "activate"
	TriggerManual   Trigger = "manual"
	TriggerPush     Trigger = "push"
	TriggerFallback Trigger = "fallback"
)

// Observer receives coordinator lifecycle signals, typically for metrics.
type Observer interface {
	RefreshCompleted(trigger string, result string, duration time.Duration)
	StaleResultDiscarded(trigger string)
	PhaseChanged(phase domain.Phase)
	ConnectionChanged(state domain.ConnectionState)
}

type nopObserver struct{}

func (nopObserver) RefreshCompleted(string, string, time.Duration) {}
func (nopObserver) StaleResultDiscarded(string)                    {}
func (nopObserver) PhaseChanged(domain.Phase)                      {}
func (nopObserver) ConnectionChanged(domain.ConnectionState)       {}

// CoordinatorConfig holds the refresh policy. Zero values fall back to defaults.
type CoordinatorConfig struct {
	LookbackDays     int
	FallbackInterval time.Duration
	DebounceWindow   time.Duration
	Mode             smoothing.Mode
	CustomAlpha      float64
}

func (c CoordinatorConfig) withDefaults() CoordinatorConfig {
	if c.LookbackDays <= 0 {
		c.LookbackDays = defaultLookbackDays
	}
	if c.FallbackInterval <= 0 {
		c.FallbackInterval = defaultFallbackInterval
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = defaultDebounceWindow
	}
	if c.Mode == "" {
		c.Mode = smoothing.ModeHour
	}
	return c
}

// coordinatorCmd is the command interface for the Coordinator actor.
type coordinatorCmd interface{ isCoordinatorCmd() }

type baseCoordinatorCmd struct{}

func (baseCoordinatorCmd) isCoordinatorCmd() {}

type activateCmd struct{ baseCoordinatorCmd }

type deactivateCmd struct{ baseCoordinatorCmd }

type refreshCmd struct {
	baseCoordinatorCmd
	trigger Trigger
}

type smoothingCmd struct {
	baseCoordinatorCmd
	mode  smoothing.Mode
	alpha float64
}

type snapshotCmd struct {
	baseCoordinatorCmd
	replyChannel chan domain.Snapshot
}

type stopCmd struct{ baseCoordinatorCmd }

// changeEvent is a push notification from the subscription with generation gen.
type changeEvent struct {
	baseCoordinatorCmd
	gen uint64
}

type statusEvent struct {
	baseCoordinatorCmd
	gen   uint64
	state domain.ConnectionState
}

type fetchResult struct {
	baseCoordinatorCmd
	ctx     context.Context
	seq     uint64
	trigger Trigger
	dataset domain.Dataset
	err     error
	elapsed time.Duration
}

// dashboardState is owned exclusively by the coordinator goroutine.
type dashboardState struct {
	phase      domain.Phase
	connection domain.ConnectionState
	active     bool
	raw        domain.Dataset
	smoothed   domain.Dataset
	hasData    bool
	mode       smoothing.Mode
	alpha      float64
	lastErr    error
	updatedAt  time.Time

	// custom alpha waiting for the debounce window
	pendingAlpha float64
}

// Coordinator owns the dashboard state and reconciles refresh triggers from
// activation, push notifications, manual requests and fallback polling.
//
// All state lives on a single goroutine; every input, including fetch completions
// and subscription callbacks, arrives as a command on cmdCh.
type Coordinator struct {
	cmdCh     chan coordinatorCmd
	clock     clockwork.Clock
	cfg       CoordinatorConfig
	source    domain.DataSource
	publisher domain.DashboardPublisher
	audit     domain.AuditLog
	observer  Observer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	state dashboardState

	// refresh bookkeeping
	seq         uint64
	inFlight    bool
	cancelFetch context.CancelFunc
	pending     Trigger
	superseded  int

	// subscription bookkeeping
	gen                 uint64
	handle              domain.Subscription
	subscribeAfterFetch bool

	fallback clockwork.Ticker
	debounce *Debouncer
}

// NewCoordinator starts the coordinator goroutine. audit and observer may be nil.
func NewCoordinator(cfg CoordinatorConfig, source domain.DataSource, publisher domain.DashboardPublisher, audit domain.AuditLog, observer Observer, clock clockwork.Clock) (*Coordinator, error) {
	cfg = cfg.withDefaults()

	alpha, err := cfg.Mode.Resolve(cfg.CustomAlpha)
	if err != nil {
		return nil, fmt.Errorf("initial smoothing: %w", err)
	}
	if observer == nil {
		observer = nopObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cmdCh:     make(chan coordinatorCmd, cmdBufferSize),
		clock:     clock,
		cfg:       cfg,
		source:    source,
		publisher: publisher,
		audit:     audit,
		observer:  observer,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state: dashboardState{
			mode:  cfg.Mode,
			alpha: alpha,
		},
		cancelFetch: func() {},
		debounce:    NewDebouncer(clock, cfg.DebounceWindow),
	}
	go c.run()
	return c, nil
}

// Activate starts the dashboard: an initial refresh, then a push subscription.
// Calling it while already active is a no-op.
func (c *Coordinator) Activate() {
	c.send(activateCmd{})
}

// Deactivate releases the subscription and stops fallback polling. Held data is kept.
func (c *Coordinator) Deactivate() {
	c.send(deactivateCmd{})
}

// Refresh requests a manual refresh.
func (c *Coordinator) Refresh() {
	c.send(refreshCmd{trigger: TriggerManual})
}

// SetSmoothing changes the smoothing mode. Presets apply immediately; a custom alpha
// applies after the debounce window. The held raw data is re-smoothed, never re-fetched.
func (c *Coordinator) SetSmoothing(mode smoothing.Mode, customAlpha float64) error {
	alpha, err := mode.Resolve(customAlpha)
	if err != nil {
		return err
	}
	c.send(smoothingCmd{mode: mode, alpha: alpha})
	return nil
}

// Snapshot returns the current dashboard state.
func (c *Coordinator) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	replyCh := make(chan domain.Snapshot, 1)
	if !c.send(snapshotCmd{replyChannel: replyCh}) {
		return domain.Snapshot{}, domain.ErrCoordinatorStopped
	}

	timer := c.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case snap := <-replyCh:
		return snap, nil
	case <-ctx.Done():
		return domain.Snapshot{}, ctx.Err()
	case <-c.done:
		return domain.Snapshot{}, domain.ErrCoordinatorStopped
	case <-timer.Chan():
		return domain.Snapshot{}, fmt.Errorf("snapshot command timed out after %v", commandTimeout)
	}
}

// Stop releases the subscription and shuts down the coordinator goroutine.
// Blocks until the goroutine has exited or the stop timeout is reached.
func (c *Coordinator) Stop() {
	if !c.send(stopCmd{}) {
		return
	}

	timeout := c.clock.NewTimer(stopTimeout)
	defer timeout.Stop()

	select {
	case <-c.done:
		slog.Info("Coordinator stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Coordinator stop timeout exceeded", "timeout", stopTimeout)
	}
}

// send enqueues a command. It reports false once the coordinator has exited.
func (c *Coordinator) send(cmd coordinatorCmd) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.cmdCh <- cmd:
		return true
	case <-c.done:
		return false
	}
}

func (c *Coordinator) run() {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Coordinator panic recovered", "panic", r)
			c.teardown()
		}
	}()

	for {
		select {
		case cmd := <-c.cmdCh:
			if _, ok := cmd.(stopCmd); ok {
				c.teardown()
				return
			}
			c.dispatch(cmd)

		case <-c.fallbackChan():
			c.handleFallbackTick()

		case <-c.debounce.C():
			c.debounce.Stop()
			c.applySmoothing(c.state.mode, c.state.pendingAlpha)
		}
	}
}

func (c *Coordinator) dispatch(cmd coordinatorCmd) {
	switch cmd := cmd.(type) {
	case activateCmd:
		c.handleActivate()
	case deactivateCmd:
		c.handleDeactivate()
	case refreshCmd:
		c.requestRefresh(cmd.trigger)
	case smoothingCmd:
		c.handleSmoothing(cmd)
	case snapshotCmd:
		cmd.replyChannel <- c.snapshot()
	case changeEvent:
		c.handleChange(cmd)
	case statusEvent:
		c.handleStatus(cmd)
	case fetchResult:
		c.handleFetchResult(cmd)
	default:
		slog.Warn("Coordinator received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
	}
}

func (c *Coordinator) handleActivate() {
	if c.state.active {
		slog.Debug("Coordinator already active")
		return
	}

	c.state.active = true
	c.subscribeAfterFetch = true
	c.requestRefresh(TriggerActivate)
	c.updateFallback()
	c.recordAudit(domain.AuditDashboardLoad)
	c.publishStatus()

	slog.Info("Dashboard activated")
}

func (c *Coordinator) handleDeactivate() {
	if !c.state.active {
		return
	}

	c.state.active = false
	c.subscribeAfterFetch = false
	c.invalidateFetch()
	c.closeSubscription()
	c.setConnection(domain.Disconnected)
	c.updateFallback()
	if c.state.phase == domain.PhaseLoading {
		c.setPhase(c.settledPhase())
	}
	c.publishStatus()

	slog.Info("Dashboard deactivated")
}

// requestRefresh starts a fetch, or coalesces into one follow-up if a fetch is in flight.
func (c *Coordinator) requestRefresh(trigger Trigger) {
	if c.inFlight {
		c.pending = trigger
		return
	}
	c.startFetch(trigger)
}

func (c *Coordinator) startFetch(trigger Trigger) {
	c.seq++
	seq := c.seq

	fetchCtx, cancel := context.WithCancel(c.ctx)
	fetchCtx = correlation.WithID(fetchCtx, correlation.NewID())
	c.cancelFetch = cancel
	c.inFlight = true
	c.pending = ""

	if c.state.phase != domain.PhaseLoading {
		c.setPhase(domain.PhaseLoading)
		c.publishStatus()
	}

	lookback := c.cfg.LookbackDays
	started := c.clock.Now()
	slog.DebugContext(fetchCtx, "Refresh started", "trigger", trigger, "seq", seq)

	go func() {
		dataset, err := c.source.FetchWindow(fetchCtx, lookback)
		c.send(fetchResult{
			ctx:     fetchCtx,
			seq:     seq,
			trigger: trigger,
			dataset: dataset,
			err:     err,
			elapsed: c.clock.Since(started),
		})
	}()
}

// invalidateFetch makes any in-flight result stale and drops a queued follow-up.
func (c *Coordinator) invalidateFetch() {
	c.seq++
	c.cancelFetch()
	c.cancelFetch = func() {}
	c.inFlight = false
	c.pending = ""
	c.superseded = 0
}

func (c *Coordinator) handleFetchResult(r fetchResult) {
	if r.seq != c.seq {
		slog.DebugContext(r.ctx, "Discarding fetch result from before deactivation", "trigger", r.trigger, "seq", r.seq)
		c.observer.StaleResultDiscarded(string(r.trigger))
		return
	}

	// r.ctx carries the correlation ID into the publish below
	release := c.cancelFetch
	defer release()
	c.cancelFetch = func() {}
	c.inFlight = false

	next := c.pending
	if next != "" && c.superseded < maxSupersededResults {
		c.superseded++
		slog.DebugContext(r.ctx, "Discarding superseded fetch result", "trigger", r.trigger, "next", next)
		c.observer.StaleResultDiscarded(string(r.trigger))
		c.startFetch(next)
		return
	}
	c.superseded = 0

	if r.err != nil {
		c.observer.RefreshCompleted(string(r.trigger), "error", r.elapsed)
		slog.WarnContext(r.ctx, "Refresh failed, keeping last known data", "trigger", r.trigger, "error", r.err)

		c.state.lastErr = r.err
		c.setPhase(domain.PhaseDegraded)
		c.publishStatus()
	} else {
		c.observer.RefreshCompleted(string(r.trigger), "success", r.elapsed)
		slog.DebugContext(r.ctx, "Refresh completed", "trigger", r.trigger, "points", r.dataset.Len(), "duration", r.elapsed)

		c.state.raw = r.dataset
		c.state.smoothed = smoothing.Smooth(r.dataset, c.state.alpha)
		c.state.hasData = true
		c.state.lastErr = nil
		c.state.updatedAt = c.clock.Now()
		c.setPhase(domain.PhaseReady)
		c.publishDataset(r.ctx)
	}

	if c.subscribeAfterFetch {
		c.subscribeAfterFetch = false
		c.subscribe()
	}

	if next != "" {
		slog.DebugContext(r.ctx, "Starting follow-up refresh after applying result", "next", next)
		c.startFetch(next)
	}
}

func (c *Coordinator) subscribe() {
	if c.handle != nil || !c.state.active {
		return
	}

	c.gen++
	gen := c.gen
	c.setConnection(domain.Connecting)
	c.updateFallback()
	c.publishStatus()

	sub, err := c.source.Subscribe(c.ctx,
		func() { c.send(changeEvent{gen: gen}) },
		func(state domain.ConnectionState) { c.send(statusEvent{gen: gen, state: state}) },
	)
	if err != nil {
		slog.Warn("Subscription failed, relying on fallback polling", "error", err)
		c.setConnection(domain.Errored)
		c.updateFallback()
		c.publishStatus()
		return
	}
	c.handle = sub
	slog.Debug("Subscription opened", "generation", gen)
}

func (c *Coordinator) closeSubscription() {
	if c.handle == nil {
		return
	}
	c.handle.Unsubscribe()
	c.handle = nil
	// events still queued from the old handle become stale
	c.gen++
}

func (c *Coordinator) handleStatus(e statusEvent) {
	if e.gen != c.gen || c.handle == nil {
		slog.Debug("Ignoring status from stale subscription", "generation", e.gen, "state", e.state)
		return
	}
	if e.state == c.state.connection {
		return
	}

	c.setConnection(e.state)
	c.updateFallback()
	c.publishStatus()

	switch e.state {
	case domain.Connected:
		slog.Info("Real-time updates connected")
	case domain.Errored, domain.Disconnected:
		slog.Warn("Real-time updates lost, fallback polling enabled", "state", e.state, "interval", c.cfg.FallbackInterval)
	}
}

func (c *Coordinator) handleChange(e changeEvent) {
	if e.gen != c.gen || c.handle == nil {
		return
	}
	c.requestRefresh(TriggerPush)
	c.recordAudit(domain.AuditRealtimeUpdate)
}

func (c *Coordinator) handleFallbackTick() {
	if !c.state.active || c.state.connection == domain.Connected {
		return
	}

	slog.Debug("Fallback poll", "connection", c.state.connection)
	c.requestRefresh(TriggerFallback)

	if c.subscribeAfterFetch {
		return
	}
	// A handle that ended cleanly (Disconnected) is left alone: a notifier
	// without a push channel reports that for good.
	if c.handle == nil || c.state.connection == domain.Errored {
		c.closeSubscription()
		c.subscribe()
	}
}

func (c *Coordinator) handleSmoothing(cmd smoothingCmd) {
	if cmd.mode == smoothing.ModeCustom {
		c.state.mode = cmd.mode
		c.state.pendingAlpha = cmd.alpha
		c.debounce.Trigger()
		return
	}
	c.debounce.Stop()
	c.applySmoothing(cmd.mode, cmd.alpha)
}

func (c *Coordinator) applySmoothing(mode smoothing.Mode, alpha float64) {
	c.state.mode = mode
	if alpha == c.state.alpha && c.state.hasData {
		c.publishStatus()
		return
	}
	c.state.alpha = alpha

	if !c.state.hasData {
		c.publishStatus()
		return
	}

	c.state.smoothed = smoothing.Smooth(c.state.raw, alpha)
	c.publishDataset(c.ctx)
	slog.Debug("Re-smoothed held data", "mode", mode, "alpha", alpha)
}

// updateFallback enables polling while active and not connected, and disables it otherwise.
func (c *Coordinator) updateFallback() {
	want := c.state.active && c.state.connection != domain.Connected

	switch {
	case want && c.fallback == nil:
		c.fallback = c.clock.NewTicker(c.cfg.FallbackInterval)
	case !want && c.fallback != nil:
		c.fallback.Stop()
		c.fallback = nil
	}
}

func (c *Coordinator) fallbackChan() <-chan time.Time {
	if c.fallback == nil {
		return nil
	}
	return c.fallback.Chan()
}

func (c *Coordinator) setPhase(phase domain.Phase) {
	if c.state.phase == phase {
		return
	}
	c.state.phase = phase
	c.observer.PhaseChanged(phase)
}

func (c *Coordinator) setConnection(state domain.ConnectionState) {
	if c.state.connection == state {
		return
	}
	c.state.connection = state
	c.observer.ConnectionChanged(state)
}

// settledPhase is the phase to fall back to when a load is abandoned.
func (c *Coordinator) settledPhase() domain.Phase {
	switch {
	case c.state.lastErr != nil:
		return domain.PhaseDegraded
	case c.state.hasData:
		return domain.PhaseReady
	default:
		return domain.PhaseIdle
	}
}

func (c *Coordinator) status() domain.Status {
	s := domain.Status{
		Phase:      c.state.phase,
		Connection: c.state.connection,
		Active:     c.state.active,
		Alpha:      c.state.alpha,
		Mode:       string(c.state.mode),
		UpdatedAt:  c.state.updatedAt,
	}
	if c.state.lastErr != nil {
		s.Error = c.state.lastErr.Error()
	}
	return s
}

// snapshot shares the dataset slices; they are never mutated after creation.
func (c *Coordinator) snapshot() domain.Snapshot {
	return domain.Snapshot{
		Status:   c.status(),
		Raw:      c.state.raw,
		Smoothed: c.state.smoothed,
	}
}

func (c *Coordinator) publishDataset(ctx context.Context) {
	ctx, _ = correlation.Ensure(ctx)
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := c.publisher.PublishDataset(ctx, c.snapshot()); err != nil {
		slog.WarnContext(ctx, "Publish dataset failed", "error", err)
	}
}

func (c *Coordinator) publishStatus() {
	ctx, _ := correlation.Ensure(c.ctx)
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := c.publisher.PublishStatus(ctx, c.status()); err != nil && !errors.Is(err, context.Canceled) {
		slog.WarnContext(ctx, "Publish status failed", "error", err)
	}
}

// recordAudit is fire-and-forget; failures are logged and never affect state.
func (c *Coordinator) recordAudit(event domain.AuditEvent) {
	if c.audit == nil {
		return
	}

	ctx := correlation.WithID(context.Background(), correlation.NewID())
	go func() {
		ctx, cancel := context.WithTimeout(ctx, auditTimeout)
		defer cancel()

		if err := c.audit.Record(ctx, event); err != nil {
			slog.DebugContext(ctx, "Audit log failed", "event", event, "error", err)
		}
	}()
}

func (c *Coordinator) teardown() {
	c.invalidateFetch()
	c.closeSubscription()
	c.debounce.Stop()
	if c.fallback != nil {
		c.fallback.Stop()
		c.fallback = nil
	}
	c.cancel()
}
