package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/adapter/httpserver"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/adapter/metrics"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/adapter/postgres"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/adapter/redis"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/adapter/sqlite"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/adapter/websocket"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/app"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/platform/breaker"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/platform/config"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/platform/logging"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/platform/retry"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/platform/version"
)

const (
	startupTimeout  = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// backend is the wired data source plus everything that must be closed on exit.
type backend struct {
	source       domain.DataSource
	audit        domain.AuditLog
	ingest       domain.ScoreWriter
	healthChecks []httpserver.HealthCheck
	redisAddr    string
	closers      []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func logRetry(component string) func(attempt int, err error, backoff time.Duration) {
	return func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Dependency not ready, retrying", "component", component, "attempt", attempt, "backoff", backoff, "error", err)
	}
}

func setupPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := retry.Do(ctx, retry.Startup(logRetry("postgres")), retry.RetryUnlessCanceled, func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL)
	})
	if err != nil {
		return nil, err
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func setupRedis(ctx context.Context, cfg *config.Config, breakerMetrics *metrics.BreakerMetrics) (*goredis.Client, error) {
	hook := redis.NewCircuitBreakerHook(breaker.New("redis", breakerMetrics.Observe))
	return retry.Do(ctx, retry.Startup(logRetry("redis")), retry.RetryUnlessCanceled, func(ctx context.Context) (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL, hook)
	})
}

func setupBackend(ctx context.Context, cfg *config.Config, clock clockwork.Clock, breakerMetrics *metrics.BreakerMetrics) (*backend, error) {
	instanceID := uuid.NewString()
	b := &backend{}

	var scores domain.ScoreSource
	var notifier domain.ChangeNotifier

	switch cfg.DataSource {
	case config.SourcePostgres:
		pool, err := setupPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)

		repo := postgres.NewScoreRepo(pool, breaker.New("postgres", breakerMetrics.Observe), cfg.FetchTimeout)
		scores = repo
		b.ingest = repo
		b.audit = postgres.NewVisitLogRepo(pool, instanceID)
		b.healthChecks = append(b.healthChecks, httpserver.HealthCheck{Name: "postgres", Check: pool.Ping})
		if cfg.NotifyBackend == config.NotifyPostgres {
			notifier = postgres.NewChangeListener(pool)
		}

	case config.SourceSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, clock, instanceID)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = store.Close() })

		scores = store
		b.ingest = store
		b.audit = store
		b.healthChecks = append(b.healthChecks, httpserver.HealthCheck{Name: "sqlite", Check: store.Ping})
	}

	switch cfg.NotifyBackend {
	case config.NotifyRedis:
		rdb, err := setupRedis(ctx, cfg, breakerMetrics)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })

		notifier = redis.NewChangeSubscriber(rdb)
		b.ingest = redis.NewAnnouncingWriter(b.ingest, rdb)
		b.redisAddr = rdb.Options().Addr
		b.healthChecks = append(b.healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	case config.NotifyNone:
		notifier = sqlite.PollingOnlyNotifier{}
	}

	b.source = app.NewComposedSource(scores, notifier)
	return b, nil
}

func setupWebsocket(cfg *config.Config, redisAddr string) *centrifuge.Node {
	node, err := websocket.NewNode(cfg.LogLevel)
	if err != nil {
		slog.Error("Failed to create websocket node", "error", err)
		os.Exit(1)
	}
	if redisAddr != "" {
		if err := websocket.SetupRedis(node, redisAddr); err != nil {
			slog.Error("Failed to set up websocket redis broker", "error", err)
			os.Exit(1)
		}
	}
	return node
}

func runGracefulShutdown(srv httpServer, cleanup func(ctx context.Context)) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		close(done)
	}()

	return done
}

func serve(srv httpServer, done <-chan struct{}) {
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	<-done
}

// serveConfigError keeps the process up with a visible error page instead of
// crash-looping when data source credentials are missing.
func serveConfigError(cfg *config.Config, cause error) {
	slog.Error("Data source not configured, serving configuration error page", "error", cause)

	srv, err := httpserver.NewConfigErrorServer(cfg, cause)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}
	serve(srv, runGracefulShutdown(srv, nil))
}

func main() {
	clock := clockwork.NewRealClock()

	cfg, cfgErr := config.Load()
	if cfgErr != nil && !errors.Is(cfgErr, domain.ErrConfigMissing) {
		// slog is not initialized yet
		log.Fatalf("Failed to load config: %v", cfgErr)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	if cfgErr != nil {
		serveConfigError(cfg, cfgErr)
		return
	}

	reg := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	wsMetrics := metrics.NewWebSocketMetrics(reg)
	coordinatorMetrics := metrics.NewCoordinatorMetrics(reg)
	breakerMetrics := metrics.NewBreakerMetrics(reg)
	ingestMetrics := metrics.NewIngestMetrics(reg)

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	b, err := setupBackend(startupCtx, cfg, clock, breakerMetrics)
	cancel()
	if err != nil {
		slog.Error("Failed to set up data source", "source", cfg.DataSource, "notify", cfg.NotifyBackend, "error", err)
		os.Exit(1)
	}
	defer b.close()

	node := setupWebsocket(cfg, b.redisAddr)
	publisher := websocket.NewPublisher(node, wsMetrics)

	coordinatorCfg := app.CoordinatorConfig{
		LookbackDays:     cfg.LookbackDays,
		FallbackInterval: cfg.FallbackPollInterval,
		DebounceWindow:   cfg.SmoothingDebounce,
		Mode:             cfg.SmoothingMode(),
	}
	coordinator, err := app.NewCoordinator(coordinatorCfg, b.source, publisher, b.audit, coordinatorMetrics, clock)
	if err != nil {
		slog.Error("Failed to create coordinator", "error", err)
		os.Exit(1)
	}

	viewers := websocket.NewViewerTracker(coordinator, wsMetrics)
	websocket.TrackViewers(node, viewers, wsMetrics)
	if err := node.Run(); err != nil {
		slog.Error("Failed to run websocket node", "error", err)
		os.Exit(1)
	}

	wsHandler := websocket.NewHandler(node, cfg.AppURL, !cfg.IsProduction())

	srv, err := httpserver.NewServer(cfg, httpserver.Deps{
		Dashboard:        coordinator,
		Ingest:           b.ingest,
		Viewers:          websocket.NewPresenceChecker(node),
		Visibility:       viewers,
		WebsocketHandler: wsHandler,
		MetricsHandler:   metrics.Handler(reg),
		HTTPMetrics:      httpMetrics,
		IngestMetrics:    ingestMetrics,
		HealthChecks:     b.healthChecks,
		Clock:            clock,
	})
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(srv, func(ctx context.Context) {
		coordinator.Stop()
		if err := node.Shutdown(ctx); err != nil {
			slog.Error("Websocket node shutdown error", "error", err)
		}
	})

	serve(srv, done)
}
