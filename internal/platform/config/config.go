package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/smoothing"
)

const (
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"

	NotifyPostgres = "postgres"
	NotifyRedis    = "redis"
	NotifyNone     = "none"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	DataSource    string `env:"DATA_SOURCE" default:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH"`
	NotifyBackend string `env:"NOTIFY_BACKEND" default:"postgres"`
	RedisURL      string `env:"REDIS_URL"`

	// IngestToken guards POST /api/scores. Empty disables the endpoint.
	IngestToken string `env:"INGEST_TOKEN"`

	LookbackDays         int           `env:"LOOKBACK_DAYS" default:"7"`
	FallbackPollInterval time.Duration `env:"FALLBACK_POLL_INTERVAL" default:"5m"`
	SmoothingDebounce    time.Duration `env:"SMOOTHING_DEBOUNCE" default:"200ms"`
	DefaultSmoothing     string        `env:"DEFAULT_SMOOTHING" default:"hour"`
	FetchTimeout         time.Duration `env:"FETCH_TIMEOUT" default:"30s"`
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SmoothingMode returns the validated startup smoothing preset.
func (c *Config) SmoothingMode() smoothing.Mode {
	m, err := smoothing.ParseMode(c.DefaultSmoothing)
	if err != nil {
		return smoothing.ModeHour
	}
	return m
}

// Load reads the environment (and an optional .env file). A returned error wrapping
// domain.ErrConfigMissing means the data source credentials are absent and the app
// should serve the configuration-error page instead of exiting.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return &cfg, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.DataSource {
	case SourcePostgres:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required", domain.ErrConfigMissing)
		}
	case SourceSQLite:
		if cfg.SQLitePath == "" {
			return fmt.Errorf("%w: SQLITE_PATH is required", domain.ErrConfigMissing)
		}
	default:
		return fmt.Errorf("DATA_SOURCE must be %q or %q, got %q", SourcePostgres, SourceSQLite, cfg.DataSource)
	}

	switch cfg.NotifyBackend {
	case NotifyPostgres:
		if cfg.DataSource != SourcePostgres {
			return errors.New("NOTIFY_BACKEND=postgres requires DATA_SOURCE=postgres")
		}
	case NotifyRedis:
		if cfg.RedisURL == "" {
			return fmt.Errorf("%w: REDIS_URL is required", domain.ErrConfigMissing)
		}
	case NotifyNone:
	default:
		return fmt.Errorf("NOTIFY_BACKEND must be %q, %q or %q, got %q", NotifyPostgres, NotifyRedis, NotifyNone, cfg.NotifyBackend)
	}

	if cfg.LookbackDays < 1 {
		return fmt.Errorf("LOOKBACK_DAYS must be at least 1, got %d", cfg.LookbackDays)
	}
	if cfg.FallbackPollInterval <= 0 {
		return errors.New("FALLBACK_POLL_INTERVAL must be positive")
	}
	if cfg.FetchTimeout <= 0 {
		return errors.New("FETCH_TIMEOUT must be positive")
	}
	mode, err := smoothing.ParseMode(cfg.DefaultSmoothing)
	if err != nil {
		return fmt.Errorf("DEFAULT_SMOOTHING: %w", err)
	}
	if mode == smoothing.ModeCustom {
		return errors.New("DEFAULT_SMOOTHING must be a preset, not custom")
	}

	return nil
}
