// Package sqlite provides a local, file-backed score store for development and
// single-node deployments. It has no push channel; pair it with the polling-only
// notifier or the Redis change channel.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

// Store wraps a SQLite database holding scores and visit logs.
type Store struct {
	db         *sql.DB
	clock      clockwork.Clock
	instanceID string
}

var (
	_ domain.ScoreSource = (*Store)(nil)
	_ domain.ScoreWriter = (*Store)(nil)
	_ domain.AuditLog    = (*Store)(nil)
)

// Open opens or creates the database at dbPath.
// An empty dbPath defaults to $TMPDIR/sentiment-dashboard/data.db.
func Open(dbPath string, clock clockwork.Clock, instanceID string) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "sentiment-dashboard", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &Store{db: db, clock: clock, instanceID: instanceID}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	slog.Info("SQLite store opened", "path", dbPath)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sentiment_scores (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			scores    TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sentiment_scores_timestamp ON sentiment_scores(timestamp)`,
		`CREATE TABLE IF NOT EXISTS visit_logs (
			id          TEXT PRIMARY KEY,
			timestamp   INTEGER NOT NULL,
			event       TEXT NOT NULL,
			instance_id TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) FetchWindow(ctx context.Context, lookbackDays int) (domain.Dataset, error) {
	cutoff := s.clock.Now().AddDate(0, 0, -lookbackDays)

	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, scores FROM sentiment_scores WHERE timestamp >= ? ORDER BY timestamp ASC, id ASC`,
		cutoff.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query sentiment scores: %w", domain.ErrFetch, err)
	}
	defer rows.Close()

	var dataset domain.Dataset
	for rows.Next() {
		var ts int64
		var raw string
		if err := rows.Scan(&ts, &raw); err != nil {
			return nil, fmt.Errorf("%w: failed to scan sentiment score: %w", domain.ErrFetch, err)
		}

		values, err := domain.ParseScores([]byte(raw))
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed scores row", "timestamp", ts, "error", err)
			continue
		}
		dataset = append(dataset, domain.SeriesPoint{Timestamp: time.Unix(0, ts).UTC(), Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read sentiment scores: %w", domain.ErrFetch, err)
	}
	return dataset, nil
}

func (s *Store) Insert(ctx context.Context, point domain.SeriesPoint) error {
	if err := point.Validate(); err != nil {
		return err
	}

	scores, err := json.Marshal(point.Values)
	if err != nil {
		return fmt.Errorf("failed to encode scores: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sentiment_scores (timestamp, scores) VALUES (?, ?)`,
		point.Timestamp.UnixNano(), string(scores),
	); err != nil {
		return fmt.Errorf("failed to insert sentiment score: %w", err)
	}
	return nil
}

func (s *Store) Record(ctx context.Context, event domain.AuditEvent) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO visit_logs (id, timestamp, event, instance_id) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), s.clock.Now().UnixNano(), string(event), s.instanceID,
	); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAudit, err)
	}
	return nil
}

// CountVisits returns how many events of the given kind were recorded.
func (s *Store) CountVisits(ctx context.Context, event domain.AuditEvent) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM visit_logs WHERE event = ?`, string(event)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count visit logs: %w", err)
	}
	return n, nil
}
