package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

const defaultFetchTimeout = 30 * time.Second

const fetchWindowQuery = `
SELECT timestamp, scores
FROM sentiment_scores
WHERE timestamp >= now() - make_interval(days => $1)
ORDER BY timestamp ASC, id ASC`

const insertScoreQuery = `INSERT INTO sentiment_scores (timestamp, scores) VALUES ($1, $2)`

// ScoreRepo reads the lookback window of sentiment scores.
// Fetches are bounded by fetchTimeout and guarded by a circuit breaker.
type ScoreRepo struct {
	pool         *pgxpool.Pool
	cb           circuitbreaker.CircuitBreaker[any]
	fetchTimeout time.Duration
}

var _ domain.ScoreSource = (*ScoreRepo)(nil)

// NewScoreRepo creates a score repository. cb may be nil to disable the breaker.
func NewScoreRepo(pool *pgxpool.Pool, cb circuitbreaker.CircuitBreaker[any], fetchTimeout time.Duration) *ScoreRepo {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &ScoreRepo{pool: pool, cb: cb, fetchTimeout: fetchTimeout}
}

func (r *ScoreRepo) FetchWindow(ctx context.Context, lookbackDays int) (domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	if r.cb != nil && !r.cb.TryAcquirePermit() {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, circuitbreaker.ErrOpen)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	dataset, err := r.fetchWindow(fetchCtx, lookbackDays)
	r.recordOutcome(ctx, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	return dataset, nil
}

// recordOutcome feeds a fetch result to the breaker. A fetch the caller gave up
// on says nothing about the database: it is not recorded while closed, and a
// half-open trial is returned as a failure so it can never close the breaker.
// failsafe-go has no way to hand a permit back unrecorded.
func (r *ScoreRepo) recordOutcome(callerCtx context.Context, err error) {
	switch {
	case r.cb == nil:
	case callerCtx.Err() != nil:
		if r.cb.IsHalfOpen() {
			r.cb.RecordError(callerCtx.Err())
		}
	case err != nil:
		r.cb.RecordError(err)
	default:
		r.cb.RecordSuccess()
	}
}

func (r *ScoreRepo) fetchWindow(ctx context.Context, lookbackDays int) (domain.Dataset, error) {
	rows, err := r.pool.Query(ctx, fetchWindowQuery, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiment scores: %w", err)
	}
	defer rows.Close()

	dataset := make(domain.Dataset, 0, 256)
	for rows.Next() {
		var ts time.Time
		var raw []byte
		if err := rows.Scan(&ts, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan sentiment score: %w", err)
		}

		values, err := domain.ParseScores(raw)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed scores row", "timestamp", ts, "error", err)
			continue
		}
		dataset = append(dataset, domain.SeriesPoint{Timestamp: ts.UTC(), Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sentiment scores: %w", err)
	}
	return dataset, nil
}

// Insert stores one point. The table trigger notifies listeners of the change.
func (r *ScoreRepo) Insert(ctx context.Context, point domain.SeriesPoint) error {
	if err := point.Validate(); err != nil {
		return err
	}

	scores, err := json.Marshal(point.Values)
	if err != nil {
		return fmt.Errorf("failed to encode scores: %w", err)
	}

	if _, err := r.pool.Exec(ctx, insertScoreQuery, point.Timestamp, scores); err != nil {
		return fmt.Errorf("failed to insert sentiment score: %w", err)
	}
	return nil
}
