package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

// VisitLogRepo records dashboard audit events.
type VisitLogRepo struct {
	pool       *pgxpool.Pool
	instanceID string
}

var _ domain.AuditLog = (*VisitLogRepo)(nil)

func NewVisitLogRepo(pool *pgxpool.Pool, instanceID string) *VisitLogRepo {
	return &VisitLogRepo{pool: pool, instanceID: instanceID}
}

func (r *VisitLogRepo) Record(ctx context.Context, event domain.AuditEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO visit_logs (id, timestamp, event, instance_id) VALUES ($1, now(), $2, $3)`,
		uuid.New(), string(event), r.instanceID,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAudit, err)
	}
	return nil
}

// Count returns how many events of the given kind were recorded.
func (r *VisitLogRepo) Count(ctx context.Context, event domain.AuditEvent) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM visit_logs WHERE event = $1`, string(event)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count visit logs: %w", err)
	}
	return n, nil
}
