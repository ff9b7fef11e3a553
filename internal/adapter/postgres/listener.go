package postgres

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

// ChangeChannel is the NOTIFY channel fed by the sentiment_scores trigger.
const ChangeChannel = "sentiment_changes"

// ChangeListener opens LISTEN subscriptions on a dedicated pool connection.
type ChangeListener struct {
	pool    *pgxpool.Pool
	channel string
}

var _ domain.ChangeNotifier = (*ChangeListener)(nil)

func NewChangeListener(pool *pgxpool.Pool) *ChangeListener {
	return &ChangeListener{pool: pool, channel: ChangeChannel}
}

// Subscribe returns immediately; the connection is established in the background
// and progress is reported through onStatus.
func (l *ChangeListener) Subscribe(ctx context.Context, onChange func(), onStatus func(domain.ConnectionState)) (domain.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	go l.listen(ctx, onChange, onStatus)
	return &listenSubscription{cancel: cancel}, nil
}

func (l *ChangeListener) listen(ctx context.Context, onChange func(), onStatus func(domain.ConnectionState)) {
	onStatus(domain.Connecting)

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		l.report(ctx, err, onStatus)
		return
	}
	// a LISTEN connection must not go back to the pool
	defer func() {
		_ = conn.Hijack().Close(context.Background())
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		l.report(ctx, err, onStatus)
		return
	}

	onStatus(domain.Connected)
	slog.Debug("Listening for sentiment changes", "channel", l.channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			l.report(ctx, err, onStatus)
			return
		}
		slog.Debug("Sentiment change notification", "channel", n.Channel, "op", n.Payload)
		onChange()
	}
}

func (l *ChangeListener) report(ctx context.Context, err error, onStatus func(domain.ConnectionState)) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		onStatus(domain.Disconnected)
		return
	}
	slog.Warn("Sentiment change listener failed", "channel", l.channel, "error", err)
	onStatus(domain.Errored)
}

type listenSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
}

// Unsubscribe stops listening. It is idempotent and does not wait for the
// connection to close.
func (s *listenSubscription) Unsubscribe() {
	s.once.Do(s.cancel)
}
