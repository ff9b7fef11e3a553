package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

// ChangeChannel carries "scores changed" events from producers. The payload is
// informational only; subscribers always refetch.
const ChangeChannel = "sentiment:changes"

// healthCheckInterval is how long the subscription may stay silent before it
// is pinged. A ping left unanswered for another interval fails the subscription.
const healthCheckInterval = 15 * time.Second

// ChangeSubscriber delivers store changes over Redis pub/sub.
//
// A lost connection is reported as Errored and ends the subscription; the
// caller decides when to subscribe again.
type ChangeSubscriber struct {
	rdb         *goredis.Client
	channel     string
	healthCheck time.Duration
}

var _ domain.ChangeNotifier = (*ChangeSubscriber)(nil)

func NewChangeSubscriber(rdb *goredis.Client) *ChangeSubscriber {
	return &ChangeSubscriber{rdb: rdb, channel: ChangeChannel, healthCheck: healthCheckInterval}
}

// Subscribe returns without touching the network. Connecting, the SUBSCRIBE
// round trip and the confirmation all happen in the background and are
// reported through onStatus.
func (s *ChangeSubscriber) Subscribe(ctx context.Context, onChange func(), onStatus func(domain.ConnectionState)) (domain.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	pubsub := s.rdb.Subscribe(ctx)
	sub := &pubsubSubscription{pubsub: pubsub, cancel: cancel}

	go s.run(ctx, pubsub, onChange, onStatus)
	return sub, nil
}

func (s *ChangeSubscriber) run(ctx context.Context, pubsub *goredis.PubSub, onChange func(), onStatus func(domain.ConnectionState)) {
	onStatus(domain.Connecting)

	if err := pubsub.Subscribe(ctx, s.channel); err != nil {
		s.fail(ctx, "subscribe", err, onStatus)
		return
	}

	awaitingPong := false
	for {
		msg, err := pubsub.ReceiveTimeout(ctx, s.healthCheck)
		if err != nil {
			if !isTimeout(err) || ctx.Err() != nil {
				s.fail(ctx, "receive", err, onStatus)
				return
			}
			if awaitingPong {
				s.fail(ctx, "health check", errors.New("ping not answered"), onStatus)
				return
			}
			if err := pubsub.Ping(ctx); err != nil {
				s.fail(ctx, "health check", err, onStatus)
				return
			}
			awaitingPong = true
			continue
		}
		awaitingPong = false

		switch m := msg.(type) {
		case *goredis.Subscription:
			if m.Kind == "subscribe" {
				onStatus(domain.Connected)
			}
		case *goredis.Message:
			slog.Debug("Sentiment change via pub/sub", "channel", m.Channel, "payload", m.Payload)
			onChange()
		case *goredis.Pong:
		}
	}
}

// fail reports the end of the subscription. Errors caused by Unsubscribe are a
// clean disconnect.
func (s *ChangeSubscriber) fail(ctx context.Context, stage string, err error, onStatus func(domain.ConnectionState)) {
	if ctx.Err() != nil {
		onStatus(domain.Disconnected)
		return
	}
	slog.Warn("Redis change subscription lost", "channel", s.channel, "stage", stage, "error", err)
	onStatus(domain.Errored)
}

func isTimeout(err error) bool {
	netErr, ok := errors.AsType[net.Error](err)
	return ok && netErr.Timeout()
}

type pubsubSubscription struct {
	once   sync.Once
	pubsub *goredis.PubSub
	cancel context.CancelFunc
}

// Unsubscribe does not block. Close waits for an in-flight dial to finish, so
// it runs in the background; the reader sees the cancelled context and reports
// Disconnected.
func (s *pubsubSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		go func() { _ = s.pubsub.Close() }()
	})
}

// PublishChange announces that the score store changed.
func PublishChange(ctx context.Context, rdb *goredis.Client, op string) error {
	if err := rdb.Publish(ctx, ChangeChannel, op).Err(); err != nil {
		return fmt.Errorf("failed to publish sentiment change: %w", err)
	}
	return nil
}

// AnnouncingWriter publishes a change event after every successful insert.
// Used when the store itself cannot push notifications.
type AnnouncingWriter struct {
	next domain.ScoreWriter
	rdb  *goredis.Client
}

var _ domain.ScoreWriter = (*AnnouncingWriter)(nil)

func NewAnnouncingWriter(next domain.ScoreWriter, rdb *goredis.Client) *AnnouncingWriter {
	return &AnnouncingWriter{next: next, rdb: rdb}
}

func (w *AnnouncingWriter) Insert(ctx context.Context, point domain.SeriesPoint) error {
	if err := w.next.Insert(ctx, point); err != nil {
		return err
	}
	if err := PublishChange(ctx, w.rdb, "INSERT"); err != nil {
		slog.WarnContext(ctx, "Score stored but change announcement failed", "error", err)
	}
	return nil
}
