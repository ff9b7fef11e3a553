package sqlite

import (
	"context"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
)

// PollingOnlyNotifier is the change notifier for stores without a push channel.
// Every subscription reports Disconnected right away, which keeps the coordinator
// on fallback polling.
type PollingOnlyNotifier struct{}

var _ domain.ChangeNotifier = PollingOnlyNotifier{}

func (PollingOnlyNotifier) Subscribe(_ context.Context, _ func(), onStatus func(domain.ConnectionState)) (domain.Subscription, error) {
	go onStatus(domain.Disconnected)
	return noopSubscription{}, nil
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}
