package websocket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/centrifugal/centrifuge"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/adapter/metrics"
)

const (
	// ChannelWide carries views laid out for wide viewports.
	ChannelWide = "dashboard"
	// ChannelNarrow carries single-column views for narrow viewports.
	ChannelNarrow = "dashboard:narrow"
)

// NewNode creates a Centrifuge node for anonymous dashboard viewers.
// Call TrackViewers before running the node.
func NewNode(logLevel string) (*centrifuge.Node, error) {
	conf := centrifuge.Config{LogLevel: parseCentrifugeLogLevel(logLevel), LogHandler: slogHandler}
	node, err := centrifuge.New(conf)
	if err != nil {
		return nil, fmt.Errorf("create centrifuge node: %w", err)
	}

	node.OnConnecting(onConnecting)

	return node, nil
}

// TrackViewers lets subscriptions to the dashboard channels drive visibility.
// It is separate from NewNode because the tracker's controller publishes
// through the node.
func TrackViewers(node *centrifuge.Node, viewers *ViewerTracker, wsMetrics *metrics.WebSocketMetrics) {
	node.OnConnect(onConnect(viewers, wsMetrics))
}

func onConnecting(_ context.Context, _ centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
	// the dashboard is public; every connection is anonymous
	return centrifuge.ConnectReply{
		Credentials: &centrifuge.Credentials{UserID: ""},
	}, nil
}

func isDashboardChannel(channel string) bool {
	return channel == ChannelWide || channel == ChannelNarrow
}

func onConnect(viewers *ViewerTracker, wsMetrics *metrics.WebSocketMetrics) func(client *centrifuge.Client) {
	return func(client *centrifuge.Client) {
		slog.Debug("Client connected", "client_id", client.ID())

		if wsMetrics != nil {
			wsMetrics.ActiveConnections.Inc()
		}

		client.OnSubscribe(func(e centrifuge.SubscribeEvent, cb centrifuge.SubscribeCallback) {
			if !isDashboardChannel(e.Channel) {
				cb(centrifuge.SubscribeReply{}, centrifuge.ErrorPermissionDenied)
				return
			}
			cb(centrifuge.SubscribeReply{Options: centrifuge.SubscribeOptions{EmitPresence: true}}, nil)
			viewers.Join(e.Channel)
		})

		client.OnUnsubscribe(func(e centrifuge.UnsubscribeEvent) {
			if isDashboardChannel(e.Channel) {
				viewers.Leave(e.Channel)
			}
		})

		client.OnDisconnect(func(e centrifuge.DisconnectEvent) {
			slog.Debug("Client disconnected", "client_id", client.ID(), "reason", e.Reason)
			if wsMetrics != nil {
				wsMetrics.ActiveConnections.Dec()
			}
		})
	}
}

// SetupRedis moves the broker and presence manager to Redis so several instances
// share channels.
func SetupRedis(node *centrifuge.Node, redisAddr string) error {
	shardConfig := centrifuge.RedisShardConfig{Address: redisAddr}
	shard, err := centrifuge.NewRedisShard(node, shardConfig)
	if err != nil {
		return fmt.Errorf("create redis shard: %w", err)
	}

	brokerConfig := centrifuge.RedisBrokerConfig{Prefix: "sentiment-dashboard", Shards: []*centrifuge.RedisShard{shard}}
	broker, err := centrifuge.NewRedisBroker(node, brokerConfig)
	if err != nil {
		return fmt.Errorf("create redis broker: %w", err)
	}
	node.SetBroker(broker)

	pmConfig := centrifuge.RedisPresenceManagerConfig{Prefix: "sentiment-dashboard", Shards: []*centrifuge.RedisShard{shard}}
	presenceManager, err := centrifuge.NewRedisPresenceManager(node, pmConfig)
	if err != nil {
		return fmt.Errorf("create redis presence manager: %w", err)
	}
	node.SetPresenceManager(presenceManager)

	return nil
}

func slogHandler(entry centrifuge.LogEntry) {
	attrs := make([]any, 0, len(entry.Fields)*2)
	for k, v := range entry.Fields {
		attrs = append(attrs, k, v)
	}
	switch entry.Level {
	case centrifuge.LogLevelDebug, centrifuge.LogLevelTrace:
		slog.Debug(entry.Message, attrs...)
	case centrifuge.LogLevelInfo:
		slog.Info(entry.Message, attrs...)
	case centrifuge.LogLevelWarn:
		slog.Warn(entry.Message, attrs...)
	case centrifuge.LogLevelError:
		slog.Error(entry.Message, attrs...)
	case centrifuge.LogLevelNone:
	}
}

func parseCentrifugeLogLevel(level string) centrifuge.LogLevel {
	switch level {
	case "debug":
		return centrifuge.LogLevelDebug
	case "warn":
		return centrifuge.LogLevelWarn
	case "error":
		return centrifuge.LogLevelError
	default:
		return centrifuge.LogLevelInfo
	}
}

// PresenceChecker reports cluster-wide viewer counts from the presence manager.
type PresenceChecker struct {
	node *centrifuge.Node
}

func NewPresenceChecker(node *centrifuge.Node) *PresenceChecker {
	return &PresenceChecker{node: node}
}

// ViewerCount sums presence across both dashboard channels.
func (p *PresenceChecker) ViewerCount() int {
	total := 0
	for _, ch := range []string{ChannelWide, ChannelNarrow} {
		stats, err := p.node.PresenceStats(ch)
		if err != nil {
			continue
		}
		total += stats.NumClients
	}
	return total
}
