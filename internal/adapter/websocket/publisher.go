package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/centrifugal/centrifuge"

	"github.com/igorrivin/vite-sentiment-dashboard/internal/adapter/metrics"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/domain"
	"github.com/igorrivin/vite-sentiment-dashboard/internal/render"
)

const (
	messageDataset = "dataset"
	messageStatus  = "status"
)

type datasetMessage struct {
	Type string               `json:"type"`
	View render.DashboardView `json:"view"`
}

type statusMessage struct {
	Type   string              `json:"type"`
	Status render.StatusBanner `json:"status"`
	Alpha  float64             `json:"alpha"`
	Mode   string              `json:"mode"`
}

// channelPublisher is the subset of *centrifuge.Node used for publishing.
type channelPublisher interface {
	Publish(channel string, data []byte, opts ...centrifuge.PublishOption) (centrifuge.PublishResult, error)
}

// Publisher renders dashboard snapshots into per-layout views and pushes them
// to the dashboard channels.
type Publisher struct {
	node      channelPublisher
	wsMetrics *metrics.WebSocketMetrics
}

var _ domain.DashboardPublisher = (*Publisher)(nil)

func NewPublisher(node channelPublisher, wsMetrics *metrics.WebSocketMetrics) *Publisher {
	return &Publisher{node: node, wsMetrics: wsMetrics}
}

func (p *Publisher) PublishDataset(_ context.Context, snapshot domain.Snapshot) error {
	layouts := []struct {
		channel string
		columns int
	}{
		{ChannelWide, render.WideColumns},
		{ChannelNarrow, render.NarrowColumns},
	}

	for _, l := range layouts {
		msg := datasetMessage{Type: messageDataset, View: render.BuildView(snapshot, l.columns)}
		if err := p.publish(messageDataset, l.channel, msg); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) PublishStatus(_ context.Context, status domain.Status) error {
	msg := statusMessage{
		Type:   messageStatus,
		Status: render.BuildStatus(status),
		Alpha:  status.Alpha,
		Mode:   status.Mode,
	}
	for _, ch := range []string{ChannelWide, ChannelNarrow} {
		if err := p.publish(messageStatus, ch, msg); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publish(kind, channel string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal dashboard message: %w", err)
	}

	if _, err := p.node.Publish(channel, data); err != nil {
		if p.wsMetrics != nil {
			p.wsMetrics.PublishFailures.WithLabelValues(kind).Inc()
		}
		return fmt.Errorf("publish %s to channel %s: %w", kind, channel, err)
	}

	if p.wsMetrics != nil {
		p.wsMetrics.MessagesPublished.WithLabelValues(kind, channel).Inc()
	}
	return nil
}
