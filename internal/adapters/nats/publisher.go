package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/transitiq/nervecentre/internal/core/domain"
)

// Publisher implements ports.AuditPublisher on top of NATS JetStream. It
// durably records controller actions on interventions (the ops handlers
// publish "approved" and "dismissed") so a controller's decisions survive a
// store flush.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

const interventionStreamName = "INTERVENTION_EVENTS"

// interventionEvent is the envelope published for every lifecycle transition.
type interventionEvent struct {
	Kind         string              `json:"kind"`
	Intervention domain.Intervention `json:"intervention"`
	PublishedAt  time.Time           `json:"published_at"`
}

// NewPublisher connects to NATS, enables JetStream, and ensures the
// intervention-events stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streamCfg := &nats.StreamConfig{
		Name:      interventionStreamName,
		Subjects:  []string{"interventions.>"},
		Retention: nats.InterestPolicy,
		MaxAge:    30 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(streamCfg); err != nil {
		if _, err := js.UpdateStream(streamCfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", streamCfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishInterventionEvent records a lifecycle transition under a
// per-intervention-type subject, e.g. "interventions.HOLD.approved".
func (p *Publisher) PublishInterventionEvent(ctx context.Context, kind string, iv domain.Intervention) error {
	event := interventionEvent{Kind: kind, Intervention: iv, PublishedAt: time.Now().UTC()}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal intervention event: %w", err)
	}
	subject := fmt.Sprintf("interventions.%s.%s", iv.Type, kind)
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	return err
}

// Close drains in-flight publishes and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
