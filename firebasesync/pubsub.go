package firebasesync

import (
	"context"

	"bitbucket.org/mmdatafocus/roadworks_backend/config"
)

// EventPublisher announces finished runs. Failures are logged by the caller and
// never change the outcome of a run.
type EventPublisher interface {
	Publish(ctx context.Context, event SyncCompletedEvent) error
}

type pubSubPublisher struct {
	topic string
}

// NewPubSubPublisher publishes to topic; an empty topic gives a no-op publisher.
func NewPubSubPublisher(topic string) EventPublisher {
	if topic == "" {
		return nopPublisher{}
	}
	return &pubSubPublisher{topic: topic}
}

func (p *pubSubPublisher) Publish(ctx context.Context, event SyncCompletedEvent) error {
	_, err := config.PublishJSON(ctx, p.topic, event)
	return err
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, SyncCompletedEvent) error { return nil }
