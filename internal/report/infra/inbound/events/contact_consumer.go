package events

import (
	"context"
	"errors"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/phoneregistry/internal/shared/events"
	sharedBus "github.com/davicafu/phoneregistry/internal/shared/infra/platform/bus"
)

type ContactProjector interface {
	Handle(ctx context.Context, evt sharedEvents.Payload) error
}

// ContactConsumer alimenta el proyector con los eventos de contact-events.
type ContactConsumer struct {
	projector ContactProjector
	log       *zap.Logger
}

func NewContactConsumer(projector ContactProjector, logger *zap.Logger) *ContactConsumer {
	return &ContactConsumer{projector: projector, log: logger}
}

func (c *ContactConsumer) Handle(ctx context.Context, body []byte) error {
	payload, err := sharedEvents.Decode(body)
	if err != nil {
		return sharedBus.Permanent(err)
	}

	if err := c.projector.Handle(ctx, payload); err != nil {
		if errors.Is(err, sharedEvents.ErrUnknownEventType) {
			return sharedBus.Permanent(err)
		}
		return err
	}
	return nil
}

func (c *ContactConsumer) Run(ctx context.Context, sub sharedBus.Subscriber) error {
	return sub.Subscribe(ctx, sharedEvents.ContactEventsQueue, c.Handle)
}
