package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/phoneregistry/internal/report/domain"
	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	sharedEvents "github.com/davicafu/phoneregistry/internal/shared/events"
)

// Projector mantiene los contadores por ubicación a partir de los eventos de contactos.
type Projector struct {
	store domain.ProjectionStore
	log   *zap.Logger
	now   func() time.Time
}

func NewProjector(store domain.ProjectionStore, log *zap.Logger) *Projector {
	return &Projector{store: store, log: log, now: time.Now}
}

func (p *Projector) Handle(ctx context.Context, evt sharedEvents.Payload) error {
	switch e := evt.(type) {
	case sharedEvents.PersonUpserted:
		p.log.Debug("Persona actualizada", zap.String("person_id", e.PersonID.String()))
		return nil

	case sharedEvents.ContactUpserted:
		return p.apply(ctx, e.ContactID, membershipFor(e))

	case sharedEvents.ContactDeleted:
		return p.apply(ctx, e.ContactID, domain.Tombstone(e.ContactID, e.PersonID, p.now()))

	default:
		return fmt.Errorf("%w: %s is not a contact event", sharedEvents.ErrUnknownEventType, evt.EventType())
	}
}

func (p *Projector) apply(ctx context.Context, contactID uuid.UUID, next *domain.LocationMembership) error {
	deltas, err := p.store.ApplyMembership(ctx, contactID, next)
	if err != nil {
		return fmt.Errorf("project contact %s: %w", contactID, err)
	}
	for _, d := range deltas {
		p.log.Debug("Contador de ubicación ajustado",
			zap.String("contact_id", contactID.String()),
			zap.String("location", d.Key),
			zap.Int("delta", d.Delta),
		)
	}
	return nil
}

// membershipFor devuelve nil si el contacto no aporta ubicación (otro tipo o vacía).
func membershipFor(e sharedEvents.ContactUpserted) *domain.LocationMembership {
	if e.Type != sharedDomain.ContactLocation {
		return nil
	}
	location := e.EffectiveLocation()
	if location == "" {
		return nil
	}
	return &domain.LocationMembership{
		ContactID:   e.ContactID,
		PersonID:    e.PersonID,
		LocationKey: domain.LocationKey(location),
		Location:    location,
	}
}
