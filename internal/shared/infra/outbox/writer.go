package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	sharedEvents "github.com/davicafu/phoneregistry/internal/shared/events"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
)

// Appender es la parte de OutboxRepository que usa el writer.
type Appender interface {
	Append(ctx context.Context, tx persistence.DBTX, evt sharedDomain.OutboxEvent) error
}

// Writer añade eventos a la outbox dentro de la transacción del llamador.
// Nunca abre transacciones propias ni habla con el bus.
type Writer struct {
	store Appender
	now   func() time.Time
}

func NewWriter(store Appender) *Writer {
	return &Writer{store: store, now: time.Now}
}

// Enqueue serializa el payload y lo inserta como Pending. Cualquier error debe abortar
// la transacción del llamador.
func (w *Writer) Enqueue(ctx context.Context, tx persistence.DBTX, payload sharedEvents.Payload) (sharedDomain.OutboxEvent, error) {
	raw, err := sharedEvents.MarshalPayload(payload)
	if err != nil {
		return sharedDomain.OutboxEvent{}, err
	}

	evt := sharedDomain.OutboxEvent{
		ID:         uuid.New(),
		EventType:  string(payload.EventType()),
		Payload:    raw,
		OccurredAt: w.now().UTC(),
		Status:     sharedDomain.OutboxPending,
	}
	if err := w.store.Append(ctx, tx, evt); err != nil {
		return sharedDomain.OutboxEvent{}, fmt.Errorf("enqueue %s: %w", evt.EventType, err)
	}
	return evt, nil
}
