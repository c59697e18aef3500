package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
)

// OutboxStatus conserva los valores numéricos persistidos en la tabla outbox.
type OutboxStatus int

const (
	OutboxPending    OutboxStatus = 1
	OutboxProcessing OutboxStatus = 2
	OutboxPublished  OutboxStatus = 3
	OutboxFailed     OutboxStatus = 4
)

func (s OutboxStatus) String() string {
	switch s {
	case OutboxPending:
		return "Pending"
	case OutboxProcessing:
		return "Processing"
	case OutboxPublished:
		return "Published"
	case OutboxFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

var (
	ErrOutboxEventNotFound = errors.New("outbox event not found")
	// ErrOutboxEventClaimed indica que otro relay ya reclamó el evento.
	ErrOutboxEventClaimed = errors.New("outbox event already claimed")
)

// OutboxEvent es una fila de la tabla outbox. EventType y Payload no cambian tras escribirse.
type OutboxEvent struct {
	ID          uuid.UUID       `json:"id"`
	EventType   string          `json:"eventType"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
	Status      OutboxStatus    `json:"status"`
	RetryCount  int             `json:"retryCount"`
	LastError   *string         `json:"lastError,omitempty"`
}

// OutboxRepository define el contrato para acceder a la tabla outbox.
type OutboxRepository interface {
	// Append inserta el evento usando la transacción del llamador.
	Append(ctx context.Context, tx persistence.DBTX, evt OutboxEvent) error

	// FetchPending devuelve eventos Pending o Failed ordenados por occurred_at.
	FetchPending(ctx context.Context, limit int) ([]OutboxEvent, error)

	// MarkProcessing reclama el evento. Devuelve ErrOutboxEventClaimed si ya no está Pending/Failed.
	MarkProcessing(ctx context.Context, id uuid.UUID, claimedAt time.Time) error

	MarkPublished(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	// MarkFailed incrementa retry_count y guarda el último error.
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error

	// ReleaseStale devuelve a Failed los eventos que llevan en Processing desde antes de olderThan.
	ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error)

	// PruneProcessed borra eventos Published anteriores a olderThan.
	PruneProcessed(ctx context.Context, olderThan time.Time) (int64, error)
}
