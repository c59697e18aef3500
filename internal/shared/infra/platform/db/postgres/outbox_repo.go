package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/davicafu/phoneregistry/internal/shared/domain"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
)

const OutboxSchema = `
CREATE TABLE IF NOT EXISTS outbox_events (
	id           UUID PRIMARY KEY,
	event_type   TEXT NOT NULL,
	payload      JSONB NOT NULL,
	occurred_at  TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ NULL,
	claimed_at   TIMESTAMPTZ NULL,
	status       SMALLINT NOT NULL,
	retry_count  INTEGER NOT NULL DEFAULT 0,
	last_error   TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_outbox_events_status_occurred ON outbox_events (status, occurred_at);
`

func InitOutboxSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, OutboxSchema); err != nil {
		return fmt.Errorf("create outbox schema: %w", err)
	}
	return nil
}

// OutboxRepoPostgres implementa domain.OutboxRepository.
// La reclamación es un UPDATE condicional sobre status, así varios relays pueden convivir.
type OutboxRepoPostgres struct {
	db *sql.DB
}

func NewOutboxRepoPostgres(db *sql.DB) *OutboxRepoPostgres {
	return &OutboxRepoPostgres{db: db}
}

func (r *OutboxRepoPostgres) Append(ctx context.Context, tx persistence.DBTX, evt domain.OutboxEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, event_type, payload, occurred_at, status, retry_count)
		 VALUES ($1, $2, $3, $4, $5, 0)`,
		evt.ID.String(), evt.EventType, []byte(evt.Payload), evt.OccurredAt.UTC(), int(domain.OutboxPending),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

func (r *OutboxRepoPostgres) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_type, payload, occurred_at, processed_at, status, retry_count, last_error
		 FROM outbox_events
		 WHERE status IN ($1, $2)
		 ORDER BY occurred_at
		 LIMIT $3`,
		int(domain.OutboxPending), int(domain.OutboxFailed), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var (
			evt         domain.OutboxEvent
			idStr       string
			payload     []byte // JSONB
			processedAt sql.NullTime
			lastError   sql.NullString
		)
		if err := rows.Scan(&idStr, &evt.EventType, &payload, &evt.OccurredAt, &processedAt, &evt.Status, &evt.RetryCount, &lastError); err != nil {
			return nil, err
		}
		if evt.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("invalid UUID in outbox row: %w", err)
		}
		evt.Payload = payload
		if processedAt.Valid {
			t := processedAt.Time
			evt.ProcessedAt = &t
		}
		if lastError.Valid {
			evt.LastError = &lastError.String
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

func (r *OutboxRepoPostgres) MarkProcessing(ctx context.Context, id uuid.UUID, claimedAt time.Time) error {
	// RETURNING distingue en una sola ida "reclamado por mí" de "no disponible".
	var claimed string
	err := r.db.QueryRowContext(ctx,
		`UPDATE outbox_events SET status = $1, claimed_at = $2
		 WHERE id = $3 AND status IN ($4, $5)
		 RETURNING id`,
		int(domain.OutboxProcessing), claimedAt.UTC(), id.String(), int(domain.OutboxPending), int(domain.OutboxFailed),
	).Scan(&claimed)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("db error: %w", err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM outbox_events WHERE id = $1)`, id.String()).Scan(&exists); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrOutboxEventNotFound, id)
	}
	return fmt.Errorf("%w: %s", domain.ErrOutboxEventClaimed, id)
}

func (r *OutboxRepoPostgres) MarkPublished(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = $1, processed_at = $2, last_error = NULL WHERE id = $3`,
		int(domain.OutboxPublished), processedAt.UTC(), id.String(),
	)
	return expectOneRow(res, err, id)
}

func (r *OutboxRepoPostgres) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = $1, retry_count = retry_count + 1, last_error = $2 WHERE id = $3`,
		int(domain.OutboxFailed), lastError, id.String(),
	)
	return expectOneRow(res, err, id)
}

func (r *OutboxRepoPostgres) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events
		 SET status = $1, retry_count = retry_count + 1, last_error = 'processing claim expired'
		 WHERE status = $2 AND claimed_at < $3`,
		int(domain.OutboxFailed), int(domain.OutboxProcessing), olderThan.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *OutboxRepoPostgres) PruneProcessed(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE status = $1 AND processed_at < $2`,
		int(domain.OutboxPublished), olderThan.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func expectOneRow(res sql.Result, err error, id uuid.UUID) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrOutboxEventNotFound, id)
	}
	return nil
}

var _ domain.OutboxRepository = (*OutboxRepoPostgres)(nil)
