package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/davicafu/phoneregistry/internal/shared/domain"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
)

const outboxSchema = `
CREATE TABLE IF NOT EXISTS outbox_events (
	id           TEXT PRIMARY KEY,
	event_type   TEXT NOT NULL,
	payload      TEXT NOT NULL,
	occurred_at  TIMESTAMP NOT NULL,
	processed_at TIMESTAMP NULL,
	claimed_at   TIMESTAMP NULL,
	status       INTEGER NOT NULL,
	retry_count  INTEGER NOT NULL DEFAULT 0,
	last_error   TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_outbox_events_status_occurred ON outbox_events (status, occurred_at);
`

// InitOutboxSchema crea la tabla outbox si no existe.
func InitOutboxSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, outboxSchema); err != nil {
		return fmt.Errorf("create outbox schema: %w", err)
	}
	return nil
}

// OutboxRepoSQLite implementa domain.OutboxRepository.
type OutboxRepoSQLite struct {
	db *sql.DB
}

func NewOutboxRepoSQLite(db *sql.DB) *OutboxRepoSQLite {
	return &OutboxRepoSQLite{db: db}
}

func (r *OutboxRepoSQLite) Append(ctx context.Context, tx persistence.DBTX, evt domain.OutboxEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, event_type, payload, occurred_at, status, retry_count)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		evt.ID.String(), evt.EventType, string(evt.Payload), evt.OccurredAt.UTC(), int(domain.OutboxPending),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

func (r *OutboxRepoSQLite) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_type, payload, occurred_at, processed_at, status, retry_count, last_error
		 FROM outbox_events
		 WHERE status IN (?, ?)
		 ORDER BY occurred_at, rowid
		 LIMIT ?`,
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
			payload     string
			processedAt sql.NullTime
			lastError   sql.NullString
		)
		if err := rows.Scan(&idStr, &evt.EventType, &payload, &evt.OccurredAt, &processedAt, &evt.Status, &evt.RetryCount, &lastError); err != nil {
			return nil, err
		}

		// El ID se guarda como TEXT, lo parseamos de nuevo.
		evt.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in outbox row: %w", err)
		}
		evt.Payload = []byte(payload)
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

func (r *OutboxRepoSQLite) MarkProcessing(ctx context.Context, id uuid.UUID, claimedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = ?, claimed_at = ? WHERE id = ? AND status IN (?, ?)`,
		int(domain.OutboxProcessing), claimedAt.UTC(), id.String(), int(domain.OutboxPending), int(domain.OutboxFailed),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return r.claimResult(ctx, res, id)
}

// claimResult distingue entre evento inexistente y evento ya reclamado.
func (r *OutboxRepoSQLite) claimResult(ctx context.Context, res sql.Result, id uuid.UUID) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM outbox_events WHERE id = ?`, id.String()).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", domain.ErrOutboxEventNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return fmt.Errorf("%w: %s", domain.ErrOutboxEventClaimed, id)
}

func (r *OutboxRepoSQLite) MarkPublished(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = ?, processed_at = ?, last_error = NULL WHERE id = ?`,
		int(domain.OutboxPublished), processedAt.UTC(), id.String(),
	)
	return expectOneRow(res, err, id)
}

func (r *OutboxRepoSQLite) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = ?, retry_count = retry_count + 1, last_error = ? WHERE id = ?`,
		int(domain.OutboxFailed), lastError, id.String(),
	)
	return expectOneRow(res, err, id)
}

func (r *OutboxRepoSQLite) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events
		 SET status = ?, retry_count = retry_count + 1, last_error = 'processing claim expired'
		 WHERE status = ? AND claimed_at < ?`,
		int(domain.OutboxFailed), int(domain.OutboxProcessing), olderThan.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *OutboxRepoSQLite) PruneProcessed(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE status = ? AND processed_at < ?`,
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

// Verificación en tiempo de compilación.
var _ domain.OutboxRepository = (*OutboxRepoSQLite)(nil)
