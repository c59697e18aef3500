package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/phoneregistry/internal/report/domain"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
)

const projectionSchema = `
CREATE TABLE IF NOT EXISTS location_memberships (
	contact_id   TEXT PRIMARY KEY,
	person_id    TEXT NOT NULL,
	location_key TEXT NOT NULL,
	location     TEXT NOT NULL,
	deleted_at   TIMESTAMP
);
CREATE TABLE IF NOT EXISTS location_tallies (
	location_key TEXT PRIMARY KEY,
	location     TEXT NOT NULL,
	count        INTEGER NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
`

func InitProjectionSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, projectionSchema); err != nil {
		return fmt.Errorf("create projection schema: %w", err)
	}
	return nil
}

// ProjectionRepoSQLite aplica pertenencia y contadores en la misma transacción.
type ProjectionRepoSQLite struct {
	tx  persistence.TxManager
	db  *sql.DB
	now func() time.Time
}

func NewProjectionRepoSQLite(db *sql.DB) *ProjectionRepoSQLite {
	return &ProjectionRepoSQLite{tx: persistence.NewSQLTxManager(db), db: db, now: time.Now}
}

func (r *ProjectionRepoSQLite) ApplyMembership(ctx context.Context, contactID uuid.UUID, next *domain.LocationMembership) ([]domain.TallyDelta, error) {
	var applied []domain.TallyDelta

	err := r.tx.WithinTx(ctx, func(ctx context.Context, tx persistence.DBTX) error {
		prev, err := getMembership(ctx, tx, contactID)
		if err != nil {
			return err
		}
		plan := domain.PlanMembershipWrite(prev, next)
		if plan.Skip {
			return nil
		}

		if plan.Row == nil {
			_, err = tx.ExecContext(ctx, `DELETE FROM location_memberships WHERE contact_id = ?`, contactID.String())
		} else {
			var deletedAt sql.NullTime
			if plan.Row.DeletedAt != nil {
				deletedAt = sql.NullTime{Time: *plan.Row.DeletedAt, Valid: true}
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO location_memberships (contact_id, person_id, location_key, location, deleted_at)
				 VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT (contact_id) DO UPDATE SET
					person_id = excluded.person_id,
					location_key = excluded.location_key,
					location = excluded.location,
					deleted_at = excluded.deleted_at`,
				contactID.String(), plan.Row.PersonID.String(), plan.Row.LocationKey, plan.Row.Location, deletedAt,
			)
		}
		if err != nil {
			return fmt.Errorf("failed to write membership: %w", err)
		}

		for _, d := range plan.Deltas {
			if err := r.applyDelta(ctx, tx, d); err != nil {
				return err
			}
		}
		applied = plan.Deltas
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func (r *ProjectionRepoSQLite) applyDelta(ctx context.Context, tx persistence.DBTX, d domain.TallyDelta) error {
	now := r.now().UTC()
	if d.Delta > 0 {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO location_tallies (location_key, location, count, updated_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (location_key) DO UPDATE SET
				count = location_tallies.count + excluded.count,
				updated_at = excluded.updated_at`,
			d.Key, d.Location, d.Delta, now,
		)
		if err != nil {
			return fmt.Errorf("failed to increment tally: %w", err)
		}
		return nil
	}

	// Nunca por debajo de cero; las filas a cero desaparecen.
	if _, err := tx.ExecContext(ctx,
		`UPDATE location_tallies SET count = MAX(count + ?, 0), updated_at = ? WHERE location_key = ?`,
		d.Delta, now, d.Key,
	); err != nil {
		return fmt.Errorf("failed to decrement tally: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM location_tallies WHERE location_key = ? AND count <= 0`, d.Key); err != nil {
		return fmt.Errorf("failed to prune tally: %w", err)
	}
	return nil
}

func (r *ProjectionRepoSQLite) ListTallies(ctx context.Context) ([]domain.LocationTally, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT location_key, location, count, updated_at FROM location_tallies ORDER BY location_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tallies := []domain.LocationTally{}
	for rows.Next() {
		var t domain.LocationTally
		if err := rows.Scan(&t.Key, &t.Location, &t.Count, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}

func getMembership(ctx context.Context, tx persistence.DBTX, contactID uuid.UUID) (*domain.LocationMembership, error) {
	var (
		m         domain.LocationMembership
		personID  string
		deletedAt sql.NullTime
	)
	err := tx.QueryRowContext(ctx,
		`SELECT person_id, location_key, location, deleted_at FROM location_memberships WHERE contact_id = ?`,
		contactID.String(),
	).Scan(&personID, &m.LocationKey, &m.Location, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.ContactID = contactID
	if deletedAt.Valid {
		at := deletedAt.Time.UTC()
		m.DeletedAt = &at
	}
	if m.PersonID, err = uuid.Parse(personID); err != nil {
		return nil, fmt.Errorf("invalid UUID in membership row: %w", err)
	}
	return &m, nil
}

var _ domain.ProjectionStore = (*ProjectionRepoSQLite)(nil)
