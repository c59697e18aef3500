package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL

	"github.com/davicafu/phoneregistry/internal/report/domain"
	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
)

const ReportSchema = `
CREATE TABLE IF NOT EXISTS reports (
	id            UUID PRIMARY KEY,
	requested_at  TIMESTAMPTZ NOT NULL,
	status        TEXT NOT NULL,
	completed_at  TIMESTAMPTZ NULL,
	error_message TEXT NULL
);
CREATE TABLE IF NOT EXISTS location_statistics (
	id                 BIGSERIAL PRIMARY KEY,
	report_id          UUID NOT NULL REFERENCES reports(id),
	location           TEXT NOT NULL,
	person_count       INTEGER NOT NULL,
	phone_number_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_location_statistics_report ON location_statistics (report_id);
`

func InitReportSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, ReportSchema); err != nil {
		return fmt.Errorf("create report schema: %w", err)
	}
	return nil
}

// ReportRepoPostgres implementa domain.ReportRepository para PostgreSQL.
type ReportRepoPostgres struct {
	db *sql.DB
}

func NewReportRepoPostgres(db *sql.DB) *ReportRepoPostgres {
	return &ReportRepoPostgres{db: db}
}

func (r *ReportRepoPostgres) Insert(ctx context.Context, tx persistence.DBTX, report *domain.Report) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO reports (id, requested_at, status) VALUES ($1, $2, $3)`,
		report.ID.String(), report.RequestedAt, string(report.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (r *ReportRepoPostgres) GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	report, err := scanReport(r.db.QueryRowContext(ctx,
		`SELECT id, requested_at, status, completed_at, error_message FROM reports WHERE id = $1`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT location, person_count, phone_number_count
		 FROM location_statistics WHERE report_id = $1 ORDER BY id`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.LocationStatistic
		if err := rows.Scan(&s.Location, &s.PersonCount, &s.PhoneNumberCount); err != nil {
			return nil, err
		}
		report.LocationStatistics = append(report.LocationStatistics, s)
	}
	return report, rows.Err()
}

func (r *ReportRepoPostgres) List(ctx context.Context, page sharedDomain.Pagination) ([]*domain.Report, error) {
	page = page.Normalize()
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, requested_at, status, completed_at, error_message
		 FROM reports ORDER BY requested_at DESC, id LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []*domain.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// SaveCompletion inserta estadísticas y finaliza en una transacción.
func (r *ReportRepoPostgres) SaveCompletion(ctx context.Context, report *domain.Report) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Se ignora si el Commit() es exitoso

	if err := finalize(ctx, tx, report); err != nil {
		return err
	}
	for _, s := range report.LocationStatistics {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO location_statistics (report_id, location, person_count, phone_number_count)
			 VALUES ($1, $2, $3, $4)`,
			report.ID.String(), s.Location, s.PersonCount, s.PhoneNumberCount,
		); err != nil {
			return fmt.Errorf("failed to insert location statistic: %w", err)
		}
	}
	return tx.Commit()
}

func (r *ReportRepoPostgres) SaveFailure(ctx context.Context, report *domain.Report) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := finalize(ctx, tx, report); err != nil {
		return err
	}
	return tx.Commit()
}

func finalize(ctx context.Context, tx *sql.Tx, report *domain.Report) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE reports SET status = $1, completed_at = $2, error_message = $3
		 WHERE id = $4 AND status = $5`,
		string(report.Status), report.CompletedAt, report.ErrorMessage, report.ID.String(), string(domain.ReportPreparing),
	)
	if err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1)`, report.ID.String()).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrReportNotFound
	}
	return domain.ErrReportAlreadyFinalized
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var (
		report       domain.Report
		status       string
		completedAt  sql.NullTime
		errorMessage sql.NullString
	)
	if err := row.Scan(&report.ID, &report.RequestedAt, &status, &completedAt, &errorMessage); err != nil {
		return nil, err
	}
	report.Status = domain.ReportStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		report.CompletedAt = &t
	}
	if errorMessage.Valid {
		report.ErrorMessage = &errorMessage.String
	}
	report.LocationStatistics = []domain.LocationStatistic{}
	return &report, nil
}

var _ domain.ReportRepository = (*ReportRepoPostgres)(nil)
