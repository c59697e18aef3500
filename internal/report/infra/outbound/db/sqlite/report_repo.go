package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/davicafu/phoneregistry/internal/report/domain"
	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
)

const reportSchema = `
CREATE TABLE IF NOT EXISTS reports (
	id            TEXT PRIMARY KEY,
	requested_at  TIMESTAMP NOT NULL,
	status        TEXT NOT NULL,
	completed_at  TIMESTAMP NULL,
	error_message TEXT NULL
);
CREATE TABLE IF NOT EXISTS location_statistics (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	report_id          TEXT NOT NULL REFERENCES reports(id),
	location           TEXT NOT NULL,
	person_count       INTEGER NOT NULL,
	phone_number_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_location_statistics_report ON location_statistics (report_id);
`

func InitReportSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, reportSchema); err != nil {
		return fmt.Errorf("create report schema: %w", err)
	}
	return nil
}

type ReportRepoSQLite struct {
	db *sql.DB
}

func NewReportRepoSQLite(db *sql.DB) *ReportRepoSQLite {
	return &ReportRepoSQLite{db: db}
}

func (r *ReportRepoSQLite) Insert(ctx context.Context, tx persistence.DBTX, report *domain.Report) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO reports (id, requested_at, status) VALUES (?, ?, ?)`,
		report.ID.String(), report.RequestedAt.UTC(), string(report.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (r *ReportRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, requested_at, status, completed_at, error_message FROM reports WHERE id = ?`, id.String())
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT location, person_count, phone_number_count
		 FROM location_statistics WHERE report_id = ? ORDER BY id`, id.String())
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

func (r *ReportRepoSQLite) List(ctx context.Context, page sharedDomain.Pagination) ([]*domain.Report, error) {
	page = page.Normalize()
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, requested_at, status, completed_at, error_message
		 FROM reports ORDER BY requested_at DESC, id LIMIT ? OFFSET ?`, page.Limit, page.Offset)
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

func (r *ReportRepoSQLite) SaveCompletion(ctx context.Context, report *domain.Report) error {
	return persistence.NewSQLTxManager(r.db).WithinTx(ctx, func(ctx context.Context, tx persistence.DBTX) error {
		if err := finalize(ctx, tx, report); err != nil {
			return err
		}
		for _, s := range report.LocationStatistics {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO location_statistics (report_id, location, person_count, phone_number_count)
				 VALUES (?, ?, ?, ?)`,
				report.ID.String(), s.Location, s.PersonCount, s.PhoneNumberCount,
			); err != nil {
				return fmt.Errorf("failed to insert location statistic: %w", err)
			}
		}
		return nil
	})
}

func (r *ReportRepoSQLite) SaveFailure(ctx context.Context, report *domain.Report) error {
	return persistence.NewSQLTxManager(r.db).WithinTx(ctx, func(ctx context.Context, tx persistence.DBTX) error {
		return finalize(ctx, tx, report)
	})
}

// finalize sólo actualiza si el report sigue en Preparing; así una entrega duplicada no
// puede sobrescribir un estado terminal.
func finalize(ctx context.Context, tx persistence.DBTX, report *domain.Report) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE reports SET status = ?, completed_at = ?, error_message = ?
		 WHERE id = ? AND status = ?`,
		string(report.Status), report.CompletedAt, report.ErrorMessage, report.ID.String(), string(domain.ReportPreparing),
	)
	if err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM reports WHERE id = ?`, report.ID.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrReportNotFound
	}
	if err != nil {
		return err
	}
	return domain.ErrReportAlreadyFinalized
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var (
		report       domain.Report
		idStr        string
		status       string
		completedAt  sql.NullTime
		errorMessage sql.NullString
	)
	if err := row.Scan(&idStr, &report.RequestedAt, &status, &completedAt, &errorMessage); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in report row: %w", err)
	}
	report.ID = id
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

var _ domain.ReportRepository = (*ReportRepoSQLite)(nil)
