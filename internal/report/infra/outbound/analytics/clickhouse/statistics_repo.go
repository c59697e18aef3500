package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/davicafu/phoneregistry/internal/report/domain"
)

// StatisticsRepo guarda en ClickHouse el histórico de estadísticas de los reports completados.
type StatisticsRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewStatisticsRepo(addr string, dbName string) (*StatisticsRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}
	return NewStatisticsRepoFromDB(conn), nil
}

func NewStatisticsRepoFromDB(db *sql.DB) *StatisticsRepo {
	return &StatisticsRepo{db: db, now: time.Now}
}

// RecordReport inserta todas las estadísticas del report en un único lote.
func (r *StatisticsRepo) RecordReport(ctx context.Context, report *domain.Report) error {
	if len(report.LocationStatistics) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO location_statistics_log (report_id, location, person_count, phone_number_count, completed_at, event_time)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	completedAt := r.now().UTC()
	if report.CompletedAt != nil {
		completedAt = *report.CompletedAt
	}
	eventTime := r.now().UTC()

	for _, s := range report.LocationStatistics {
		if _, err := stmt.ExecContext(ctx,
			report.ID,
			s.Location,
			uint32(s.PersonCount),
			uint32(s.PhoneNumberCount),
			completedAt,
			eventTime,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to exec statement for report %s: %w", report.ID, err)
		}
	}
	return tx.Commit()
}

// InitSchema crea la tabla si no existe. Particionada por mes y ordenada por ubicación.
func (r *StatisticsRepo) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS location_statistics_log (
			report_id          UUID,
			location           String,
			person_count       UInt32,
			phone_number_count UInt32,
			completed_at       DateTime64(3),
			event_time         DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(event_time)
		ORDER BY (location, completed_at);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *StatisticsRepo) Close() error {
	return r.db.Close()
}

var _ domain.StatisticsSink = (*StatisticsRepo)(nil)
