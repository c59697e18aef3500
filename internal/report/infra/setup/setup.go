// Package setup construye los adaptadores del contexto report según la configuración.
package setup

import (
	"context"
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/davicafu/phoneregistry/internal/config"
	"github.com/davicafu/phoneregistry/internal/report/domain"
	"github.com/davicafu/phoneregistry/internal/report/infra/outbound/analytics/clickhouse"
	"github.com/davicafu/phoneregistry/internal/report/infra/outbound/contactapi"
	"github.com/davicafu/phoneregistry/internal/report/infra/outbound/db/mongodb"
	postgres "github.com/davicafu/phoneregistry/internal/report/infra/outbound/db/postgre"
	"github.com/davicafu/phoneregistry/internal/report/infra/outbound/db/sqlite"
	"github.com/davicafu/phoneregistry/internal/shared/infra/bootstrap"
)

// NewReportRepo crea el esquema de reports en db y devuelve el repositorio del driver.
func NewReportRepo(ctx context.Context, cfg *config.Config, db *sql.DB) (domain.ReportRepository, error) {
	if cfg.DBDriver == config.DriverPostgres {
		if err := postgres.InitReportSchema(ctx, db); err != nil {
			return nil, err
		}
		return postgres.NewReportRepoPostgres(db), nil
	}
	if err := sqlite.InitReportSchema(ctx, db); err != nil {
		return nil, err
	}
	return sqlite.NewReportRepoSQLite(db), nil
}

// OpenProjection abre el modelo de lectura de ubicaciones. Con SQLite usa su propio fichero
// para no depender de DB_DRIVER.
func OpenProjection(ctx context.Context, cfg *config.Config, log *zap.Logger) (domain.ProjectionStore, func(), error) {
	if cfg.ProjectionDriver == config.DriverMongo {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }

		store, err := mongodb.NewProjectionRepoMongoDB(ctx, client, cfg.MongoDatabase)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		log.Info("🍃 Proyección de ubicaciones en MongoDB", zap.String("database", cfg.MongoDatabase))
		return store, closeFn, nil
	}

	db, err := bootstrap.OpenSQLite(cfg.ProjectionSQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open projection sqlite: %w", err)
	}
	if err := sqlite.InitProjectionSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Info("🗂️ Proyección de ubicaciones en SQLite", zap.String("path", cfg.ProjectionSQLitePath))
	return sqlite.NewProjectionRepoSQLite(db), func() { _ = db.Close() }, nil
}

// OpenStatisticsSink devuelve nil si CLICKHOUSE_ADDR no está configurado. Si ClickHouse no
// responde se sigue sin histórico: es un destino best-effort.
func OpenStatisticsSink(ctx context.Context, cfg *config.Config, log *zap.Logger) (domain.StatisticsSink, func()) {
	if cfg.ClickHouseAddr == "" {
		return nil, func() {}
	}

	repo, err := clickhouse.NewStatisticsRepo(cfg.ClickHouseAddr, cfg.ClickHouseDatabase)
	if err == nil {
		err = repo.InitSchema(ctx)
	}
	if err != nil {
		log.Warn("⚠️ ClickHouse no disponible, sin histórico de estadísticas", zap.Error(err))
		if repo != nil {
			_ = repo.Close()
		}
		return nil, func() {}
	}

	log.Info("✅ ClickHouse conectado", zap.String("addr", cfg.ClickHouseAddr))
	return repo, func() { _ = repo.Close() }
}

func NewContactSource(cfg *config.Config, log *zap.Logger) *contactapi.Client {
	return contactapi.NewClient(contactapi.Config{
		BaseURL:            cfg.ContactAPIURL,
		PageSize:           cfg.ContactAPIPageSize,
		Timeout:            cfg.ContactAPITimeout,
		Retries:            cfg.ContactAPIRetries,
		BreakerFailures:    cfg.BreakerFailures,
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
	}, log)
}
