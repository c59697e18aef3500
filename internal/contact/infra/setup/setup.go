// Package setup construye los adaptadores del contexto contact según la configuración.
package setup

import (
	"context"
	"database/sql"

	"github.com/davicafu/phoneregistry/internal/config"
	"github.com/davicafu/phoneregistry/internal/contact/domain"
	postgres "github.com/davicafu/phoneregistry/internal/contact/infra/outbound/db/postgre"
	"github.com/davicafu/phoneregistry/internal/contact/infra/outbound/db/sqlite"
)

// NewPersonRepo crea el esquema, siembra las ciudades por defecto y devuelve el repositorio.
func NewPersonRepo(ctx context.Context, cfg *config.Config, db *sql.DB) (domain.PersonRepository, error) {
	if cfg.DBDriver == config.DriverPostgres {
		if err := postgres.InitPersonSchema(ctx, db); err != nil {
			return nil, err
		}
		if err := postgres.SeedCities(ctx, db, domain.DefaultCities); err != nil {
			return nil, err
		}
		return postgres.NewPersonRepoPostgres(db), nil
	}

	if err := sqlite.InitPersonSchema(ctx, db); err != nil {
		return nil, err
	}
	if err := sqlite.SeedCities(ctx, db, domain.DefaultCities); err != nil {
		return nil, err
	}
	return sqlite.NewPersonRepoSQLite(db), nil
}
