package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
)

// ---------- Errores de dominio ----------
var (
	ErrReportNotFound           = errors.New("report not found")
	ErrReportNotPreparing       = errors.New("report is not preparing")
	ErrReportAlreadyFinalized   = errors.New("report already finalized")
	ErrInvalidLocationStatistic = errors.New("invalid location statistic")
	ErrContactSourceUnavailable = errors.New("contact source unavailable")
)

// ---------- Interfaces (Ports) ----------

// ReportRepository persiste Reports y sus estadísticas.
type ReportRepository interface {
	// Insert se ejecuta dentro de la transacción del llamador, junto al evento outbox.
	Insert(ctx context.Context, tx persistence.DBTX, r *Report) error

	// Debe devolver ErrReportNotFound si no existe. Cada llamada lee de la base.
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)

	// List devuelve los reports más recientes primero, sin estadísticas.
	List(ctx context.Context, page sharedDomain.Pagination) ([]*Report, error)

	// SaveCompletion inserta las estadísticas y pasa el report a Completed sólo si sigue
	// en Preparing. Devuelve ErrReportAlreadyFinalized si otra entrega ganó.
	SaveCompletion(ctx context.Context, r *Report) error

	// SaveFailure pasa el report a Failed con la misma condición.
	SaveFailure(ctx context.Context, r *Report) error
}

// ContactSource entrega todas las personas con sus contactos.
type ContactSource interface {
	FetchAll(ctx context.Context) ([]PersonContacts, error)
}

// ProjectionStore mantiene el modelo de lectura de ubicaciones.
type ProjectionStore interface {
	// ApplyMembership sustituye la pertenencia del contacto por next y ajusta los contadores.
	// nil la elimina y una lápida (Tombstone) la da por borrada para siempre. Devuelve los
	// ajustes aplicados.
	ApplyMembership(ctx context.Context, contactID uuid.UUID, next *LocationMembership) ([]TallyDelta, error)

	ListTallies(ctx context.Context) ([]LocationTally, error)
}

// StatisticsSink guarda el histórico de estadísticas de reports completados.
type StatisticsSink interface {
	RecordReport(ctx context.Context, r *Report) error
}

// ---------- Helpers comunes (cache keys, etc.) ----------

func CacheKeyByID(id uuid.UUID) string {
	return fmt.Sprintf("report:id:%s", id.String())
}
