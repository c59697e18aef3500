package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/phoneregistry/internal/report/domain"
	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	sharedEvents "github.com/davicafu/phoneregistry/internal/shared/events"
	sharedCache "github.com/davicafu/phoneregistry/internal/shared/infra/platform/cache"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
	sharedUtils "github.com/davicafu/phoneregistry/internal/shared/infra/utils"
)

// Enqueuer escribe un evento en la outbox dentro de la transacción recibida.
type Enqueuer interface {
	Enqueue(ctx context.Context, tx persistence.DBTX, payload sharedEvents.Payload) (sharedDomain.OutboxEvent, error)
}

// ReportService agrupa los casos de uso del lado de la API de reports.
type ReportService struct {
	repo       domain.ReportRepository
	tx         persistence.TxManager
	outbox     Enqueuer
	projection domain.ProjectionStore
	cache      sharedCache.Cache
	cacheTTL   time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewReportService(
	repo domain.ReportRepository,
	tx persistence.TxManager,
	outbox Enqueuer,
	projection domain.ProjectionStore,
	cache sharedCache.Cache,
	cacheTTL time.Duration,
	log *zap.Logger,
) *ReportService {
	return &ReportService{
		repo:       repo,
		tx:         tx,
		outbox:     outbox,
		projection: projection,
		cache:      cache,
		cacheTTL:   cacheTTL,
		now:        time.Now,
		log:        log,
	}
}

// RequestReport crea el report en Preparing y registra ReportRequested en la misma transacción.
func (s *ReportService) RequestReport(ctx context.Context) (*domain.Report, error) {
	report := domain.NewReport(s.now())

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx persistence.DBTX) error {
		if err := s.repo.Insert(ctx, tx, report); err != nil {
			return err
		}
		_, err := s.outbox.Enqueue(ctx, tx, sharedEvents.ReportRequested{
			ReportID:    report.ID,
			RequestedAt: report.RequestedAt,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("request report: %w", err)
	}

	s.log.Info("📝 Report solicitado", zap.String("report_id", report.ID.String()))
	return report, nil
}

// GetReport sólo cachea reports terminados: un report en Preparing cambia en cualquier momento.
func (s *ReportService) GetReport(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	key := domain.CacheKeyByID(id)

	// 1. Intentar cache
	if s.cache != nil {
		var cached domain.Report
		if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
			s.log.Warn("⚠️ Cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return &cached, nil
		}
	}

	// 2. Ir al repo con reintentos
	var report *domain.Report
	err := sharedUtils.RetryBackoff(ctx, 3, 100*time.Millisecond,
		func(err error) bool { return !errors.Is(err, domain.ErrReportNotFound) },
		func() error {
			var err error
			report, err = s.repo.GetByID(ctx, id)
			return err
		})
	if err != nil {
		return nil, err
	}

	// 3. Cachear en background
	if report.IsTerminal() {
		sharedCache.AsyncSet(ctx, s.cache, key, report, s.cacheTTL, s.log)
	}
	return report, nil
}

func (s *ReportService) ListReports(ctx context.Context, page sharedDomain.Pagination) ([]*domain.Report, error) {
	return s.repo.List(ctx, page)
}

// ListLocations devuelve los contadores proyectados desde los eventos de contactos.
func (s *ReportService) ListLocations(ctx context.Context) ([]domain.LocationTally, error) {
	if s.projection == nil {
		return []domain.LocationTally{}, nil
	}
	return s.projection.ListTallies(ctx)
}
