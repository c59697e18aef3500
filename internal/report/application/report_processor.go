package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/phoneregistry/internal/report/domain"
)

// ReportProcessor finaliza reports a partir de ReportRequested. No guarda estado entre
// mensajes: cada llamada lee el report de la base.
type ReportProcessor struct {
	repo   domain.ReportRepository
	source domain.ContactSource
	sink   domain.StatisticsSink
	now    func() time.Time
	log    *zap.Logger
}

// NewReportProcessor admite sink nil si no hay histórico configurado.
func NewReportProcessor(repo domain.ReportRepository, source domain.ContactSource, sink domain.StatisticsSink, log *zap.Logger) *ReportProcessor {
	return &ReportProcessor{repo: repo, source: source, sink: sink, now: time.Now, log: log}
}

// Process devuelve error sólo cuando merece reentrega (la base no responde). Los fallos
// de generación quedan reflejados como report Failed. Un error al guardar el resultado no
// es un fallo de generación: se reentrega y el report sigue en Preparing.
func (p *ReportProcessor) Process(ctx context.Context, reportID uuid.UUID) error {
	log := p.log.With(zap.String("report_id", reportID.String()))

	report, err := p.repo.GetByID(ctx, reportID)
	if errors.Is(err, domain.ErrReportNotFound) {
		log.Warn("⚠️ Report inexistente, mensaje descartado")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load report %s: %w", reportID, err)
	}
	if report.IsTerminal() {
		log.Info("Report ya finalizado, entrega duplicada ignorada", zap.String("status", string(report.Status)))
		return nil
	}

	if err := p.complete(ctx, report); err != nil {
		return p.fail(ctx, reportID, err, log)
	}
	if err := p.repo.SaveCompletion(ctx, report); err != nil {
		if errors.Is(err, domain.ErrReportAlreadyFinalized) {
			return p.fail(ctx, reportID, err, log)
		}
		return fmt.Errorf("save completed report %s: %w", reportID, err)
	}

	log.Info("✅ Report completado", zap.Int("locations", len(report.LocationStatistics)))
	p.record(ctx, report, log)
	return nil
}

func (p *ReportProcessor) complete(ctx context.Context, report *domain.Report) error {
	persons, err := p.source.FetchAll(ctx)
	if err != nil {
		return err
	}
	return report.Complete(domain.Aggregate(persons), p.now())
}

// fail relee el report. Sólo un report que sigue en Preparing pasa a Failed; uno terminado
// por otra entrega se deja como está.
func (p *ReportProcessor) fail(ctx context.Context, reportID uuid.UUID, cause error, log *zap.Logger) error {
	fresh, err := p.repo.GetByID(ctx, reportID)
	if errors.Is(err, domain.ErrReportNotFound) {
		log.Warn("⚠️ Report desaparecido durante el procesamiento", zap.NamedError("cause", cause))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reload report %s after %v: %w", reportID, cause, err)
	}
	if fresh.IsTerminal() {
		log.Warn("⚠️ Report finalizado por otra entrega, no se modifica",
			zap.String("status", string(fresh.Status)),
			zap.NamedError("cause", cause),
		)
		return nil
	}

	if err := fresh.Fail(cause.Error(), p.now()); err != nil {
		return err
	}
	if err := p.repo.SaveFailure(ctx, fresh); err != nil {
		if errors.Is(err, domain.ErrReportAlreadyFinalized) {
			log.Warn("⚠️ Report finalizado por otra entrega, no se modifica", zap.NamedError("cause", cause))
			return nil
		}
		return fmt.Errorf("save failed report %s: %w", reportID, err)
	}

	log.Error("❌ Report fallido", zap.Error(cause))
	return nil
}

func (p *ReportProcessor) record(ctx context.Context, report *domain.Report, log *zap.Logger) {
	if p.sink == nil {
		return
	}
	if err := p.sink.RecordReport(ctx, report); err != nil {
		log.Warn("⚠️ No se pudo registrar el histórico de estadísticas", zap.Error(err))
	}
}
