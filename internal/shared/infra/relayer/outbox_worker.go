package relayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	sharedEvents "github.com/davicafu/phoneregistry/internal/shared/events"
	sharedBus "github.com/davicafu/phoneregistry/internal/shared/infra/platform/bus"
)

// Config controla el ritmo del relay.
type Config struct {
	Interval     time.Duration
	BatchSize    int
	ErrorBackoff time.Duration
	// ClaimTimeout: tiempo máximo en Processing antes de volver a reintentar el evento. 0 lo desactiva.
	ClaimTimeout time.Duration
	// Retention: antigüedad a partir de la cual se borran los Published. 0 lo desactiva.
	Retention time.Duration
}

// Worker drena la tabla outbox hacia el bus. Entrega al menos una vez, sin orden global:
// sólo se respeta occurred_at dentro de cada lote.
type Worker struct {
	repo      sharedDomain.OutboxRepository
	publisher sharedBus.Publisher
	cfg       Config
	metrics   *Metrics
	now       func() time.Time
	log       *zap.Logger
}

func NewOutboxWorker(
	repo sharedDomain.OutboxRepository,
	publisher sharedBus.Publisher,
	cfg Config,
	metrics *Metrics,
	log *zap.Logger,
) *Worker {
	return &Worker{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		metrics:   metrics,
		now:       time.Now,
		log:       log,
	}
}

// Start ejecuta el bucle de polling hasta que ctx se cancela. Un error a nivel de bucle
// no tumba el proceso: se registra y se espera ErrorBackoff.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("🚀 Outbox worker iniciado",
		zap.Duration("interval", w.cfg.Interval),
		zap.Int("batch_size", w.cfg.BatchSize),
	)

	for {
		wait := w.cfg.Interval
		if err := w.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
			w.log.Warn("⚠️ Error en el ciclo del outbox, aplicando backoff",
				zap.Duration("backoff", w.cfg.ErrorBackoff),
				zap.Error(err),
			)
			wait = w.cfg.ErrorBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info("🛑 Outbox worker detenido.")
			return
		case <-timer.C:
		}
	}
}

// ProcessBatch hace una pasada: libera reclamaciones caducadas, publica un lote y poda.
func (w *Worker) ProcessBatch(ctx context.Context) error {
	started := w.now()
	defer func() { w.metrics.batchDone(ctx, w.now().Sub(started)) }()

	if w.cfg.ClaimTimeout > 0 {
		released, err := w.repo.ReleaseStale(ctx, started.Add(-w.cfg.ClaimTimeout))
		if err != nil {
			return fmt.Errorf("release stale events: %w", err)
		}
		if released > 0 {
			w.log.Warn("♻️ Eventos atascados en Processing devueltos a Failed", zap.Int64("count", released))
		}
	}

	events, err := w.repo.FetchPending(ctx, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("fetch pending events: %w", err)
	}
	if len(events) > 0 {
		w.log.Info(fmt.Sprintf("📬 %d eventos encontrados para procesar", len(events)))
	}

	for _, evt := range events {
		if ctx.Err() != nil {
			return nil
		}
		w.publishAndMark(ctx, evt)
	}

	if w.cfg.Retention > 0 {
		pruned, err := w.repo.PruneProcessed(ctx, started.Add(-w.cfg.Retention))
		if err != nil {
			w.log.Warn("⚠️ No se pudieron podar eventos publicados", zap.Error(err))
		} else if pruned > 0 {
			w.log.Debug("🧹 Eventos publicados podados", zap.Int64("count", pruned))
		}
	}
	return nil
}

func (w *Worker) publishAndMark(ctx context.Context, evt sharedDomain.OutboxEvent) {
	fields := []zap.Field{zap.String("event_id", evt.ID.String()), zap.String("event_type", evt.EventType)}
	eventType := sharedEvents.Type(evt.EventType)

	// 1. Resolver la cola. Un tipo sin ruta es un bug, no un fallo de transporte.
	queue, ok := sharedEvents.QueueFor(eventType)
	if !ok {
		w.log.DPanic("Tipo de evento sin cola asignada", fields...)
		return
	}

	// 2. Reclamar el evento para que ningún otro relay lo publique a la vez
	if err := w.repo.MarkProcessing(ctx, evt.ID, w.now().UTC()); err != nil {
		if errors.Is(err, sharedDomain.ErrOutboxEventClaimed) {
			w.log.Debug("Evento reclamado por otro relay", fields...)
			return
		}
		w.log.Warn("⚠️ No se pudo reclamar el evento", append(fields, zap.Error(err))...)
		return
	}

	// 3. Publicar el sobre {eventType, payload}
	body, err := sharedEvents.Encode(eventType, evt.Payload)
	if err == nil {
		err = w.publisher.Publish(ctx, queue, body)
	}
	if err != nil {
		w.metrics.eventFailed(ctx, evt.EventType)
		w.log.Warn("⚠️ No se pudo publicar evento", append(fields, zap.Int("retry_count", evt.RetryCount+1), zap.Error(err))...)
		if markErr := w.repo.MarkFailed(context.WithoutCancel(ctx), evt.ID, err.Error()); markErr != nil {
			w.log.Error("No se pudo marcar evento como fallido", append(fields, zap.Error(markErr))...)
		}
		return
	}

	// 4. Marcar como publicado. Si esto falla el evento queda en Processing y se
	// republicará tras ClaimTimeout.
	if err := w.repo.MarkPublished(context.WithoutCancel(ctx), evt.ID, w.now().UTC()); err != nil {
		w.log.Warn("⚠️ No se pudo marcar evento como publicado", append(fields, zap.Error(err))...)
		return
	}
	w.metrics.eventPublished(ctx, evt.EventType)
	w.log.Info("✅ Evento publicado y marcado", append(fields, zap.String("queue", queue))...)
}
