package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/phoneregistry/internal/shared/events"
	sharedBus "github.com/davicafu/phoneregistry/internal/shared/infra/platform/bus"
)

type ReportProcessor interface {
	Process(ctx context.Context, reportID uuid.UUID) error
}

// ReportConsumer traduce mensajes de report-processing en llamadas al procesador.
type ReportConsumer struct {
	processor ReportProcessor
	log       *zap.Logger
}

func NewReportConsumer(processor ReportProcessor, logger *zap.Logger) *ReportConsumer {
	return &ReportConsumer{processor: processor, log: logger}
}

// Handle es un sharedBus.Handler. Un cuerpo ilegible es permanente: el report no se toca.
func (c *ReportConsumer) Handle(ctx context.Context, body []byte) error {
	payload, err := sharedEvents.Decode(body)
	if err != nil {
		return sharedBus.Permanent(err)
	}

	evt, ok := payload.(sharedEvents.ReportRequested)
	if !ok {
		return sharedBus.Permanent(fmt.Errorf("%w: %s on %s", sharedEvents.ErrUnknownEventType, payload.EventType(), sharedEvents.ReportProcessingQueue))
	}

	c.log.Info("📥 ReportRequested recibido", zap.String("report_id", evt.ReportID.String()))
	return c.processor.Process(ctx, evt.ReportID)
}

// Run consume la cola hasta que ctx se cancela.
func (c *ReportConsumer) Run(ctx context.Context, sub sharedBus.Subscriber) error {
	return sub.Subscribe(ctx, sharedEvents.ReportProcessingQueue, c.Handle)
}
