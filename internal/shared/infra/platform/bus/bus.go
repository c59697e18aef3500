package bus

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrPermanent marca fallos que no se arreglan reintentando (payload inválido, tipo desconocido).
var ErrPermanent = errors.New("permanent failure")

// Permanent envuelve err para que el mensaje vaya a dead-letter en lugar de reencolarse.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Publisher envía un cuerpo ya serializado a una cola lógica.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Handler procesa un mensaje. nil => ack, ErrPermanent => nack sin requeue, otro => nack con requeue.
type Handler func(ctx context.Context, body []byte) error

// Subscriber consume una cola hasta que ctx se cancela. Bloquea.
type Subscriber interface {
	Subscribe(ctx context.Context, queue string, h Handler) error
}

// Delivery es un mensaje pendiente de confirmación manual.
type Delivery interface {
	Body() []byte
	Ack() error
	Nack(requeue bool) error
}

// Outcome resume qué se hizo con el mensaje.
type Outcome int

const (
	Acked Outcome = iota
	Requeued
	DeadLettered
)

// Dispatch ejecuta h y confirma el mensaje según el error devuelto. El handler recibe un
// contexto que no se cancela con el apagado para que el mensaje en curso termine.
func Dispatch(ctx context.Context, queue string, d Delivery, h Handler, log *zap.Logger) Outcome {
	err := h(context.WithoutCancel(ctx), d.Body())

	switch {
	case err == nil:
		if ackErr := d.Ack(); ackErr != nil {
			log.Warn("⚠️ No se pudo confirmar el mensaje", zap.String("queue", queue), zap.Error(ackErr))
		}
		return Acked

	case errors.Is(err, ErrPermanent):
		log.Error("☠️ Mensaje descartado a dead-letter", zap.String("queue", queue), zap.Error(err))
		if nackErr := d.Nack(false); nackErr != nil {
			log.Warn("⚠️ No se pudo rechazar el mensaje", zap.String("queue", queue), zap.Error(nackErr))
		}
		return DeadLettered

	default:
		log.Warn("🔁 Error transitorio, mensaje reencolado", zap.String("queue", queue), zap.Error(err))
		if nackErr := d.Nack(true); nackErr != nil {
			log.Warn("⚠️ No se pudo reencolar el mensaje", zap.String("queue", queue), zap.Error(nackErr))
		}
		return Requeued
	}
}
