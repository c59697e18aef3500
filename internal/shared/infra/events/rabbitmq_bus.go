package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/phoneregistry/internal/shared/infra/platform/bus"
)

// topologyChannel es el subconjunto de *amqp.Channel necesario para declarar colas.
type topologyChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

func deadLetterExchange(queue string) string { return queue + ".dlx" }

// DeadLetterQueue devuelve el nombre de la cola de dead-letter asociada a queue.
func DeadLetterQueue(queue string) string { return queue + ".dlq" }

// DeclareQueue declara una cola durable con su exchange y cola de dead-letter.
// Un Nack sin requeue acaba en <queue>.dlq.
func DeclareQueue(ch topologyChannel, queue string) error {
	dlx := deadLetterExchange(queue)
	dlq := DeadLetterQueue(queue)

	if err := ch.ExchangeDeclare(dlx, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlx %s: %w", dlx, err)
	}
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq %s: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, queue, dlx, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", dlq, dlx, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    dlx,
		"x-dead-letter-routing-key": queue,
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

// RabbitMQBus publica en el exchange por defecto (routing key = cola) con confirmaciones del broker
// y consume con ack manual, un canal por consumidor.
type RabbitMQBus struct {
	conn     *amqp.Connection
	pubMu    sync.Mutex
	pubCh    *amqp.Channel
	declared map[string]bool
	prefetch int
	log      *zap.Logger
}

var _ sharedBus.Publisher = (*RabbitMQBus)(nil)
var _ sharedBus.Subscriber = (*RabbitMQBus)(nil)

func NewRabbitMQBus(url string, prefetch int, log *zap.Logger) (*RabbitMQBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	return &RabbitMQBus{
		conn:     conn,
		pubCh:    ch,
		declared: make(map[string]bool),
		prefetch: prefetch,
		log:      log,
	}, nil
}

// Publish devuelve nil sólo cuando el broker ha confirmado el mensaje.
func (b *RabbitMQBus) Publish(ctx context.Context, queue string, body []byte) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	if !b.declared[queue] {
		if err := DeclareQueue(b.pubCh, queue); err != nil {
			return err
		}
		b.declared[queue] = true
	}

	confirm, err := b.pubCh.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait confirm from %s: %w", queue, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked message for %s", queue)
	}
	return nil
}

// Subscribe consume hasta que ctx se cancela. El mensaje en curso termina antes de cerrar el canal;
// los mensajes prefetch sin ack vuelven a la cola al cerrarse.
func (b *RabbitMQBus) Subscribe(ctx context.Context, queue string, h sharedBus.Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, queue); err != nil {
		return err
	}
	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	b.log.Info("🎧 Consumidor RabbitMQ iniciado", zap.String("queue", queue), zap.Int("prefetch", b.prefetch))

	for {
		select {
		case <-ctx.Done():
			b.log.Info("🛑 Consumidor RabbitMQ detenido", zap.String("queue", queue))
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			sharedBus.Dispatch(ctx, queue, amqpDelivery{d}, h, b.log)
		}
	}
}

func (b *RabbitMQBus) Close() error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	_ = b.pubCh.Close()
	return b.conn.Close()
}

type amqpDelivery struct {
	d amqp.Delivery
}

func (a amqpDelivery) Body() []byte            { return a.d.Body }
func (a amqpDelivery) Ack() error              { return a.d.Ack(false) }
func (a amqpDelivery) Nack(requeue bool) error { return a.d.Nack(false, requeue) }
