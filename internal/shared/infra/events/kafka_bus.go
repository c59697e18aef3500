package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/phoneregistry/internal/shared/infra/platform/bus"
)

// KafkaBus usa un topic por cola lógica. El commit del offset hace de ack; Kafka no tiene nack,
// así que el requeue reescribe el mensaje al final del topic y el dead-letter lo envía a <topic>.dlq.
type KafkaBus struct {
	brokers []string
	groupID string
	writer  kafkaWriter
	log     *zap.Logger
}

// kafkaWriter y kafkaCommitter son la parte de *kafka.Writer y *kafka.Reader que usa una Delivery.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaCommitter interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

var _ sharedBus.Publisher = (*KafkaBus)(nil)
var _ sharedBus.Subscriber = (*KafkaBus)(nil)

func NewKafkaBus(brokers []string, groupID string, log *zap.Logger) *KafkaBus {
	// El writer no fija topic: cada mensaje lleva el suyo.
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaBus{brokers: brokers, groupID: groupID, writer: writer, log: log}
}

func (b *KafkaBus) Publish(ctx context.Context, queue string, body []byte) error {
	if err := b.writer.WriteMessages(ctx, kafka.Message{Topic: queue, Value: body}); err != nil {
		b.log.Error("Error publishing to Kafka", zap.String("topic", queue), zap.Error(err))
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

func (b *KafkaBus) Subscribe(ctx context.Context, queue string, h sharedBus.Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.brokers,
		Topic:    queue,
		GroupID:  b.groupID + "-" + queue,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	defer reader.Close()

	b.log.Info("🎧 Iniciando consumidor de Kafka...",
		zap.String("topic", queue),
		zap.Strings("brokers", b.brokers),
	)

	for {
		// FetchMessage no confirma el offset; lo hace la Delivery.
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				b.log.Info("Consumidor de Kafka detenido.", zap.String("topic", queue))
				return nil
			}
			return fmt.Errorf("fetch from %s: %w", queue, err)
		}

		sharedBus.Dispatch(ctx, queue, &kafkaDelivery{writer: b.writer, committer: reader, msg: msg, ctx: ctx}, h, b.log)
	}
}

func (b *KafkaBus) Close() error {
	return b.writer.Close()
}

type kafkaDelivery struct {
	writer    kafkaWriter
	committer kafkaCommitter
	msg       kafka.Message
	ctx       context.Context
}

func (d *kafkaDelivery) Body() []byte { return d.msg.Value }

func (d *kafkaDelivery) Ack() error {
	return d.committer.CommitMessages(context.WithoutCancel(d.ctx), d.msg)
}

func (d *kafkaDelivery) Nack(requeue bool) error {
	topic := d.msg.Topic
	if !requeue {
		topic = DeadLetterQueue(d.msg.Topic)
	}

	ctx := context.WithoutCancel(d.ctx)
	if err := d.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: d.msg.Key, Value: d.msg.Value}); err != nil {
		// Sin commit: el mensaje se volverá a leer tras un reinicio.
		return fmt.Errorf("forward to %s: %w", topic, err)
	}
	return d.committer.CommitMessages(ctx, d.msg)
}
