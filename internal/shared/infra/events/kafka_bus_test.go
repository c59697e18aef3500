package events

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/phoneregistry/internal/shared/infra/platform/bus"
)

type fakeKafkaWriter struct {
	written []kafka.Message
	err     error
}

func (w *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeKafkaWriter) Close() error { return nil }

type fakeCommitter struct {
	committed []kafka.Message
}

func (c *fakeCommitter) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	c.committed = append(c.committed, msgs...)
	return nil
}

func newKafkaDelivery(w *fakeKafkaWriter, c *fakeCommitter) *kafkaDelivery {
	msg := kafka.Message{Topic: "report-processing", Key: []byte("k"), Value: []byte(`{"type":"ReportRequested"}`), Offset: 7}
	return &kafkaDelivery{writer: w, committer: c, msg: msg, ctx: context.Background()}
}

func TestKafkaDelivery_Ack(t *testing.T) {
	w, c := &fakeKafkaWriter{}, &fakeCommitter{}

	require.NoError(t, newKafkaDelivery(w, c).Ack())

	assert.Empty(t, w.written)
	require.Len(t, c.committed, 1)
	assert.Equal(t, int64(7), c.committed[0].Offset)
}

func TestKafkaDelivery_Nack(t *testing.T) {
	tests := []struct {
		name    string
		requeue bool
		topic   string
	}{
		{"requeue reescribe en el mismo topic", true, "report-processing"},
		{"dead-letter escribe en .dlq", false, "report-processing.dlq"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, c := &fakeKafkaWriter{}, &fakeCommitter{}

			require.NoError(t, newKafkaDelivery(w, c).Nack(tt.requeue))

			require.Len(t, w.written, 1)
			assert.Equal(t, tt.topic, w.written[0].Topic)
			assert.Equal(t, []byte("k"), w.written[0].Key)
			assert.Equal(t, []byte(`{"type":"ReportRequested"}`), w.written[0].Value)
			assert.Len(t, c.committed, 1, "the original offset is committed after forwarding")
		})
	}
}

func TestKafkaDelivery_NackWithoutCommitWhenForwardFails(t *testing.T) {
	w, c := &fakeKafkaWriter{err: errors.New("broker down")}, &fakeCommitter{}

	err := newKafkaDelivery(w, c).Nack(true)

	assert.ErrorContains(t, err, "forward to report-processing")
	assert.Empty(t, c.committed)
}

func TestKafkaDelivery_DispatchPermanentErrorGoesToDLQ(t *testing.T) {
	w, c := &fakeKafkaWriter{}, &fakeCommitter{}

	outcome := sharedBus.Dispatch(context.Background(), "report-processing", newKafkaDelivery(w, c),
		func(ctx context.Context, body []byte) error {
			return sharedBus.Permanent(errors.New("bad payload"))
		}, zap.NewNop())

	assert.Equal(t, sharedBus.DeadLettered, outcome)
	require.Len(t, w.written, 1)
	assert.Equal(t, DeadLetterQueue("report-processing"), w.written[0].Topic)
	assert.Len(t, c.committed, 1)
}

func TestKafkaBus_PublishWrapsWriterError(t *testing.T) {
	w := &fakeKafkaWriter{err: errors.New("no leader")}
	bus := &KafkaBus{writer: w, log: zap.NewNop()}

	err := bus.Publish(context.Background(), "contact-events", []byte("{}"))

	assert.ErrorContains(t, err, "publish to contact-events")
}
