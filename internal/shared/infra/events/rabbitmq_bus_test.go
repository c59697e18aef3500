package events

import (
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type declaredQueue struct {
	name    string
	durable bool
	args    amqp.Table
}

type fakeTopologyChannel struct {
	exchanges []string
	queues    []declaredQueue
	bindings  [][3]string
	queueErr  error
}

func (f *fakeTopologyChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	f.exchanges = append(f.exchanges, name+":"+kind)
	return nil
}

func (f *fakeTopologyChannel) QueueDeclare(name string, durable, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	if f.queueErr != nil {
		return amqp.Queue{}, f.queueErr
	}
	f.queues = append(f.queues, declaredQueue{name: name, durable: durable, args: args})
	return amqp.Queue{Name: name}, nil
}

func (f *fakeTopologyChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	f.bindings = append(f.bindings, [3]string{name, key, exchange})
	return nil
}

func TestDeclareQueue_DeadLetterTopology(t *testing.T) {
	ch := &fakeTopologyChannel{}

	require.NoError(t, DeclareQueue(ch, "report-processing"))

	assert.Equal(t, []string{"report-processing.dlx:direct"}, ch.exchanges)
	require.Len(t, ch.queues, 2)

	assert.Equal(t, "report-processing.dlq", ch.queues[0].name)
	assert.True(t, ch.queues[0].durable)

	main := ch.queues[1]
	assert.Equal(t, "report-processing", main.name)
	assert.True(t, main.durable)
	assert.Equal(t, "report-processing.dlx", main.args["x-dead-letter-exchange"])
	assert.Equal(t, "report-processing", main.args["x-dead-letter-routing-key"])

	assert.Equal(t, [][3]string{{"report-processing.dlq", "report-processing", "report-processing.dlx"}}, ch.bindings)
}

func TestDeclareQueue_PropagatesErrors(t *testing.T) {
	boom := errors.New("channel closed")
	err := DeclareQueue(&fakeTopologyChannel{queueErr: boom}, "contact-events")

	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "contact-events.dlq")
}
