package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	sharedBus "github.com/davicafu/phoneregistry/internal/shared/infra/platform/bus"
)

// InMemoryBus implementa Publisher y Subscriber con un canal por cola.
// Los consumidores de una misma cola compiten por los mensajes, igual que en un broker.
type InMemoryBus struct {
	mu           sync.Mutex
	queues       map[string]chan []byte
	deadLetters  map[string][][]byte
	bufferSize   int
	requeueDelay time.Duration
	log          *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
	requeues  sync.WaitGroup
}

// ErrBusClosed lo devuelve Publish tras Close.
var ErrBusClosed = errors.New("in-memory bus closed")

var _ sharedBus.Publisher = (*InMemoryBus)(nil)
var _ sharedBus.Subscriber = (*InMemoryBus)(nil)

func NewInMemoryBus(bufferSize int, log *zap.Logger) *InMemoryBus {
	return &InMemoryBus{
		queues:       make(map[string]chan []byte),
		deadLetters:  make(map[string][][]byte),
		bufferSize:   bufferSize,
		requeueDelay: 50 * time.Millisecond,
		log:          log,
		done:         make(chan struct{}),
	}
}

// Close detiene los reencolados pendientes. Lo que no cabía en su cola se pierde.
func (b *InMemoryBus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	b.requeues.Wait()
	return nil
}

func (b *InMemoryBus) queue(name string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.queues[name]
	if !ok {
		ch = make(chan []byte, b.bufferSize)
		b.queues[name] = ch
	}
	return ch
}

func (b *InMemoryBus) closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Publish bloquea si la cola está llena hasta que haya hueco o se cancele ctx.
func (b *InMemoryBus) Publish(ctx context.Context, queue string, body []byte) error {
	if b.closed() {
		return ErrBusClosed
	}
	msg := append([]byte(nil), body...)
	select {
	case b.queue(queue) <- msg:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *InMemoryBus) Subscribe(ctx context.Context, queue string, h sharedBus.Handler) error {
	ch := b.queue(queue)
	b.log.Info("🎧 Consumidor en memoria iniciado", zap.String("queue", queue))

	for {
		select {
		case <-ctx.Done():
			b.log.Info("🛑 Consumidor en memoria detenido", zap.String("queue", queue))
			return nil
		case <-b.done:
			b.log.Info("🛑 Bus en memoria cerrado", zap.String("queue", queue))
			return nil
		case body := <-ch:
			sharedBus.Dispatch(ctx, queue, &memoryDelivery{bus: b, queue: queue, body: body}, h, b.log)
		}
	}
}

// DeadLetters devuelve los mensajes rechazados sin requeue de una cola.
func (b *InMemoryBus) DeadLetters(queue string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.deadLetters[queue]...)
}

// Pending devuelve cuántos mensajes esperan en la cola.
func (b *InMemoryBus) Pending(queue string) int {
	return len(b.queue(queue))
}

type memoryDelivery struct {
	bus   *InMemoryBus
	queue string
	body  []byte
}

func (d *memoryDelivery) Body() []byte { return d.body }

func (d *memoryDelivery) Ack() error { return nil }

func (d *memoryDelivery) Nack(requeue bool) error {
	if !requeue {
		d.bus.mu.Lock()
		d.bus.deadLetters[d.queue] = append(d.bus.deadLetters[d.queue], d.body)
		d.bus.mu.Unlock()
		return nil
	}

	// Reencolamos en otra goroutine para no bloquear al consumidor sobre su propia cola.
	b := d.bus
	if b.closed() {
		b.log.Warn("⚠️ Mensaje descartado al cerrar el bus", zap.String("queue", d.queue))
		return nil
	}
	b.requeues.Add(1)
	go func() {
		defer b.requeues.Done()

		timer := time.NewTimer(b.requeueDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-b.done:
			b.log.Warn("⚠️ Mensaje descartado al cerrar el bus", zap.String("queue", d.queue))
			return
		}

		select {
		case b.queue(d.queue) <- d.body:
		case <-b.done:
			b.log.Warn("⚠️ Mensaje descartado al cerrar el bus", zap.String("queue", d.queue))
		}
	}()
	return nil
}
