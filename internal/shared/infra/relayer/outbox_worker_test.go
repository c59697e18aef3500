package relayer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	sharedEvents "github.com/davicafu/phoneregistry/internal/shared/events"
	sharedBus "github.com/davicafu/phoneregistry/internal/shared/infra/platform/bus"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/db/sqlite"
	"github.com/davicafu/phoneregistry/tests/mocks"
	"github.com/davicafu/phoneregistry/tests/testdb"
)

var testConfig = Config{Interval: time.Millisecond, BatchSize: 10, ErrorBackoff: time.Millisecond}

func testMetrics(t *testing.T) *Metrics {
	m, err := NewMetricsWithMeter(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return m
}

func reportRequestedEvent() sharedDomain.OutboxEvent {
	payload, _ := json.Marshal(sharedEvents.ReportRequested{ReportID: uuid.New()})
	return sharedDomain.OutboxEvent{
		ID:        uuid.New(),
		EventType: string(sharedEvents.ReportRequestedType),
		Payload:   payload,
		Status:    sharedDomain.OutboxPending,
	}
}

func TestOutboxWorker_ProcessBatch_Success(t *testing.T) {
	// ARRANGE
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	evt := reportRequestedEvent()

	repo.On("FetchPending", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{evt}, nil).Once()
	repo.On("MarkProcessing", mock.Anything, evt.ID, mock.Anything).Return(nil).Once()
	publisher.On("Publish", mock.Anything, sharedEvents.ReportProcessingQueue, mock.MatchedBy(func(body []byte) bool {
		p, err := sharedEvents.Decode(body)
		return err == nil && p.EventType() == sharedEvents.ReportRequestedType
	})).Return(nil).Once()
	repo.On("MarkPublished", mock.Anything, evt.ID, mock.Anything).Return(nil).Once()

	worker := NewOutboxWorker(repo, publisher, testConfig, testMetrics(t), zap.NewNop())

	// ACT
	err := worker.ProcessBatch(context.Background())

	// ASSERT
	require.NoError(t, err)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
	repo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestOutboxWorker_ProcessBatch_PublisherFails(t *testing.T) {
	// ARRANGE
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	evt := reportRequestedEvent()

	repo.On("FetchPending", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{evt}, nil).Once()
	repo.On("MarkProcessing", mock.Anything, evt.ID, mock.Anything).Return(nil).Once()
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("rabbitmq is down")).Once()
	repo.On("MarkFailed", mock.Anything, evt.ID, "rabbitmq is down").Return(nil).Once()

	worker := NewOutboxWorker(repo, publisher, testConfig, testMetrics(t), zap.NewNop())

	// ACT
	err := worker.ProcessBatch(context.Background())

	// ASSERT
	require.NoError(t, err)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "MarkPublished", mock.Anything, mock.Anything, mock.Anything)
}

func TestOutboxWorker_ProcessBatch_SkipsEventsClaimedElsewhere(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	evt := reportRequestedEvent()

	repo.On("FetchPending", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{evt}, nil).Once()
	repo.On("MarkProcessing", mock.Anything, evt.ID, mock.Anything).Return(sharedDomain.ErrOutboxEventClaimed).Once()

	worker := NewOutboxWorker(repo, publisher, testConfig, testMetrics(t), zap.NewNop())
	require.NoError(t, worker.ProcessBatch(context.Background()))

	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestOutboxWorker_ProcessBatch_UnmappedEventTypeIsLeftAlone(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	publisher := new(mocks.MockPublisher)
	evt := sharedDomain.OutboxEvent{ID: uuid.New(), EventType: "unregistered.event", Payload: json.RawMessage(`{}`)}

	repo.On("FetchPending", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{evt}, nil).Once()

	worker := NewOutboxWorker(repo, publisher, testConfig, testMetrics(t), zap.NewNop())
	require.NoError(t, worker.ProcessBatch(context.Background()))

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "MarkProcessing", mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestOutboxWorker_ProcessBatch_FetchErrorIsReturned(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	repo.On("FetchPending", mock.Anything, 10).Return(nil, errors.New("database is locked")).Once()

	worker := NewOutboxWorker(repo, new(mocks.MockPublisher), testConfig, nil, zap.NewNop())

	err := worker.ProcessBatch(context.Background())
	assert.ErrorContains(t, err, "database is locked")
}

func TestOutboxWorker_ProcessBatch_ReleasesStaleClaimsFirst(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	cfg := testConfig
	cfg.ClaimTimeout = time.Minute

	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.On("ReleaseStale", mock.Anything, fixed.Add(-time.Minute)).Return(int64(2), nil).Once()
	repo.On("FetchPending", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{}, nil).Once()

	worker := NewOutboxWorker(repo, new(mocks.MockPublisher), cfg, nil, zap.NewNop())
	worker.now = func() time.Time { return fixed }

	require.NoError(t, worker.ProcessBatch(context.Background()))
	repo.AssertExpectations(t)
}

// flakyPublisher falla las primeras n publicaciones.
type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	bodies   [][]byte
}

func (p *flakyPublisher) Publish(ctx context.Context, queue string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	p.bodies = append(p.bodies, body)
	return nil
}

func TestOutboxWorker_RetryBookkeepingAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	db := testdb.NewSQLite(t)
	require.NoError(t, sqlite.InitOutboxSchema(ctx, db))
	repo := sqlite.NewOutboxRepoSQLite(db)

	evt := reportRequestedEvent()
	evt.OccurredAt = time.Now().UTC()
	require.NoError(t, repo.Append(ctx, db, evt))

	publisher := &flakyPublisher{failures: 3}
	worker := NewOutboxWorker(repo, publisher, testConfig, testMetrics(t), zap.NewNop())

	for i := 0; i < 4; i++ {
		require.NoError(t, worker.ProcessBatch(ctx))
	}

	var (
		status      int
		retryCount  int
		processedAt sql.NullTime
	)
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT status, retry_count, processed_at FROM outbox_events WHERE id = ?`, evt.ID.String(),
	).Scan(&status, &retryCount, &processedAt))

	assert.Equal(t, int(sharedDomain.OutboxPublished), status)
	assert.Equal(t, 3, retryCount)
	assert.True(t, processedAt.Valid)
	require.Len(t, publisher.bodies, 1)

	// Una pasada más no vuelve a publicar
	require.NoError(t, worker.ProcessBatch(ctx))
	assert.Equal(t, 4, publisher.calls)
}

func TestOutboxWorker_StartStopsOnCancel(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	repo.On("FetchPending", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{}, nil)

	worker := NewOutboxWorker(repo, new(mocks.MockPublisher), testConfig, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	repo.AssertCalled(t, "FetchPending", mock.Anything, 10)
}

// Verificación estática de que los mocks cumplen las interfaces.
var _ sharedDomain.OutboxRepository = (*mocks.MockOutboxRepository)(nil)
var _ sharedBus.Publisher = (*mocks.MockPublisher)(nil)
