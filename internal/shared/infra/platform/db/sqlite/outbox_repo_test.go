package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/phoneregistry/internal/shared/domain"
	"github.com/davicafu/phoneregistry/tests/testdb"
)

func newRepo(t *testing.T) *OutboxRepoSQLite {
	t.Helper()
	db := testdb.NewSQLite(t)
	require.NoError(t, InitOutboxSchema(context.Background(), db))
	return NewOutboxRepoSQLite(db)
}

func appendEvent(t *testing.T, r *OutboxRepoSQLite, occurredAt time.Time) domain.OutboxEvent {
	t.Helper()
	evt := domain.OutboxEvent{
		ID:         uuid.New(),
		EventType:  "ReportRequested",
		Payload:    json.RawMessage(`{"reportId":"` + uuid.NewString() + `"}`),
		OccurredAt: occurredAt,
		Status:     domain.OutboxPending,
	}
	require.NoError(t, r.Append(context.Background(), r.db, evt))
	return evt
}

func TestOutboxRepoSQLite_FetchPendingOrdersByOccurredAt(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	second := appendEvent(t, repo, base.Add(time.Second))
	first := appendEvent(t, repo, base)
	published := appendEvent(t, repo, base.Add(-time.Minute))
	require.NoError(t, repo.MarkPublished(ctx, published.ID, base))

	events, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)
	assert.JSONEq(t, string(first.Payload), string(events[0].Payload))
	assert.Equal(t, domain.OutboxPending, events[0].Status)
	assert.Nil(t, events[0].ProcessedAt)

	limited, err := repo.FetchPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestOutboxRepoSQLite_ClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	evt := appendEvent(t, repo, time.Now().UTC())

	require.NoError(t, repo.MarkProcessing(ctx, evt.ID, time.Now().UTC()))
	err := repo.MarkProcessing(ctx, evt.ID, time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrOutboxEventClaimed)

	err = repo.MarkProcessing(ctx, uuid.New(), time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrOutboxEventNotFound)

	pending, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxRepoSQLite_FailureBookkeeping(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	evt := appendEvent(t, repo, time.Now().UTC())

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.MarkProcessing(ctx, evt.ID, time.Now().UTC()))
		require.NoError(t, repo.MarkFailed(ctx, evt.ID, "broker unreachable"))
	}

	events, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.OutboxFailed, events[0].Status)
	assert.Equal(t, 3, events[0].RetryCount)
	require.NotNil(t, events[0].LastError)
	assert.Equal(t, "broker unreachable", *events[0].LastError)

	processedAt := time.Now().UTC()
	require.NoError(t, repo.MarkProcessing(ctx, evt.ID, processedAt))
	require.NoError(t, repo.MarkPublished(ctx, evt.ID, processedAt))

	var (
		status     int
		retryCount int
		processed  *time.Time
	)
	row := repo.db.QueryRowContext(ctx, `SELECT status, retry_count, processed_at FROM outbox_events WHERE id = ?`, evt.ID.String())
	require.NoError(t, row.Scan(&status, &retryCount, &processed))
	assert.Equal(t, int(domain.OutboxPublished), status)
	assert.Equal(t, 3, retryCount)
	assert.NotNil(t, processed)
}

func TestOutboxRepoSQLite_ReleaseStaleAndPrune(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	now := time.Now().UTC()

	stuck := appendEvent(t, repo, now)
	require.NoError(t, repo.MarkProcessing(ctx, stuck.ID, now.Add(-time.Hour)))
	fresh := appendEvent(t, repo, now)
	require.NoError(t, repo.MarkProcessing(ctx, fresh.ID, now))

	released, err := repo.ReleaseStale(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	pending, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stuck.ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].RetryCount)

	old := appendEvent(t, repo, now.Add(-48*time.Hour))
	require.NoError(t, repo.MarkPublished(ctx, old.ID, now.Add(-48*time.Hour)))

	pruned, err := repo.PruneProcessed(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

func TestOutboxRepoSQLite_MarkUnknownEvent(t *testing.T) {
	repo := newRepo(t)
	err := repo.MarkFailed(context.Background(), uuid.New(), "x")
	assert.ErrorIs(t, err, domain.ErrOutboxEventNotFound)
}
