package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/phoneregistry/internal/shared/domain"
)

func newMockRepo(t *testing.T) (*OutboxRepoPostgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewOutboxRepoPostgres(db), mock
}

func TestOutboxRepoPostgres_FetchPending(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	occurred := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "event_type", "payload", "occurred_at", "processed_at", "status", "retry_count", "last_error"}).
		AddRow(id.String(), "ContactDeleted", []byte(`{"personId":"p"}`), occurred, nil, int64(4), int64(2), "timeout")

	mock.ExpectQuery(regexp.QuoteMeta(`FROM outbox_events`)).
		WithArgs(int(domain.OutboxPending), int(domain.OutboxFailed), 100).
		WillReturnRows(rows)

	events, err := repo.FetchPending(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Equal(t, domain.OutboxFailed, events[0].Status)
	assert.Equal(t, 2, events[0].RetryCount)
	assert.Equal(t, occurred, events[0].OccurredAt)
	require.NotNil(t, events[0].LastError)
	assert.Equal(t, "timeout", *events[0].LastError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepoPostgres_MarkProcessing(t *testing.T) {
	id := uuid.New()

	t.Run("claimed", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE outbox_events SET status = $1, claimed_at = $2`)).
			WithArgs(int(domain.OutboxProcessing), sqlmock.AnyArg(), id.String(), int(domain.OutboxPending), int(domain.OutboxFailed)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))

		assert.NoError(t, repo.MarkProcessing(context.Background(), id, time.Now()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already claimed", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE outbox_events`)).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
			WithArgs(id.String()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := repo.MarkProcessing(context.Background(), id, time.Now())
		assert.ErrorIs(t, err, domain.ErrOutboxEventClaimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE outbox_events`)).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := repo.MarkProcessing(context.Background(), id, time.Now())
		assert.ErrorIs(t, err, domain.ErrOutboxEventNotFound)
	})
}

func TestOutboxRepoPostgres_MarkFailedIncrementsRetry(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`SET status = $1, retry_count = retry_count + 1, last_error = $2 WHERE id = $3`)).
		WithArgs(int(domain.OutboxFailed), "broker down", id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.MarkFailed(context.Background(), id, "broker down"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepoPostgres_MarkPublishedNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE outbox_events SET status = $1, processed_at = $2`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkPublished(context.Background(), uuid.New(), time.Now())
	assert.ErrorIs(t, err, domain.ErrOutboxEventNotFound)
}
