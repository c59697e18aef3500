package setup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/phoneregistry/internal/config"
	"github.com/davicafu/phoneregistry/internal/report/domain"
	"github.com/davicafu/phoneregistry/tests/testdb"
)

func TestNewReportRepo_SQLite(t *testing.T) {
	ctx := context.Background()
	db := testdb.NewSQLite(t)

	repo, err := NewReportRepo(ctx, &config.Config{DBDriver: config.DriverSQLite}, db)
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, domain.NewReport(time.Now()).ID)
	assert.ErrorIs(t, err, domain.ErrReportNotFound)
}

func TestOpenProjection_SQLiteFile(t *testing.T) {
	cfg := &config.Config{
		ProjectionDriver:     config.DriverSQLite,
		ProjectionSQLitePath: filepath.Join(t.TempDir(), "projection.db"),
	}

	store, closeFn, err := OpenProjection(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()

	tallies, err := store.ListTallies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tallies)
}

func TestOpenStatisticsSink_DisabledWithoutAddr(t *testing.T) {
	sink, closeFn := OpenStatisticsSink(context.Background(), &config.Config{}, zap.NewNop())
	defer closeFn()
	assert.Nil(t, sink)
}
