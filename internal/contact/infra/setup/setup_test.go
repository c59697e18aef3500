package setup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/phoneregistry/internal/config"
	"github.com/davicafu/phoneregistry/internal/contact/domain"
	"github.com/davicafu/phoneregistry/tests/testdb"
)

func TestNewPersonRepo_SQLiteSeedsCities(t *testing.T) {
	ctx := context.Background()
	db := testdb.NewSQLite(t)

	repo, err := NewPersonRepo(ctx, &config.Config{DBDriver: config.DriverSQLite}, db)
	require.NoError(t, err)

	cities, err := repo.ListCities(ctx)
	require.NoError(t, err)
	assert.Len(t, cities, len(domain.DefaultCities))
}
