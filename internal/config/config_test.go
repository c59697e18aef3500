package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("BUS_DRIVER", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, BusMemory, cfg.BusDriver)
	assert.Equal(t, time.Second, cfg.OutboxInterval)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 2*time.Second, cfg.OutboxErrorBackoff)
	assert.Equal(t, 200, cfg.ContactAPIPageSize)
	assert.Equal(t, 30*time.Second, cfg.ContactAPITimeout)
	assert.Equal(t, 3, cfg.ContactAPIRetries)
	assert.Equal(t, uint32(5), cfg.BreakerFailures)
}

func TestLoadConfig_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("POSTGRES_DSN", "")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "POSTGRES_DSN")
}

func TestLoadConfig_RejectsUnknownBus(t *testing.T) {
	t.Setenv("BUS_DRIVER", "carrier-pigeon")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "BUS_DRIVER")
}

func TestLoadConfig_RejectsPageSizeAboveAPIMaximum(t *testing.T) {
	t.Setenv("BUS_DRIVER", "memory")
	t.Setenv("CONTACT_API_PAGE_SIZE", "1000")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "CONTACT_API_PAGE_SIZE")
}
