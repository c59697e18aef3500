package testdb

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// NewSQLite abre una base SQLite en memoria. Con una sola conexión todas las consultas
// ven la misma base (cada conexión a :memory: tendría la suya).
func NewSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`PRAGMA foreign_keys = ON`)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })
	return db
}
