// Package dbtest opens migrated in-memory sqlite databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jovenlab/sportal/internal/db"
	"github.com/stretchr/testify/require"
)

// New returns a fresh migrated database that is closed when the test ends.
// Every call gets its own shared-cache memory database so parallel tests
// never see each other's rows.
func New(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := db.Open(db.DriverSQLite, dsn)
	require.NoError(t, err, "Failed to connect to in-memory DB")
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.RunMigrations(conn), "Failed to apply migrations")
	return conn
}

// CreateUser inserts a user row so tournaments can reference it.
func CreateUser(t testing.TB, conn *sqlx.DB, id uuid.UUID) {
	t.Helper()
	_, err := conn.Exec(conn.Rebind("INSERT INTO users (id, email, username) VALUES (?, ?, ?)"),
		id, id.String()+"@example.com", "user-"+id.String()[:8])
	require.NoError(t, err)
}
