package db_test

import (
	"testing"

	"github.com/jovenlab/sportal/internal/db"
	"github.com/jovenlab/sportal/internal/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_Idempotent(t *testing.T) {
	conn := dbtest.New(t)

	require.NoError(t, db.RunMigrations(conn))

	for _, table := range []string{"users", "tournaments", "registrations", "matches", "match_generations", "sessions"} {
		var name string
		err := conn.Get(&name, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := db.Open("mysql", "whatever")
	assert.ErrorContains(t, err, "unsupported")
}
