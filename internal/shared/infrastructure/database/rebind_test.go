package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	q := `SELECT id FROM tasks WHERE title = ? AND note <> '?' AND version = ?`

	assert.Equal(t, q, Rebind(DriverSQLite, q))
	assert.Equal(t,
		`SELECT id FROM tasks WHERE title = $1 AND note <> '?' AND version = $2`,
		Rebind(DriverPostgres, q))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?, ?, ?", Placeholders(DriverSQLite, 1, 3))
	assert.Equal(t, "$2, $3", Placeholders(DriverPostgres, 2, 2))
	assert.Equal(t, "", Placeholders(DriverPostgres, 1, 0))
}
