package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)

	assert.Contains(t, names, "000001_create_exchanges.up.sql")
	assert.Contains(t, names, "000001_create_exchanges.down.sql")
	assert.Zero(t, len(names)%2, "every migration needs an up and a down file")
}

func TestMigrations_UpCreatesExchanges(t *testing.T) {
	content, err := migrationsFS.ReadFile("migrations/000001_create_exchanges.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS exchanges")
	assert.Contains(t, string(content), "response_lines TEXT[]")
}
