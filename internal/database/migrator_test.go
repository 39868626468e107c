package database

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNamesSorted(t *testing.T) {
	m := &Migrator{migrations: fstest.MapFS{
		"migrations/010_later.sql":   {Data: []byte("SELECT 1;")},
		"migrations/002_second.sql":  {Data: []byte("SELECT 1;")},
		"migrations/001_initial.sql": {Data: []byte("SELECT 1;")},
	}}

	names, err := m.migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_initial.sql", "002_second.sql", "010_later.sql"}, names)
}

func TestEmbeddedSchema(t *testing.T) {
	m := NewMigrator(nil)

	names, err := m.migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_initial_schema.sql", names[0])

	body, err := migrationsFS.ReadFile("migrations/001_initial_schema.sql")
	require.NoError(t, err)
	schema := string(body)

	for _, table := range []string{"photos", "photo_access", "photo_selections", "survey_responses", "payments", "order_items"} {
		assert.True(t, strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" ("), table)
	}
	assert.Contains(t, schema, "CHECK (NOT is_unlocked OR payment_completed)")
	assert.Contains(t, schema, "UNIQUE (payment_id, photo_id)")
}
