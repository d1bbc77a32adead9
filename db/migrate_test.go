package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithMigrations(t *testing.T) {
	db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "facts.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"schema_migrations", "layouts", "layout_fields", "ingest_batches", "tumor_facts", "anomalies"} {
		var n int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}

	versions, err := AppliedMigrations(db)
	require.NoError(t, err)
	assert.Equal(t, []string{"000", "001", "002"}, versions)
}

func TestMigrate(t *testing.T) {
	t.Run("is idempotent", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "facts.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, Migrate(db, nil))
		require.NoError(t, Migrate(db, nil), "running migrations twice should be safe")

		versions, err := AppliedMigrations(db)
		require.NoError(t, err)
		assert.Len(t, versions, 3)
	})

	t.Run("blank fact values are rejected", func(t *testing.T) {
		db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "facts.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		_, err = db.Exec("INSERT INTO ingest_batches (id, source) VALUES ('b1', 'test')")
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO tumor_facts (batch_id, record_id, item_code, item_name, kind, value)
			VALUES ('b1', 'r1', 220, 'Sex', 'coded', '   ')`)
		assert.Error(t, err)
	})

	t.Run("fails on a closed database", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "facts.db"), nil)
		require.NoError(t, err)
		db.Close()

		assert.Error(t, Migrate(db, nil))
	})
}
