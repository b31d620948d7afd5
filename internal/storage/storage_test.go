package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMigrations = []Migration{
	{
		Version:     1,
		Description: "Create items",
		Up:          Exec(`CREATE TABLE items (id TEXT PRIMARY KEY)`),
	},
	{
		Version:     2,
		Description: "Add items.name",
		Up:          Exec(`ALTER TABLE items ADD COLUMN name TEXT`),
	},
}

func userVersion(t *testing.T, db *sql.DB) int {
	t.Helper()
	var v int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&v))
	return v
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, Migrate(ctx, db, testMigrations[:1]))
	assert.Equal(t, 1, userVersion(t, db))

	require.NoError(t, Migrate(ctx, db, testMigrations))
	assert.Equal(t, 2, userVersion(t, db))

	// Running again is a no-op.
	require.NoError(t, Migrate(ctx, db, testMigrations))

	_, err = db.Exec(`INSERT INTO items (id, name) VALUES ('a', 'b')`)
	require.NoError(t, err)
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	db, err := Open(MemoryPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	broken := append([]Migration{}, testMigrations[0], Migration{
		Version:     2,
		Description: "broken",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE TABLE other (id TEXT)`); err != nil {
				return err
			}
			return errors.New("boom")
		},
	})

	err = Migrate(ctx, db, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 2 failed")
	assert.Equal(t, 1, userVersion(t, db))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'other'`).Scan(&n))
	assert.Zero(t, n)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		err   error
		name  string
		value string
	}{
		{name: "ok", value: "x"},
		{name: "empty", value: "", err: ErrEmptyString},
		{name: "blank", value: "   ", err: ErrEmptyString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateString(tt.value, "p")
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}

	//nolint:staticcheck // nil context is the case under test
	assert.ErrorIs(t, ValidateContext(nil), ErrNilContext)
	_, err := Open("")
	assert.ErrorIs(t, err, ErrEmptyString)
}
