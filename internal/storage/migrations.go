package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

// Exec returns a migration body that runs each query in order.
func Exec(queries ...string) func(*sql.Tx) error {
	return func(tx *sql.Tx) error {
		for _, query := range queries {
			if _, err := tx.Exec(query); err != nil {
				return fmt.Errorf("failed to execute query: %w", err)
			}
		}
		return nil
	}
}

// Migrate applies every migration newer than the database's user_version,
// each in its own transaction, and verifies the database ends up at the
// version of the last migration. migrations must be sorted by version.
func Migrate(ctx context.Context, db *sql.DB, migrations []Migration) error {
	if err := ValidateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	expected := currentVersion
	for _, migration := range migrations {
		expected = max(expected, migration.Version)
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != expected {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", expected, finalVersion)
	}

	return nil
}
