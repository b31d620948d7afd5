// Package localstore implements device-local key-value storage on SQLite with
// a plain namespace and an encrypted secret namespace.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/model"
	"github.com/HarshGadhecha/SpendWise/internal/service"
	"github.com/HarshGadhecha/SpendWise/internal/storage"
)

const (
	namespacePlain  = "plain"
	namespaceSecret = "secret"

	metaSalt     = "salt"
	metaKeyCheck = "key_check"
	keyCheckText = "spendwise"
)

// ErrWrongPassphrase is returned by Open when the passphrase does not match
// the one the secret namespace was created with.
var ErrWrongPassphrase = fmt.Errorf("%w: secret passphrase does not match", common.ErrInvalidConfig)

var migrations = []storage.Migration{
	{
		Version:     1,
		Description: "Key-value namespaces and key derivation metadata",
		Up: storage.Exec(
			`CREATE TABLE kv (
				namespace TEXT NOT NULL,
				key TEXT NOT NULL,
				value TEXT NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (namespace, key)
			)`,
			`CREATE TABLE meta (
				name TEXT PRIMARY KEY,
				value BLOB NOT NULL
			)`,
		),
	},
}

// Store is a SQLite-backed service.KeyValueStore.
type Store struct {
	db     *sql.DB
	sealer *sealer
	now    func() time.Time
}

var _ service.KeyValueStore = (*Store)(nil)

// Open opens the store at dbPath. An empty passphrase leaves the secret
// namespace locked: secret operations then fail with common.ErrMissingConfig.
func Open(ctx context.Context, dbPath, passphrase string) (*Store, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := storage.Migrate(ctx, db, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if passphrase != "" {
		if err := s.unlock(ctx, passphrase); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// unlock derives the secret key, creating the salt on first use, and checks
// it against the stored key check value.
func (s *Store) unlock(ctx context.Context, passphrase string) error {
	salt, err := s.meta(ctx, metaSalt)
	if err != nil {
		return err
	}
	if salt == nil {
		if salt, err = newSalt(); err != nil {
			return err
		}
		if err := s.setMeta(ctx, metaSalt, salt); err != nil {
			return err
		}
	}

	sl, err := newSealer(passphrase, salt)
	if err != nil {
		return err
	}

	check, err := s.meta(ctx, metaKeyCheck)
	if err != nil {
		return err
	}
	if check == nil {
		sealed, sealErr := sl.seal(metaKeyCheck, []byte(keyCheckText))
		if sealErr != nil {
			return sealErr
		}
		if err := s.setMeta(ctx, metaKeyCheck, []byte(sealed)); err != nil {
			return err
		}
	} else if plain, openErr := sl.open(metaKeyCheck, string(check)); openErr != nil || string(plain) != keyCheckText {
		return ErrWrongPassphrase
	}

	s.sealer = sl
	return nil
}

func (s *Store) meta(ctx context.Context, name string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return value, nil
}

func (s *Store) setMeta(ctx context.Context, name string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO meta (name, value) VALUES (?, ?)`, name, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Set stores value as JSON under key.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	data, err := encodeValue(key, value)
	if err != nil {
		return err
	}
	return s.put(ctx, namespacePlain, key, string(data))
}

// Get decodes the value under key into dst and reports whether it existed.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := s.read(ctx, namespacePlain, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Delete removes key. Removing a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.remove(ctx, namespacePlain, key)
}

// Clear removes every plain key.
func (s *Store) Clear(ctx context.Context) error {
	return s.clear(ctx, namespacePlain)
}

// Keys lists the plain keys in lexical order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := storage.ValidateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE namespace = ? ORDER BY key`, namespacePlain)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// SetSecret encrypts value and stores it under key in the secret namespace.
func (s *Store) SetSecret(ctx context.Context, key string, value any) error {
	if s.sealer == nil {
		return errLocked
	}
	data, err := encodeValue(key, value)
	if err != nil {
		return err
	}
	sealed, err := s.sealer.seal(key, data)
	if err != nil {
		return err
	}
	return s.put(ctx, namespaceSecret, key, sealed)
}

// GetSecret decrypts the secret under key into dst.
func (s *Store) GetSecret(ctx context.Context, key string, dst any) (bool, error) {
	if s.sealer == nil {
		return false, errLocked
	}
	sealed, ok, err := s.read(ctx, namespaceSecret, key)
	if err != nil || !ok {
		return false, err
	}
	data, err := s.sealer.open(key, sealed)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// DeleteSecret removes a secret. It works while the namespace is locked.
func (s *Store) DeleteSecret(ctx context.Context, key string) error {
	return s.remove(ctx, namespaceSecret, key)
}

// ClearSecret removes every secret. The key derivation salt is kept so the
// same passphrase keeps working.
func (s *Store) ClearSecret(ctx context.Context) error {
	return s.clear(ctx, namespaceSecret)
}

// LoadTheme returns the saved theme preference, defaulting to system.
func (s *Store) LoadTheme(ctx context.Context) (model.ThemePreference, error) {
	var theme model.ThemePreference
	ok, err := s.Get(ctx, KeyTheme, &theme)
	if err != nil {
		return model.ThemeSystem, err
	}
	if !ok {
		return model.ThemeSystem, nil
	}
	switch theme {
	case model.ThemeLight, model.ThemeDark, model.ThemeSystem:
		return theme, nil
	default:
		slog.Warn("Ignoring unknown theme preference", "theme", theme)
		return model.ThemeSystem, nil
	}
}

// SaveTheme persists the theme preference.
func (s *Store) SaveTheme(ctx context.Context, theme model.ThemePreference) error {
	switch theme {
	case model.ThemeLight, model.ThemeDark, model.ThemeSystem:
		return s.Set(ctx, KeyTheme, theme)
	default:
		return fmt.Errorf("%w: unknown theme %q", common.ErrValidation, theme)
	}
}

var errLocked = fmt.Errorf("%w: secret.passphrase", common.ErrMissingConfig)

func encodeValue(key string, value any) ([]byte, error) {
	if err := storage.ValidateString(key, "key"); err != nil {
		return nil, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return data, nil
}

func (s *Store) put(ctx context.Context, namespace, key, value string) error {
	if err := storage.ValidateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, namespace, key string) (string, bool, error) {
	if err := storage.ValidateContext(ctx); err != nil {
		return "", false, err
	}
	if err := storage.ValidateString(key, "key"); err != nil {
		return "", false, err
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) remove(ctx context.Context, namespace, key string) error {
	if err := storage.ValidateContext(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) clear(ctx context.Context, namespace string) error {
	if err := storage.ValidateContext(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("failed to clear %s namespace: %w", namespace, err)
	}
	return nil
}
