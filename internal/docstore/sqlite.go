package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/service"
	"github.com/HarshGadhecha/SpendWise/internal/storage"
)

var sqliteMigrations = []storage.Migration{
	{
		Version:     1,
		Description: "Initial documents schema",
		Up: storage.Exec(
			`CREATE TABLE IF NOT EXISTS documents (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				collection TEXT NOT NULL,
				id TEXT NOT NULL,
				user_id TEXT NOT NULL DEFAULT '',
				data TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (collection, id)
			)`,
			`CREATE INDEX idx_documents_owner ON documents(collection, user_id)`,
		),
	},
}

// SQLiteStore is a DocumentStore kept in a local SQLite database. Live
// queries are served by an in-process change hub, so only writes made
// through the same SQLiteStore are observed.
type SQLiteStore struct {
	db  *sql.DB
	hub *changeHub
}

// NewSQLiteStore opens the database at dbPath and migrates it.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db, sqliteMigrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, hub: newChangeHub()}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Set creates or replaces a document. A replaced document keeps its
// position in insertion order.
func (s *SQLiteStore) Set(ctx context.Context, collection, id string, doc service.Document) error {
	if err := validateKey(ctx, collection, id); err != nil {
		return err
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	owner := ownerOf(collection, id, doc)

	// The previous owner must also hear about a document that moved.
	var previous string
	err = s.db.QueryRowContext(ctx,
		`SELECT user_id FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return sqliteError("set", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, user_id, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			user_id = excluded.user_id,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		collection, id, owner, string(data), time.Now().UTC())
	if err != nil {
		return sqliteError("set", err)
	}

	s.hub.publish(topic{collection: collection, owner: owner})
	if previous != "" && previous != owner {
		s.hub.publish(topic{collection: collection, owner: previous})
	}
	return nil
}

// Get returns one document or common.ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (service.Document, error) {
	if err := validateKey(ctx, collection, id); err != nil {
		return nil, err
	}
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", common.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, sqliteError("get", err)
	}
	return decodeDocument([]byte(data))
}

// Query returns the owner's documents in a collection.
func (s *SQLiteStore) Query(ctx context.Context, q service.Query) ([]service.Document, error) {
	if err := validateQuery(ctx, q); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND user_id = ? ORDER BY seq`,
		q.Collection, q.OwnerID)
	if err != nil {
		return nil, sqliteError("query", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []service.Document
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, sqliteError("query", err)
		}
		doc, err := decodeDocument([]byte(data))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError("query", err)
	}

	sortDocuments(docs, q.OrderBy, q.Descending)
	return docs, nil
}

// Listen runs q as a live query.
func (s *SQLiteStore) Listen(ctx context.Context, q service.Query, fn func([]service.Document)) (func(), error) {
	if err := validateQuery(ctx, q); err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context) ([]service.Document, error) {
		return s.Query(ctx, q)
	}
	return listen(ctx, s.hub, topic{collection: q.Collection, owner: q.OwnerID}, fetch, fn), nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	if err := validateKey(ctx, collection, id); err != nil {
		return err
	}
	var owner string
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ? RETURNING user_id`,
		collection, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return sqliteError("delete", err)
	}
	s.hub.publish(topic{collection: collection, owner: owner})
	return nil
}

// sqliteError classifies a database failure. A local database that fails
// is reported as a remote error, except for expired deadlines.
func sqliteError(op string, err error) error {
	return common.ClassifyRemote("sqlite "+op, err)
}

func validateKey(ctx context.Context, collection, id string) error {
	if err := storage.ValidateContext(ctx); err != nil {
		return err
	}
	if err := storage.ValidateString(collection, "collection"); err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	if err := storage.ValidateString(id, "id"); err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	return nil
}

func validateQuery(ctx context.Context, q service.Query) error {
	if err := storage.ValidateContext(ctx); err != nil {
		return err
	}
	if err := storage.ValidateString(q.Collection, "collection"); err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	if err := storage.ValidateString(q.OwnerID, "owner"); err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	return nil
}

// ownerOf returns the owner a document is indexed under: its userId field,
// or its own id for the users collection.
func ownerOf(collection, id string, doc service.Document) string {
	if owner, ok := doc[service.OwnerField].(string); ok && owner != "" {
		return owner
	}
	if collection == UsersCollection {
		return id
	}
	return ""
}

// UsersCollection holds profiles, each owned by the user it describes.
const UsersCollection = "users"
