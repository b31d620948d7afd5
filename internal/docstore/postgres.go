package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/service"
)

// notifyChannel is the Postgres channel document changes are announced on.
const notifyChannel = "spendwise_documents"

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		seq BIGSERIAL,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		data JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (collection, user_id, seq)`,
}

// changeNotice is the NOTIFY payload.
type changeNotice struct {
	Collection string `json:"collection"`
	Owner      string `json:"userId"`
}

// PostgresStore is a DocumentStore in a Postgres database. Changes made by
// any client of the database reach live queries through LISTEN/NOTIFY.
type PostgresStore struct {
	pool   *pgxpool.Pool
	hub    *changeHub
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPostgresStore connects to dsn, retrying with backoff while the server
// comes up, creates the schema and starts the notification listener.
func NewPostgresStore(ctx context.Context, dsn string, retry common.RetryOptions) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse database config: %w", common.ErrInvalidConfig, err)
	}

	var pool *pgxpool.Pool
	err = common.WithRetry(ctx, func() error {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return postgresError("connect", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			p.Close()
			return common.Unavailable("postgres ping", err)
		}
		pool = p
		return nil
	}, retry)
	if err != nil {
		return nil, err
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, postgresError("migrate", err)
		}
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &PostgresStore{pool: pool, hub: newChangeHub(), cancel: cancel}
	s.wg.Add(1)
	go s.listenLoop(listenCtx)
	return s, nil
}

// Close stops the listener and closes the pool.
func (s *PostgresStore) Close() error {
	s.cancel()
	s.wg.Wait()
	s.pool.Close()
	return nil
}

// Set creates or replaces a document.
func (s *PostgresStore) Set(ctx context.Context, collection, id string, doc service.Document) error {
	if err := validateKey(ctx, collection, id); err != nil {
		return err
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	owner := ownerOf(collection, id, doc)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return postgresError("set", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var previous string
	err = tx.QueryRow(ctx,
		`SELECT user_id FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&previous)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return postgresError("set", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (collection, id, user_id, data, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, now())
		ON CONFLICT (collection, id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`,
		collection, id, owner, string(data))
	if err != nil {
		return postgresError("set", err)
	}

	if err := notify(ctx, tx, collection, owner); err != nil {
		return err
	}
	if previous != "" && previous != owner {
		if err := notify(ctx, tx, collection, previous); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return postgresError("set", err)
	}
	return nil
}

// Get returns one document or common.ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (service.Document, error) {
	if err := validateKey(ctx, collection, id); err != nil {
		return nil, err
	}
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", common.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, postgresError("get", err)
	}
	return decodeDocument(data)
}

// Query returns the owner's documents in a collection.
func (s *PostgresStore) Query(ctx context.Context, q service.Query) ([]service.Document, error) {
	if err := validateQuery(ctx, q); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND user_id = $2 ORDER BY seq`,
		q.Collection, q.OwnerID)
	if err != nil {
		return nil, postgresError("query", err)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, postgresError("query", err)
	}

	docs := make([]service.Document, 0, len(raw))
	for _, data := range raw {
		doc, err := decodeDocument(data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	sortDocuments(docs, q.OrderBy, q.Descending)
	return docs, nil
}

// Listen runs q as a live query.
func (s *PostgresStore) Listen(ctx context.Context, q service.Query, fn func([]service.Document)) (func(), error) {
	if err := validateQuery(ctx, q); err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context) ([]service.Document, error) {
		return s.Query(ctx, q)
	}
	return listen(ctx, s.hub, topic{collection: q.Collection, owner: q.OwnerID}, fetch, fn), nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if err := validateKey(ctx, collection, id); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return postgresError("delete", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var owner string
	err = tx.QueryRow(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2 RETURNING user_id`,
		collection, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return postgresError("delete", err)
	}
	if err := notify(ctx, tx, collection, owner); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return postgresError("delete", err)
	}
	return nil
}

func notify(ctx context.Context, tx pgx.Tx, collection, owner string) error {
	payload, err := json.Marshal(changeNotice{Collection: collection, Owner: owner})
	if err != nil {
		return fmt.Errorf("failed to encode change notice: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload)); err != nil {
		return postgresError("notify", err)
	}
	return nil
}

// listenLoop holds a dedicated connection on LISTEN and republishes each
// notification to the hub. A lost connection is re-established with backoff.
func (s *PostgresStore) listenLoop(ctx context.Context) {
	defer s.wg.Done()

	backoff := time.Second
	for {
		err := s.waitForNotifications(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("Postgres listener disconnected",
			"error", err,
			"retry_in", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff = min(backoff*2, 30*time.Second)
		}
	}
}

func (s *PostgresStore) waitForNotifications(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var notice changeNotice
		if err := json.Unmarshal([]byte(n.Payload), &notice); err != nil {
			slog.Warn("Ignoring malformed change notice", "payload", n.Payload, "error", err)
			continue
		}
		s.hub.publish(topic{collection: notice.Collection, owner: notice.Owner})
	}
}

// postgresError classifies a pgx failure: server-reported errors are remote
// errors, everything else means the server could not be reached.
func postgresError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return common.ClassifyRemote("postgres "+op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return common.Remote("postgres "+op, err)
	}
	return common.Unavailable("postgres "+op, err)
}
