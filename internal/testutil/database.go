// Package testutil wires an in-memory SpendWise stack for tests: an embedded
// document store, the local key-value store, the sync service, a session
// and the ledger on top.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/docstore"
	"github.com/HarshGadhecha/SpendWise/internal/ledger"
	"github.com/HarshGadhecha/SpendWise/internal/localstore"
	"github.com/HarshGadhecha/SpendWise/internal/service"
	"github.com/HarshGadhecha/SpendWise/internal/session"
	"github.com/HarshGadhecha/SpendWise/internal/storage"
	"github.com/HarshGadhecha/SpendWise/internal/store"
	"github.com/HarshGadhecha/SpendWise/internal/syncer"
)

// Passphrase unlocks the secret namespace of every Env.
const Passphrase = "test-passphrase"

// Env is a fully wired stack backed by in-memory SQLite.
type Env struct {
	Remote  *docstore.SQLiteStore
	KV      *localstore.Store
	Sync    *syncer.Service
	State   *store.State
	Session *session.Session
	Ledger  *ledger.Ledger
	t       *testing.T
}

// EnvOptions configures NewEnvWithOptions.
type EnvOptions struct {
	// Clock fixes the time seen by the stores and the sync service.
	Clock func() time.Time
	// Remote wraps the document store, for example to inject failures.
	Remote func(service.DocumentStore) service.DocumentStore
}

// NewEnv creates a signed-out Env with the system clock.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	return NewEnvWithOptions(t, EnvOptions{})
}

// NewEnvWithOptions creates a signed-out Env.
func NewEnvWithOptions(t *testing.T, opts EnvOptions) *Env {
	t.Helper()
	ctx := context.Background()

	backend, err := docstore.NewSQLiteStore(ctx, storage.MemoryPath)
	if err != nil {
		t.Fatalf("failed to create document store: %v", err)
	}
	kv, err := localstore.Open(ctx, storage.MemoryPath, Passphrase)
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}
	t.Cleanup(func() {
		_ = backend.Close()
		_ = kv.Close()
	})

	var remote service.DocumentStore = backend
	if opts.Remote != nil {
		remote = opts.Remote(backend)
	}

	svc := syncer.New(remote, kv, syncer.Config{
		Now:   opts.Clock,
		Retry: common.RetryOptions{MaxAttempts: 1},
	})
	state := store.NewState(opts.Clock)
	sess := session.New(svc.Users, kv, state)

	return &Env{
		Remote:  backend,
		KV:      kv,
		Sync:    svc,
		State:   state,
		Session: sess,
		Ledger:  ledger.New(state, svc, kv, sess),
		t:       t,
	}
}

// SignIn signs userID in and waits for the profile to be saved.
func (e *Env) SignIn(userID string) *Env {
	e.t.Helper()
	if _, err := e.Session.SignIn(context.Background(), service.Identity{
		UserID: userID,
		Email:  userID + "@example.com",
	}); err != nil {
		e.t.Fatalf("failed to sign in %s: %v", userID, err)
	}
	e.Session.Wait()
	return e
}
