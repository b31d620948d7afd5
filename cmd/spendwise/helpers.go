package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/config"
	"github.com/HarshGadhecha/SpendWise/internal/docstore"
	"github.com/HarshGadhecha/SpendWise/internal/ledger"
	"github.com/HarshGadhecha/SpendWise/internal/localstore"
	"github.com/HarshGadhecha/SpendWise/internal/model"
	"github.com/HarshGadhecha/SpendWise/internal/security"
	"github.com/HarshGadhecha/SpendWise/internal/service"
	"github.com/HarshGadhecha/SpendWise/internal/session"
	"github.com/HarshGadhecha/SpendWise/internal/store"
	"github.com/HarshGadhecha/SpendWise/internal/syncer"
)

const dateLayout = "2006-01-02"

var errNotSignedIn = common.NewUserError("Not signed in. Run 'spendwise login <user-id>' first.", common.ErrNoSession)

// app is the wired stack a command works with.
type app struct {
	cfg      config.Config
	remote   service.DocumentStore
	kv       *localstore.Store
	sync     *syncer.Service
	state    *store.State
	session  *session.Session
	ledger   *ledger.Ledger
	security *security.Service
}

// openApp opens the local store and the configured remote backend.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	if err := config.EnsureDir(cfg.Database); err != nil {
		return nil, err
	}
	kv, err := localstore.Open(ctx, cfg.Database, cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	remote, err := openRemote(ctx, cfg)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	svc := syncer.New(remote, kv, syncer.Config{Retry: cfg.Retry(), Timeout: cfg.Sync.Timeout})
	state := store.NewState(nil)
	sess := session.New(svc.Users, kv, state)
	return &app{
		cfg:      cfg,
		remote:   remote,
		kv:       kv,
		sync:     svc,
		state:    state,
		session:  sess,
		ledger:   ledger.New(state, svc, kv, sess),
		security: security.New(kv),
	}, nil
}

func openRemote(ctx context.Context, cfg config.Config) (service.DocumentStore, error) {
	if cfg.Remote.Driver == docstore.DriverSQLite {
		if err := config.EnsureDir(cfg.Remote.Path); err != nil {
			return nil, err
		}
	}
	remote, err := docstore.Open(ctx, docstore.Config{
		Driver:  cfg.Remote.Driver,
		Path:    cfg.Remote.Path,
		DSN:     cfg.Remote.DSN,
		URL:     cfg.Remote.URL,
		Token:   cfg.Remote.Token,
		CAFile:  cfg.Remote.CAFile,
		Timeout: cfg.Sync.Timeout,
		Retry:   cfg.Retry(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s document store: %w", cfg.Remote.Driver, err)
	}
	return remote, nil
}

// Close waits for background saves and releases both stores.
func (a *app) Close() {
	a.session.Wait()
	if err := a.remote.Close(); err != nil {
		slog.Error("failed to close document store", "error", err)
	}
	if err := a.kv.Close(); err != nil {
		slog.Error("failed to close local store", "error", err)
	}
}

// withApp opens the stack, runs fn and closes the stack.
func withApp(ctx context.Context, fn func(*app) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// withSession is withApp for commands that act on the signed-in user's data.
// Queued writes are flushed and the stores loaded before fn runs.
func withSession(ctx context.Context, fn func(*app) error) error {
	return withApp(ctx, func(a *app) error {
		if err := a.resume(ctx); err != nil {
			return err
		}
		return fn(a)
	})
}

// resume signs the cached user back in and loads their data. An unreachable
// remote is logged and leaves the stores with whatever could be loaded.
func (a *app) resume(ctx context.Context) error {
	if err := a.signInCached(ctx); err != nil {
		return err
	}
	return a.refresh(ctx, nil)
}

// signInCached restores the session of the last signed-in user.
func (a *app) signInCached(ctx context.Context) error {
	var cached model.User
	ok, err := a.kv.Get(ctx, localstore.KeyUser, &cached)
	if err != nil {
		return fmt.Errorf("failed to read cached profile: %w", err)
	}
	if !ok || cached.ID == "" {
		return errNotSignedIn
	}

	_, err = a.session.SignIn(ctx, service.Identity{
		UserID:      cached.ID,
		Email:       cached.Email,
		DisplayName: cached.DisplayName,
		PhotoURL:    cached.PhotoURL,
	})
	return err
}

// refresh flushes the offline queue and reloads the stores.
func (a *app) refresh(ctx context.Context, loaded func(collection string, n int)) error {
	if n, err := a.sync.Flush(ctx); err != nil {
		if !isOffline(err) {
			return err
		}
		slog.Warn("Remote unavailable, keeping queued writes", "error", err)
	} else if n > 0 {
		slog.Info("Flushed queued writes", "count", n)
	}

	if err := a.ledger.Load(ctx, loaded); err != nil {
		if !isOffline(err) {
			return err
		}
		slog.Warn("Remote unavailable, working offline", "error", err)
	}
	return nil
}

func isOffline(err error) bool {
	return errors.Is(err, common.ErrUnavailable) || errors.Is(err, common.ErrTimeout)
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q", common.ErrValidation, s)
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q, want YYYY-MM-DD", common.ErrValidation, s)
	}
	return t, nil
}

// optionalDate parses s unless it is empty.
func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// resolveWallet finds a wallet by id or, case-insensitively, by name. An
// empty ref selects the default wallet.
func resolveWallet(st *store.State, owner, ref string) (model.Wallet, error) {
	if ref == "" {
		if w, ok := st.Wallets.Default(owner); ok {
			return w, nil
		}
		return model.Wallet{}, common.NewUserError("No default wallet. Pass --wallet or run 'spendwise wallets default <wallet>'.", common.ErrNotFound)
	}
	if w, ok := st.Wallets.Get(ref); ok && w.UserID == owner {
		return w, nil
	}
	matches := st.Wallets.Filter(func(w model.Wallet) bool {
		return w.UserID == owner && strings.EqualFold(w.Name, ref)
	})
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return model.Wallet{}, fmt.Errorf("%w: wallet %q", common.ErrNotFound, ref)
	default:
		return model.Wallet{}, fmt.Errorf("%w: %d wallets are named %q, use the id", common.ErrValidation, len(matches), ref)
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatDate(*t)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
