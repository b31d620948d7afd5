// Package ledger is the entry point for changing financial data. It
// validates input, applies the change to the entity stores together with its
// side effects (wallet balances, budget spending), and writes the result
// through to the remote store, queueing it when the remote is unreachable.
//
// Secret wallets and their transactions never reach the remote store; they
// are kept in the encrypted local namespace instead.
package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/localstore"
	"github.com/HarshGadhecha/SpendWise/internal/model"
	"github.com/HarshGadhecha/SpendWise/internal/service"
	"github.com/HarshGadhecha/SpendWise/internal/session"
	"github.com/HarshGadhecha/SpendWise/internal/store"
	"github.com/HarshGadhecha/SpendWise/internal/syncer"
)

// DefaultCurrency is used when neither the record nor the profile names one.
const DefaultCurrency = "USD"

// Ledger coordinates the stores, the sync service and the session.
type Ledger struct {
	state   *store.State
	sync    *syncer.Service
	kv      service.KeyValueStore
	session *session.Session
	// mu makes each ledger operation atomic across stores.
	mu sync.Mutex
}

// New creates a Ledger.
func New(state *store.State, svc *syncer.Service, kv service.KeyValueStore, sess *session.Session) *Ledger {
	return &Ledger{state: state, sync: svc, kv: kv, session: sess}
}

// State exposes the stores for queries.
func (l *Ledger) State() *store.State {
	return l.state
}

func (l *Ledger) owner() (model.User, error) {
	return l.session.Require()
}

func (l *Ledger) now() time.Time {
	return l.state.Wallets.Now()
}

func currencyOf(user model.User) string {
	if user.Currency != "" {
		return user.Currency
	}
	return DefaultCurrency
}

// prepare assigns an id when missing, binds the record to owner and stamps
// its timestamps.
func prepare(id, userID *string, ts *model.Timestamps, owner string, now time.Time) {
	if *id == "" {
		*id = model.NewID()
	}
	*userID = owner
	ts.Touch(now)
}

func validateRecord[T any](rec T) error {
	return model.Validate(rec)
}

// preview applies a change to a copy of owner's record id and validates the
// result without touching the store. Records of other owners are reported
// as missing.
func preview[T model.Record](c *store.Collection[T], owner, id string, apply func(*T, time.Time), validate func(T) error) (T, error) {
	cur, ok := c.Get(id)
	if !ok || cur.OwnerID() != owner {
		var zero T
		return zero, fmt.Errorf("%w: %s", common.ErrNotFound, id)
	}
	candidate := cur
	apply(&candidate, c.Now())
	if err := validate(candidate); err != nil {
		var zero T
		return zero, err
	}
	return cur, nil
}

func owned[T model.Record](c *store.Collection[T], owner, id string) (T, error) {
	rec, ok := c.Get(id)
	if !ok || rec.OwnerID() != owner {
		var zero T
		return zero, fmt.Errorf("%w: %s", common.ErrNotFound, id)
	}
	return rec, nil
}

// save writes records through, queueing them when the remote is
// unavailable. Other remote errors are returned; the local change stays.
func save[T model.Record](ctx context.Context, repo *syncer.Repo[T], records ...T) error {
	var errs []error
	for _, rec := range records {
		if _, err := repo.SaveOrQueue(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func drop[T model.Record](ctx context.Context, repo *syncer.Repo[T], ids ...string) error {
	var errs []error
	for _, id := range ids {
		if _, err := repo.DeleteOrQueue(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// removeOwned deletes owner's record id locally and remotely.
func removeOwned[T model.Record](ctx context.Context, c *store.Collection[T], repo *syncer.Repo[T], owner, id string) error {
	if _, err := owned(c, owner, id); err != nil {
		return err
	}
	if _, err := c.Remove(id); err != nil {
		return err
	}
	return drop(ctx, repo, id)
}

// Load replaces the stores with the active user's remote data and the secret
// wallets kept on this device. loaded is passed to syncer.Service.PullAll.
//
// When the remote cannot be reached the stores are filled from the copy kept
// by the last successful load or change, and the remote error is still
// returned.
func (l *Ledger) Load(ctx context.Context, loaded func(collection string, n int)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return err
	}
	err = l.sync.PullAll(ctx, user.ID, l.state, loaded)
	switch {
	case err == nil:
		l.remember(ctx, user.ID)
		return l.loadSecrets(ctx, user.ID)
	case errors.Is(err, common.ErrUnavailable) || errors.Is(err, common.ErrTimeout):
		slog.Info("Remote unreachable, restoring local copy", "error", err)
		if rerr := l.sync.RestoreAll(ctx, user.ID, l.state, loaded); rerr != nil {
			return errors.Join(err, rerr)
		}
		if serr := l.loadSecrets(ctx, user.ID); serr != nil {
			return errors.Join(err, serr)
		}
		return err
	default:
		return err
	}
}

// remember stores the owner's synced records for the next offline Load.
// Secret wallets and their transactions are left out. Failures are logged.
func (l *Ledger) remember(ctx context.Context, owner string) {
	secret := l.secretWalletIDs(owner)
	err := errors.Join(
		l.sync.Wallets.Cache(ctx, owner, l.state.Wallets.Filter(func(w model.Wallet) bool { return !secret[w.ID] })),
		l.sync.Transactions.Cache(ctx, owner, l.state.Transactions.Filter(func(t model.Transaction) bool { return !secret[t.WalletID] })),
		l.sync.Budgets.Cache(ctx, owner, l.state.Budgets.All()),
		l.sync.Goals.Cache(ctx, owner, l.state.Goals.All()),
		l.sync.Bills.Cache(ctx, owner, l.state.Bills.All()),
		l.sync.Investments.Cache(ctx, owner, l.state.Investments.All()),
		l.sync.Insurance.Cache(ctx, owner, l.state.Insurance.All()),
	)
	if err != nil {
		common.LogError(err, "Failed to keep local copy", common.Fields{"user": owner})
	}
}

func (l *Ledger) loadSecrets(ctx context.Context, owner string) error {
	var wallets []model.Wallet
	if _, err := l.kv.GetSecret(ctx, localstore.SecretWalletData, &wallets); err != nil {
		if errors.Is(err, common.ErrMissingConfig) {
			slog.Debug("Secret namespace locked, skipping secret wallets")
			return nil
		}
		return fmt.Errorf("failed to load secret wallets: %w", err)
	}
	var txs []model.Transaction
	if _, err := l.kv.GetSecret(ctx, localstore.SecretTransactions, &txs); err != nil {
		return fmt.Errorf("failed to load secret transactions: %w", err)
	}

	for _, w := range wallets {
		if w.UserID != owner {
			continue
		}
		if err := l.state.Wallets.Insert(w); err != nil && !errors.Is(err, common.ErrDuplicateID) {
			return err
		}
	}
	l.state.Transactions.ReplaceAll(newestFirst(l.state.Transactions.All(), ownedBy(txs, owner)))

	slog.Debug("Loaded secret data", "wallets", len(wallets), "transactions", len(txs))
	return nil
}

func ownedBy[T model.Record](records []T, owner string) []T {
	var out []T
	for _, r := range records {
		if r.OwnerID() == owner {
			out = append(out, r)
		}
	}
	return out
}

// newestFirst merges transaction lists ordered by date, newest first.
func newestFirst(lists ...[]model.Transaction) []model.Transaction {
	var all []model.Transaction
	for _, list := range lists {
		all = append(all, list...)
	}
	slices.SortStableFunc(all, func(a, b model.Transaction) int {
		return cmp.Compare(b.Date.UnixNano(), a.Date.UnixNano())
	})
	return all
}

func (l *Ledger) secretWalletIDs(owner string) map[string]bool {
	ids := make(map[string]bool)
	for _, w := range l.state.Wallets.Filter(func(w model.Wallet) bool {
		return w.UserID == owner && w.IsSecret()
	}) {
		ids[w.ID] = true
	}
	return ids
}

func (l *Ledger) secretData(owner string) ([]model.Wallet, []model.Transaction) {
	ids := l.secretWalletIDs(owner)
	wallets := l.state.Wallets.Filter(func(w model.Wallet) bool { return ids[w.ID] })
	txs := l.state.Transactions.Filter(func(t model.Transaction) bool { return ids[t.WalletID] })
	return wallets, txs
}

// persistSecrets rewrites the owner's secret wallets and their transactions.
func (l *Ledger) persistSecrets(ctx context.Context, owner string) error {
	wallets, txs := l.secretData(owner)
	if err := l.kv.SetSecret(ctx, localstore.SecretWalletData, wallets); err != nil {
		return fmt.Errorf("failed to save secret wallets: %w", err)
	}
	if err := l.kv.SetSecret(ctx, localstore.SecretTransactions, txs); err != nil {
		return fmt.Errorf("failed to save secret transactions: %w", err)
	}
	return nil
}

// changes collects what an operation touched so it can be written through
// in one pass.
type changes struct {
	wallets        map[string]struct{}
	budgets        map[string]struct{}
	savedTxs       []model.Transaction
	deletedTxs     []string
	deletedWallets []string
	secrets        bool
}

func newChanges() *changes {
	return &changes{wallets: map[string]struct{}{}, budgets: map[string]struct{}{}}
}

// commit writes the collected changes. Secret wallets are skipped remotely.
func (l *Ledger) commit(ctx context.Context, owner string, c *changes) error {
	var errs []error
	if c.secrets {
		if err := l.persistSecrets(ctx, owner); err != nil {
			errs = append(errs, err)
		}
	}

	var wallets []model.Wallet
	for id := range c.wallets {
		if w, ok := l.state.Wallets.Get(id); ok && !w.IsSecret() {
			wallets = append(wallets, w)
		}
	}
	var budgets []model.Budget
	for id := range c.budgets {
		if b, ok := l.state.Budgets.Get(id); ok {
			budgets = append(budgets, b)
		}
	}

	errs = append(errs,
		save(ctx, l.sync.Transactions, c.savedTxs...),
		drop(ctx, l.sync.Transactions, c.deletedTxs...),
		save(ctx, l.sync.Wallets, wallets...),
		drop(ctx, l.sync.Wallets, c.deletedWallets...),
		save(ctx, l.sync.Budgets, budgets...),
	)
	return errors.Join(errs...)
}

// Watch binds every store to the active user's live remote data. Secret
// wallets and their transactions are kept across snapshots. changed, when
// not nil, is called with the collection name after each snapshot is
// applied.
func (l *Ledger) Watch(ctx context.Context, changed func(collection string)) (*Watch, error) {
	user, err := l.owner()
	if err != nil {
		return nil, err
	}
	owner := user.ID
	if changed == nil {
		changed = func(string) {}
	}
	w := &Watch{}

	binds := []func() (*syncer.Subscription, error){
		func() (*syncer.Subscription, error) {
			return follow(ctx, l, l.sync.Wallets, owner, changed, func(remote []model.Wallet) {
				secret, _ := l.secretData(owner)
				l.state.Wallets.ReplaceAll(append(remote, secret...))
			})
		},
		func() (*syncer.Subscription, error) {
			return follow(ctx, l, l.sync.Transactions, owner, changed, func(remote []model.Transaction) {
				_, secret := l.secretData(owner)
				l.state.Transactions.ReplaceAll(newestFirst(remote, secret))
			})
		},
		func() (*syncer.Subscription, error) {
			return follow(ctx, l, l.sync.Budgets, owner, changed, l.state.Budgets.ReplaceAll)
		},
		func() (*syncer.Subscription, error) {
			return follow(ctx, l, l.sync.Goals, owner, changed, l.state.Goals.ReplaceAll)
		},
		func() (*syncer.Subscription, error) {
			return follow(ctx, l, l.sync.Bills, owner, changed, l.state.Bills.ReplaceAll)
		},
		func() (*syncer.Subscription, error) {
			return follow(ctx, l, l.sync.Investments, owner, changed, l.state.Investments.ReplaceAll)
		},
		func() (*syncer.Subscription, error) {
			return follow(ctx, l, l.sync.Insurance, owner, changed, l.state.Insurance.ReplaceAll)
		},
	}

	for _, bind := range binds {
		sub, err := bind()
		if err != nil {
			w.Close()
			return nil, err
		}
		w.subs = append(w.subs, sub)
	}
	return w, nil
}

// follow subscribes to repo and applies each snapshot under the ledger lock,
// then refreshes the local copy and reports the change.
func follow[T model.Record](ctx context.Context, l *Ledger, repo *syncer.Repo[T], owner string,
	changed func(string), apply func([]T),
) (*syncer.Subscription, error) {
	collection := repo.Collection()
	return repo.Subscribe(ctx, owner, func(remote []T) {
		l.mu.Lock()
		apply(remote)
		l.remember(ctx, owner)
		l.mu.Unlock()
		changed(collection)
	})
}

// Watch holds the live subscriptions started by Ledger.Watch.
type Watch struct {
	subs []*syncer.Subscription
}

// Close stops every subscription.
func (w *Watch) Close() {
	for _, sub := range w.subs {
		sub.Close()
	}
}
