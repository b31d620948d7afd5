package ledger

import (
	"context"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// AddWallet creates a wallet for the active user. Type defaults to personal
// and currency to the profile's currency. A user's first wallet becomes
// their default.
func (l *Ledger) AddWallet(ctx context.Context, w model.Wallet) (model.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Wallet{}, err
	}
	defer l.remember(ctx, user.ID)
	prepare(&w.ID, &w.UserID, &w.Timestamps, user.ID, l.now())
	if w.Type == "" {
		w.Type = model.WalletPersonal
	}
	if w.Currency == "" {
		w.Currency = currencyOf(user)
	}
	if err := model.Validate(w); err != nil {
		return model.Wallet{}, err
	}

	before := l.defaults(user.ID)
	if len(before) == 0 {
		w.IsDefault = true
	}
	if err := l.state.Wallets.Insert(w); err != nil {
		return model.Wallet{}, err
	}

	c := newChanges()
	c.wallets[w.ID] = struct{}{}
	c.secrets = w.IsSecret()
	l.demoted(user.ID, before, c)
	return w, l.commit(ctx, user.ID, c)
}

// UpdateWallet applies patch. Turning a wallet secret removes it and its
// transactions from the remote store and their expenses from budgets;
// turning it back publishes and counts them again.
func (l *Ledger) UpdateWallet(ctx context.Context, id string, patch model.WalletPatch) (model.Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Wallet{}, err
	}
	defer l.remember(ctx, user.ID)
	cur, err := preview(l.state.Wallets.Collection, user.ID, id,
		func(w *model.Wallet, now time.Time) { patch.Apply(w, now) },
		validateRecord[model.Wallet])
	if err != nil {
		return model.Wallet{}, err
	}

	before := l.defaults(user.ID)
	updated, err := l.state.Wallets.Update(id, patch)
	if err != nil {
		return model.Wallet{}, err
	}

	c := newChanges()
	c.wallets[id] = struct{}{}
	c.secrets = cur.IsSecret() || updated.IsSecret()
	switch {
	case !cur.IsSecret() && updated.IsSecret():
		c.deletedWallets = append(c.deletedWallets, id)
		for _, t := range l.state.Transactions.ByWallet(id) {
			l.unspendBudgets(t, c)
			c.deletedTxs = append(c.deletedTxs, t.ID)
		}
	case cur.IsSecret() && !updated.IsSecret():
		txs := l.state.Transactions.ByWallet(id)
		for _, t := range txs {
			if err := l.spendBudgets(t, c); err != nil {
				return model.Wallet{}, err
			}
		}
		c.savedTxs = append(c.savedTxs, txs...)
	}
	l.demoted(user.ID, before, c)
	return updated, l.commit(ctx, user.ID, c)
}

// SetDefaultWallet makes id the active user's only default wallet.
func (l *Ledger) SetDefaultWallet(ctx context.Context, id string) (model.Wallet, error) {
	yes := true
	return l.UpdateWallet(ctx, id, model.WalletPatch{IsDefault: &yes})
}

// SelectWallet marks the wallet the user is looking at. An empty id clears it.
func (l *Ledger) SelectWallet(id string) error {
	user, err := l.owner()
	if err != nil {
		return err
	}
	if id != "" {
		if _, err := owned(l.state.Wallets.Collection, user.ID, id); err != nil {
			return err
		}
	}
	return l.state.Wallets.Select(id)
}

// DeleteWallet removes a wallet together with its transactions, undoing
// their budget spending.
func (l *Ledger) DeleteWallet(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return err
	}
	defer l.remember(ctx, user.ID)
	w, err := owned(l.state.Wallets.Collection, user.ID, id)
	if err != nil {
		return err
	}

	c := newChanges()
	for _, t := range l.state.Transactions.ByWallet(id) {
		if _, err := l.state.Transactions.Remove(t.ID); err != nil {
			return err
		}
		l.unspend(t, w.IsSecret(), c)
		if !w.IsSecret() {
			c.deletedTxs = append(c.deletedTxs, t.ID)
		}
	}
	if _, err := l.state.Wallets.Remove(id); err != nil {
		return err
	}

	if w.IsSecret() {
		c.secrets = true
	} else {
		c.deletedWallets = append(c.deletedWallets, id)
	}
	return l.commit(ctx, user.ID, c)
}

func (l *Ledger) defaults(owner string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range l.state.Wallets.Filter(func(w model.Wallet) bool {
		return w.UserID == owner && w.IsDefault
	}) {
		out[w.ID] = true
	}
	return out
}

// demoted records wallets that lost their default flag since before.
func (l *Ledger) demoted(owner string, before map[string]bool, c *changes) {
	now := l.defaults(owner)
	for id := range before {
		if !now[id] {
			c.wallets[id] = struct{}{}
			if w, ok := l.state.Wallets.Get(id); ok && w.IsSecret() {
				c.secrets = true
			}
		}
	}
}
