package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// AddTransaction records a transaction against one of the active user's
// wallets. The wallet balance moves by the signed amount and, for expenses
// in non-secret wallets, every budget covering the category and date
// accumulates the amount. Date defaults to now.
func (l *Ledger) AddTransaction(ctx context.Context, t model.Transaction) (model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Transaction{}, err
	}
	defer l.remember(ctx, user.ID)
	now := l.now()
	prepare(&t.ID, &t.UserID, &t.Timestamps, user.ID, now)
	if t.Date.IsZero() {
		t.Date = now
	}
	if err := model.ValidateTransaction(t); err != nil {
		return model.Transaction{}, err
	}
	w, err := l.wallet(user.ID, t.WalletID)
	if err != nil {
		return model.Transaction{}, err
	}

	if err := l.state.Transactions.Insert(t); err != nil {
		return model.Transaction{}, err
	}

	c := newChanges()
	if err := l.spend(t, w.IsSecret(), c); err != nil {
		return model.Transaction{}, err
	}
	if w.IsSecret() {
		c.secrets = true
	} else {
		c.savedTxs = append(c.savedTxs, t)
	}
	return t, l.commit(ctx, user.ID, c)
}

// UpdateTransaction applies patch, moving the old effects on wallets and
// budgets over to the updated transaction.
func (l *Ledger) UpdateTransaction(ctx context.Context, id string, patch model.TransactionPatch) (model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return model.Transaction{}, err
	}
	defer l.remember(ctx, user.ID)

	var next model.Transaction
	old, err := preview(l.state.Transactions.Collection, user.ID, id,
		func(t *model.Transaction, now time.Time) {
			patch.Apply(t, now)
			next = *t
		},
		model.ValidateTransaction)
	if err != nil {
		return model.Transaction{}, err
	}
	oldWallet, oldKnown := l.state.Wallets.Get(old.WalletID)
	newWallet, err := l.wallet(user.ID, next.WalletID)
	if err != nil {
		return model.Transaction{}, err
	}

	c := newChanges()
	l.unspend(old, oldKnown && oldWallet.IsSecret(), c)
	updated, err := l.state.Transactions.Update(id, patch)
	if err != nil {
		return model.Transaction{}, err
	}
	if err := l.spend(updated, newWallet.IsSecret(), c); err != nil {
		return model.Transaction{}, err
	}

	wasSecret := oldKnown && oldWallet.IsSecret()
	c.secrets = wasSecret || newWallet.IsSecret()
	switch {
	case !newWallet.IsSecret():
		c.savedTxs = append(c.savedTxs, updated)
	case !wasSecret:
		c.deletedTxs = append(c.deletedTxs, id)
	}
	return updated, l.commit(ctx, user.ID, c)
}

// DeleteTransaction removes a transaction and reverses its effects.
func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, err := l.owner()
	if err != nil {
		return err
	}
	defer l.remember(ctx, user.ID)
	t, err := owned(l.state.Transactions.Collection, user.ID, id)
	if err != nil {
		return err
	}
	if _, err := l.state.Transactions.Remove(id); err != nil {
		return err
	}

	w, known := l.state.Wallets.Get(t.WalletID)
	secret := known && w.IsSecret()
	c := newChanges()
	l.unspend(t, secret, c)
	if secret {
		c.secrets = true
	} else {
		c.deletedTxs = append(c.deletedTxs, id)
	}
	return l.commit(ctx, user.ID, c)
}

func (l *Ledger) wallet(owner, id string) (model.Wallet, error) {
	w, err := owned(l.state.Wallets.Collection, owner, id)
	if err != nil {
		return model.Wallet{}, fmt.Errorf("wallet: %w", err)
	}
	return w, nil
}

// spend applies t to its wallet balance and covering budgets.
func (l *Ledger) spend(t model.Transaction, secret bool, c *changes) error {
	if _, err := l.state.Wallets.AdjustBalance(t.WalletID, t.SignedAmount()); err != nil {
		return err
	}
	c.wallets[t.WalletID] = struct{}{}

	if secret {
		return nil
	}
	return l.spendBudgets(t, c)
}

// spendBudgets adds an expense to the budgets covering it.
func (l *Ledger) spendBudgets(t model.Transaction, c *changes) error {
	if t.Type != model.TransactionExpense {
		return nil
	}
	for _, b := range l.state.Budgets.Covering(t.UserID, t.Category, t.Date) {
		if _, err := l.state.Budgets.AddSpent(b.ID, t.Amount); err != nil {
			return err
		}
		c.budgets[b.ID] = struct{}{}
	}
	return nil
}

// unspend reverses spend. A wallet that no longer exists is skipped.
func (l *Ledger) unspend(t model.Transaction, secret bool, c *changes) {
	if _, err := l.state.Wallets.AdjustBalance(t.WalletID, t.SignedAmount().Neg()); err == nil {
		c.wallets[t.WalletID] = struct{}{}
	}

	if !secret {
		l.unspendBudgets(t, c)
	}
}

func (l *Ledger) unspendBudgets(t model.Transaction, c *changes) {
	if t.Type != model.TransactionExpense {
		return
	}
	for _, b := range l.state.Budgets.Covering(t.UserID, t.Category, t.Date) {
		if _, err := l.state.Budgets.AddSpent(b.ID, t.Amount.Neg()); err == nil {
			c.budgets[b.ID] = struct{}{}
		}
	}
}
