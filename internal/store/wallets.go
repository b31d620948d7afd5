package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// WalletStore holds wallets and keeps at most one default wallet per owner.
type WalletStore struct {
	*Collection[model.Wallet]
	selected string
	selMu    sync.RWMutex
}

// NewWalletStore creates an empty wallet store.
func NewWalletStore(clock Clock) *WalletStore {
	return &WalletStore{Collection: NewCollection[model.Wallet](clock)}
}

// ReplaceAll installs wallets, keeping only the first default per owner.
func (s *WalletStore) ReplaceAll(wallets []model.Wallet) {
	next := make([]model.Wallet, len(wallets))
	copy(next, wallets)

	hasDefault := make(map[string]bool)
	for i := range next {
		if !next[i].IsDefault {
			continue
		}
		if hasDefault[next[i].UserID] {
			next[i].IsDefault = false
			continue
		}
		hasDefault[next[i].UserID] = true
	}
	s.Collection.ReplaceAll(next)
}

// Insert adds a wallet. A new default wallet demotes the owner's previous one.
func (s *WalletStore) Insert(w model.Wallet) error {
	if w.ID == "" {
		return fmt.Errorf("%w: id", common.ErrMissingField)
	}
	return s.Batch(func(records []model.Wallet, now time.Time) ([]model.Wallet, error) {
		if indexOf(records, w.ID) >= 0 {
			return nil, fmt.Errorf("%w: %s", common.ErrDuplicateID, w.ID)
		}
		if w.IsDefault {
			clearDefaults(records, w.UserID, w.ID, now)
		}
		return append(records, w), nil
	})
}

// Update applies patch to the wallet with the given id.
func (s *WalletStore) Update(id string, patch model.WalletPatch) (model.Wallet, error) {
	var updated model.Wallet
	err := s.Batch(func(records []model.Wallet, now time.Time) ([]model.Wallet, error) {
		i := indexOf(records, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", common.ErrNotFound, id)
		}
		patch.Apply(&records[i], now)
		if records[i].IsDefault {
			clearDefaults(records, records[i].UserID, id, now)
		}
		updated = records[i]
		return records, nil
	})
	return updated, err
}

// SetDefault makes the wallet the owner's only default.
func (s *WalletStore) SetDefault(id string) (model.Wallet, error) {
	yes := true
	return s.Update(id, model.WalletPatch{IsDefault: &yes})
}

// AdjustBalance adds delta (which may be negative) to the wallet balance.
func (s *WalletStore) AdjustBalance(id string, delta decimal.Decimal) (model.Wallet, error) {
	return s.Collection.Update(id, func(w *model.Wallet, now time.Time) {
		w.Balance = w.Balance.Add(delta)
		w.Touch(now)
	})
}

// Remove deletes the wallet and clears the selection if it pointed at it.
func (s *WalletStore) Remove(id string) (model.Wallet, error) {
	removed, err := s.Collection.Remove(id)
	if err != nil {
		return removed, err
	}
	s.selMu.Lock()
	if s.selected == id {
		s.selected = ""
	}
	s.selMu.Unlock()
	return removed, nil
}

// Default returns the default wallet of owner.
func (s *WalletStore) Default(owner string) (model.Wallet, bool) {
	found := s.Filter(func(w model.Wallet) bool { return w.UserID == owner && w.IsDefault })
	if len(found) == 0 {
		return model.Wallet{}, false
	}
	return found[0], true
}

// Select marks a wallet as the one the user is currently viewing.
// An empty id clears the selection.
func (s *WalletStore) Select(id string) error {
	if id != "" {
		if _, ok := s.Get(id); !ok {
			return fmt.Errorf("%w: %s", common.ErrNotFound, id)
		}
	}
	s.selMu.Lock()
	s.selected = id
	s.selMu.Unlock()
	return nil
}

// Selected returns the currently selected wallet, if it still exists.
func (s *WalletStore) Selected() (model.Wallet, bool) {
	s.selMu.RLock()
	id := s.selected
	s.selMu.RUnlock()
	if id == "" {
		return model.Wallet{}, false
	}
	return s.Get(id)
}

// ByType returns the wallets of the given type.
func (s *WalletStore) ByType(t model.WalletType) []model.Wallet {
	return s.Filter(func(w model.Wallet) bool { return w.Type == t })
}

// TotalBalance sums every wallet balance. Currencies are not converted.
func (s *WalletStore) TotalBalance() decimal.Decimal {
	var total decimal.Decimal
	s.View(func(ws []model.Wallet) {
		total = sumOf(ws, nil, func(w model.Wallet) decimal.Decimal { return w.Balance })
	})
	return total
}

// TotalBalanceByCurrency sums balances per currency code.
func (s *WalletStore) TotalBalanceByCurrency() map[string]decimal.Decimal {
	var out map[string]decimal.Decimal
	s.View(func(ws []model.Wallet) {
		out = sumBy(ws,
			func(w model.Wallet) string { return w.Currency },
			func(w model.Wallet) decimal.Decimal { return w.Balance })
	})
	return out
}

func clearDefaults(records []model.Wallet, owner, keep string, now time.Time) {
	for i := range records {
		if records[i].UserID == owner && records[i].ID != keep && records[i].IsDefault {
			records[i].IsDefault = false
			records[i].Touch(now)
		}
	}
}
