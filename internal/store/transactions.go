package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// TransactionStore holds transactions, newest first.
type TransactionStore struct {
	*Collection[model.Transaction]
}

// NewTransactionStore creates an empty transaction store.
func NewTransactionStore(clock Clock) *TransactionStore {
	return &TransactionStore{Collection: NewCollection[model.Transaction](clock)}
}

// Insert adds a transaction at the front of the list.
func (s *TransactionStore) Insert(t model.Transaction) error {
	return s.Prepend(t)
}

// Update applies patch to the transaction with the given id.
func (s *TransactionStore) Update(id string, patch model.TransactionPatch) (model.Transaction, error) {
	return s.Collection.Update(id, func(t *model.Transaction, now time.Time) {
		patch.Apply(t, now)
	})
}

// ByWallet returns the transactions recorded against a wallet.
func (s *TransactionStore) ByWallet(walletID string) []model.Transaction {
	return s.Filter(func(t model.Transaction) bool { return t.WalletID == walletID })
}

// ByType returns the income or expense transactions.
func (s *TransactionStore) ByType(kind model.TransactionType) []model.Transaction {
	return s.Filter(func(t model.Transaction) bool { return t.Type == kind })
}

// ByCategory returns the transactions in a category.
func (s *TransactionStore) ByCategory(c model.Category) []model.Transaction {
	return s.Filter(func(t model.Transaction) bool { return t.Category == c })
}

// InRange returns transactions dated within [start, end].
func (s *TransactionStore) InRange(start, end time.Time) []model.Transaction {
	return s.Filter(func(t model.Transaction) bool {
		return !t.Date.Before(start) && !t.Date.After(end)
	})
}

// TotalIncome sums income amounts.
func (s *TransactionStore) TotalIncome() decimal.Decimal {
	return s.totalOf(model.TransactionIncome)
}

// TotalExpense sums expense amounts.
func (s *TransactionStore) TotalExpense() decimal.Decimal {
	return s.totalOf(model.TransactionExpense)
}

// Balance is total income minus total expense.
func (s *TransactionStore) Balance() decimal.Decimal {
	var total decimal.Decimal
	s.View(func(ts []model.Transaction) {
		total = sumOf(ts, nil, model.Transaction.SignedAmount)
	})
	return total
}

// SpendingByCategory sums expense amounts per category.
func (s *TransactionStore) SpendingByCategory() map[model.Category]decimal.Decimal {
	expenses := s.ByType(model.TransactionExpense)
	return sumBy(expenses,
		func(t model.Transaction) model.Category { return t.Category },
		func(t model.Transaction) decimal.Decimal { return t.Amount })
}

func (s *TransactionStore) totalOf(kind model.TransactionType) decimal.Decimal {
	var total decimal.Decimal
	s.View(func(ts []model.Transaction) {
		total = sumOf(ts,
			func(t model.Transaction) bool { return t.Type == kind },
			func(t model.Transaction) decimal.Decimal { return t.Amount })
	})
	return total
}
