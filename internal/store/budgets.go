package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// BudgetStore holds budgets.
type BudgetStore struct {
	*Collection[model.Budget]
}

// NewBudgetStore creates an empty budget store.
func NewBudgetStore(clock Clock) *BudgetStore {
	return &BudgetStore{Collection: NewCollection[model.Budget](clock)}
}

// Insert adds a budget, deriving EndDate from the period when it is unset.
func (s *BudgetStore) Insert(b model.Budget) error {
	if b.EndDate.IsZero() {
		b.EndDate = b.Period.End(b.StartDate)
	}
	return s.Collection.Insert(b)
}

// Update applies patch to the budget with the given id.
func (s *BudgetStore) Update(id string, patch model.BudgetPatch) (model.Budget, error) {
	return s.Collection.Update(id, func(b *model.Budget, now time.Time) {
		patch.Apply(b, now)
	})
}

// AddSpent records amount against the budget. Spent never drops below zero:
// a negative amount (a refunded or deleted expense) is clamped at zero.
func (s *BudgetStore) AddSpent(id string, amount decimal.Decimal) (model.Budget, error) {
	if amount.IsZero() {
		return model.Budget{}, fmt.Errorf("%w: spent delta is zero", common.ErrInvalidAmount)
	}
	return s.Collection.Update(id, func(b *model.Budget, now time.Time) {
		b.Spent = decimal.Max(b.Spent.Add(amount), decimal.Zero)
		b.Touch(now)
	})
}

// ByCategory returns the budgets for a category.
func (s *BudgetStore) ByCategory(c model.Category) []model.Budget {
	return s.Filter(func(b model.Budget) bool { return b.Category == c })
}

// Covering returns the owner's budgets that track category c on date d.
func (s *BudgetStore) Covering(owner string, c model.Category, d time.Time) []model.Budget {
	return s.Filter(func(b model.Budget) bool { return b.UserID == owner && b.Covers(c, d) })
}

// Alerts returns the budgets whose spending reached their alert threshold.
func (s *BudgetStore) Alerts() []model.Budget {
	return s.Filter(model.Budget.IsAlert)
}

// TotalBudget sums budget limits.
func (s *BudgetStore) TotalBudget() decimal.Decimal {
	var total decimal.Decimal
	s.View(func(bs []model.Budget) {
		total = sumOf(bs, nil, func(b model.Budget) decimal.Decimal { return b.Amount })
	})
	return total
}

// TotalSpent sums spending across budgets.
func (s *BudgetStore) TotalSpent() decimal.Decimal {
	var total decimal.Decimal
	s.View(func(bs []model.Budget) {
		total = sumOf(bs, nil, func(b model.Budget) decimal.Decimal { return b.Spent })
	})
	return total
}
