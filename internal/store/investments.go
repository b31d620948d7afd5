package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// InvestmentStore holds investments.
type InvestmentStore struct {
	*Collection[model.Investment]
}

// NewInvestmentStore creates an empty investment store.
func NewInvestmentStore(clock Clock) *InvestmentStore {
	return &InvestmentStore{Collection: NewCollection[model.Investment](clock)}
}

// Update applies patch to the investment with the given id.
func (s *InvestmentStore) Update(id string, patch model.InvestmentPatch) (model.Investment, error) {
	return s.Collection.Update(id, func(i *model.Investment, now time.Time) {
		patch.Apply(i, now)
	})
}

// ByType returns the investments of one type.
func (s *InvestmentStore) ByType(t model.InvestmentType) []model.Investment {
	return s.Filter(func(i model.Investment) bool { return i.Type == t })
}

// TotalInvested sums purchase values.
func (s *InvestmentStore) TotalInvested() decimal.Decimal {
	var total decimal.Decimal
	s.View(func(is []model.Investment) {
		total = sumOf(is, nil, func(i model.Investment) decimal.Decimal { return i.PurchaseValue })
	})
	return total
}

// TotalCurrentValue sums current values.
func (s *InvestmentStore) TotalCurrentValue() decimal.Decimal {
	var total decimal.Decimal
	s.View(func(is []model.Investment) {
		total = sumOf(is, nil, func(i model.Investment) decimal.Decimal { return i.CurrentValue })
	})
	return total
}

// TotalGains is total current value minus total invested, read from a
// single snapshot of the collection.
func (s *InvestmentStore) TotalGains() decimal.Decimal {
	var total decimal.Decimal
	s.View(func(is []model.Investment) {
		total = sumOf(is, nil, model.Investment.Gain)
	})
	return total
}
