package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// BillStore holds bills. Upcoming and overdue are computed against the now
// passed by the caller, never a stored flag.
type BillStore struct {
	*Collection[model.Bill]
}

// NewBillStore creates an empty bill store.
func NewBillStore(clock Clock) *BillStore {
	return &BillStore{Collection: NewCollection[model.Bill](clock)}
}

// Update applies patch to the bill with the given id.
func (s *BillStore) Update(id string, patch model.BillPatch) (model.Bill, error) {
	return s.Collection.Update(id, func(b *model.Bill, now time.Time) {
		patch.Apply(b, now)
	})
}

// MarkAsPaid flags the bill paid as of paidAt.
func (s *BillStore) MarkAsPaid(id string, paidAt time.Time) (model.Bill, error) {
	return s.Collection.Update(id, func(b *model.Bill, now time.Time) {
		b.IsPaid = true
		b.PaidDate = &paidAt
		b.Touch(now)
	})
}

// Upcoming returns unpaid bills due after now.
func (s *BillStore) Upcoming(now time.Time) []model.Bill {
	return s.Filter(func(b model.Bill) bool { return b.IsUpcoming(now) })
}

// Overdue returns unpaid bills due before now.
func (s *BillStore) Overdue(now time.Time) []model.Bill {
	return s.Filter(func(b model.Bill) bool { return b.IsOverdue(now) })
}

// DueForReminder returns unpaid bills inside their reminder window.
func (s *BillStore) DueForReminder(now time.Time) []model.Bill {
	return s.Filter(func(b model.Bill) bool { return b.NeedsReminder(now) })
}

// TotalUnpaid sums the amounts of unpaid bills.
func (s *BillStore) TotalUnpaid() decimal.Decimal {
	var total decimal.Decimal
	s.View(func(bs []model.Bill) {
		total = sumOf(bs,
			func(b model.Bill) bool { return !b.IsPaid },
			func(b model.Bill) decimal.Decimal { return b.Amount })
	})
	return total
}
