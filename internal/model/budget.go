package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPeriod is the length of a budget window.
type BudgetPeriod string

// Budget periods.
const (
	PeriodWeekly  BudgetPeriod = "weekly"
	PeriodMonthly BudgetPeriod = "monthly"
	PeriodYearly  BudgetPeriod = "yearly"
)

// End returns the end of a period starting at start.
func (p BudgetPeriod) End(start time.Time) time.Time {
	switch p {
	case PeriodWeekly:
		return start.AddDate(0, 0, 7)
	case PeriodYearly:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

// DefaultAlertThreshold is the warning percentage used when none is set.
const DefaultAlertThreshold = 80

// BudgetStatus is the alert level derived from spent versus amount.
type BudgetStatus string

// Budget statuses.
const (
	BudgetOK       BudgetStatus = "ok"
	BudgetWarning  BudgetStatus = "warning"
	BudgetExceeded BudgetStatus = "exceeded"
)

var hundred = decimal.NewFromInt(100)

// Budget is a spending ceiling for a category over a period.
type Budget struct {
	Timestamps
	StartDate      time.Time       `json:"startDate" validate:"required"`
	EndDate        time.Time       `json:"endDate"`
	ID             string          `json:"id" validate:"required"`
	UserID         string          `json:"userId" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	Category       Category        `json:"category" validate:"required"`
	Period         BudgetPeriod    `json:"period" validate:"oneof=weekly monthly yearly"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	Spent          decimal.Decimal `json:"spent" validate:"gte=0"`
	AlertThreshold int             `json:"alertThreshold" validate:"gte=0,lte=100"`
}

// RecordID implements Record.
func (b Budget) RecordID() string { return b.ID }

// OwnerID implements Record.
func (b Budget) OwnerID() string { return b.UserID }

// Percentage returns spent as a percentage of amount. A zero amount yields zero.
func (b Budget) Percentage() decimal.Decimal {
	if b.Amount.IsZero() {
		return decimal.Zero
	}
	return b.Spent.Div(b.Amount).Mul(hundred)
}

// Remaining returns amount minus spent, which goes negative once exceeded.
func (b Budget) Remaining() decimal.Decimal {
	return b.Amount.Sub(b.Spent)
}

func (b Budget) threshold() decimal.Decimal {
	if b.AlertThreshold <= 0 {
		return decimal.NewFromInt(DefaultAlertThreshold)
	}
	return decimal.NewFromInt(int64(b.AlertThreshold))
}

// IsAlert reports whether spending reached the alert threshold.
func (b Budget) IsAlert() bool {
	return b.Percentage().GreaterThanOrEqual(b.threshold())
}

// Status classifies the budget for alert coloring.
func (b Budget) Status() BudgetStatus {
	pct := b.Percentage()
	switch {
	case pct.GreaterThanOrEqual(hundred):
		return BudgetExceeded
	case pct.GreaterThanOrEqual(b.threshold()):
		return BudgetWarning
	default:
		return BudgetOK
	}
}

// Covers reports whether the budget tracks category c on date d.
func (b Budget) Covers(c Category, d time.Time) bool {
	if b.Category != c {
		return false
	}
	return !d.Before(b.StartDate) && !d.After(b.EndDate)
}

// BudgetPatch lists the mutable budget fields.
type BudgetPatch struct {
	Name           *string
	Category       *Category
	Amount         *decimal.Decimal
	Spent          *decimal.Decimal
	Period         *BudgetPeriod
	StartDate      *time.Time
	EndDate        *time.Time
	AlertThreshold *int
}

// Apply copies the set fields onto b and refreshes UpdatedAt. Changing the
// period or start date recomputes EndDate unless EndDate is patched too.
func (p BudgetPatch) Apply(b *Budget, now time.Time) {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.Amount != nil {
		b.Amount = *p.Amount
	}
	if p.Spent != nil {
		b.Spent = *p.Spent
	}
	if p.Period != nil {
		b.Period = *p.Period
	}
	if p.StartDate != nil {
		b.StartDate = *p.StartDate
	}
	if p.AlertThreshold != nil {
		b.AlertThreshold = *p.AlertThreshold
	}
	switch {
	case p.EndDate != nil:
		b.EndDate = *p.EndDate
	case p.Period != nil || p.StartDate != nil:
		b.EndDate = b.Period.End(b.StartDate)
	}
	b.Touch(now)
}
