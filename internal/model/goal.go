package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Priority ranks goals against each other.
type Priority string

// Goal priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Goal is a savings target with progress tracking.
type Goal struct {
	Timestamps
	Deadline      *time.Time      `json:"deadline"`
	ID            string          `json:"id" validate:"required"`
	UserID        string          `json:"userId" validate:"required"`
	Name          string          `json:"name" validate:"required"`
	Currency      string          `json:"currency" validate:"required,len=3"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"imageURL,omitempty"`
	Priority      Priority        `json:"priority" validate:"oneof=low medium high"`
	TargetAmount  decimal.Decimal `json:"targetAmount" validate:"gt=0"`
	CurrentAmount decimal.Decimal `json:"currentAmount" validate:"gte=0"`
	IsCompleted   bool            `json:"isCompleted"`
}

// RecordID implements Record.
func (g Goal) RecordID() string { return g.ID }

// OwnerID implements Record.
func (g Goal) OwnerID() string { return g.UserID }

// Reached reports whether current savings meet the target.
func (g Goal) Reached() bool {
	return g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount)
}

// Progress returns the completion percentage, capped at 100.
func (g Goal) Progress() decimal.Decimal {
	if g.TargetAmount.IsZero() {
		return decimal.Zero
	}
	pct := g.CurrentAmount.Div(g.TargetAmount).Mul(hundred)
	return decimal.Min(pct, hundred)
}

// Contribute adds amount to the goal and recomputes IsCompleted in one step.
// The caller is responsible for rejecting non-positive amounts.
func (g *Goal) Contribute(amount decimal.Decimal, now time.Time) {
	g.CurrentAmount = g.CurrentAmount.Add(amount)
	g.IsCompleted = g.Reached()
	g.Touch(now)
}

// GoalPatch lists the mutable goal fields.
type GoalPatch struct {
	Name          *string
	TargetAmount  *decimal.Decimal
	CurrentAmount *decimal.Decimal
	Currency      *string
	Deadline      **time.Time
	Category      *string
	ImageURL      *string
	Priority      *Priority
}

// Apply copies the set fields onto g, recomputes IsCompleted from the amounts
// and refreshes UpdatedAt.
func (p GoalPatch) Apply(g *Goal, now time.Time) {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.TargetAmount != nil {
		g.TargetAmount = *p.TargetAmount
	}
	if p.CurrentAmount != nil {
		g.CurrentAmount = *p.CurrentAmount
	}
	if p.Currency != nil {
		g.Currency = *p.Currency
	}
	if p.Deadline != nil {
		g.Deadline = *p.Deadline
	}
	if p.Category != nil {
		g.Category = *p.Category
	}
	if p.ImageURL != nil {
		g.ImageURL = *p.ImageURL
	}
	if p.Priority != nil {
		g.Priority = *p.Priority
	}
	g.IsCompleted = g.Reached()
	g.Touch(now)
}
