package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money coming in from money going out.
type TransactionType string

const (
	// TransactionIncome adds to a wallet.
	TransactionIncome TransactionType = "income"
	// TransactionExpense subtracts from a wallet.
	TransactionExpense TransactionType = "expense"
)

// Frequency is how often a recurring item repeats.
type Frequency string

// Recurrence frequencies.
const (
	FrequencyOneTime   Frequency = "one_time"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Next returns t advanced by n periods of f. One-time frequencies never advance.
func (f Frequency) Next(t time.Time, n int) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, n)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7*n)
	case FrequencyMonthly:
		return t.AddDate(0, n, 0)
	case FrequencyQuarterly:
		return t.AddDate(0, 3*n, 0)
	case FrequencyYearly:
		return t.AddDate(n, 0, 0)
	default:
		return t
	}
}

// RecurringPattern describes how a recurring transaction repeats.
type RecurringPattern struct {
	EndDate   *time.Time `json:"endDate"`
	Frequency Frequency  `json:"frequency" validate:"oneof=daily weekly monthly yearly"`
	Interval  int        `json:"interval" validate:"gte=1"`
}

// Transaction is a single income or expense event against a wallet.
type Transaction struct {
	Timestamps
	Date             time.Time         `json:"date" validate:"required"`
	RecurringPattern *RecurringPattern `json:"recurringPattern,omitempty" validate:"omitempty"`
	ID               string            `json:"id" validate:"required"`
	UserID           string            `json:"userId" validate:"required"`
	WalletID         string            `json:"walletId" validate:"required"`
	Type             TransactionType   `json:"type" validate:"oneof=income expense"`
	Category         Category          `json:"category" validate:"required"`
	Description      string            `json:"description,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	PhotoURL         string            `json:"photoURL,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Amount           decimal.Decimal   `json:"amount" validate:"gt=0"`
	IsRecurring      bool              `json:"isRecurring"`
}

// RecordID implements Record.
func (t Transaction) RecordID() string { return t.ID }

// OwnerID implements Record.
func (t Transaction) OwnerID() string { return t.UserID }

// SignedAmount is the effect of the transaction on its wallet balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// TransactionPatch lists the mutable transaction fields.
type TransactionPatch struct {
	WalletID         *string
	Type             *TransactionType
	Amount           *decimal.Decimal
	Category         *Category
	Description      *string
	Notes            *string
	PhotoURL         *string
	Date             *time.Time
	IsRecurring      *bool
	RecurringPattern **RecurringPattern
	Tags             *[]string
}

// Apply copies the set fields onto t and refreshes UpdatedAt.
func (p TransactionPatch) Apply(t *Transaction, now time.Time) {
	if p.WalletID != nil {
		t.WalletID = *p.WalletID
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.PhotoURL != nil {
		t.PhotoURL = *p.PhotoURL
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.IsRecurring != nil {
		t.IsRecurring = *p.IsRecurring
	}
	if p.RecurringPattern != nil {
		t.RecurringPattern = *p.RecurringPattern
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), (*p.Tags)...)
	}
	t.Touch(now)
}
