package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill is a scheduled obligation with a due date and paid/unpaid state.
type Bill struct {
	Timestamps
	DueDate        time.Time       `json:"dueDate" validate:"required"`
	PaidDate       *time.Time      `json:"paidDate"`
	ID             string          `json:"id" validate:"required"`
	UserID         string          `json:"userId" validate:"required"`
	WalletID       string          `json:"walletId"`
	Name           string          `json:"name" validate:"required"`
	Frequency      Frequency       `json:"frequency" validate:"oneof=one_time weekly monthly quarterly yearly"`
	Category       Category        `json:"category"`
	Notes          string          `json:"notes,omitempty"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	ReminderDays   int             `json:"reminderDays" validate:"gte=0"`
	IsPaid         bool            `json:"isPaid"`
	AutoPayEnabled bool            `json:"autoPayEnabled"`
}

// RecordID implements Record.
func (b Bill) RecordID() string { return b.ID }

// OwnerID implements Record.
func (b Bill) OwnerID() string { return b.UserID }

// IsUpcoming reports whether the bill is unpaid and due after now.
func (b Bill) IsUpcoming(now time.Time) bool {
	return !b.IsPaid && b.DueDate.After(now)
}

// IsOverdue reports whether the bill is unpaid and was due before now.
func (b Bill) IsOverdue(now time.Time) bool {
	return !b.IsPaid && b.DueDate.Before(now)
}

// NeedsReminder reports whether an unpaid bill falls inside its reminder window.
func (b Bill) NeedsReminder(now time.Time) bool {
	if b.IsPaid || b.DueDate.Before(now) {
		return false
	}
	return !b.DueDate.After(now.AddDate(0, 0, b.ReminderDays))
}

// BillPatch lists the mutable bill fields.
type BillPatch struct {
	WalletID       *string
	Name           *string
	Amount         *decimal.Decimal
	DueDate        *time.Time
	Frequency      *Frequency
	Category       *Category
	ReminderDays   *int
	IsPaid         *bool
	PaidDate       **time.Time
	Notes          *string
	AutoPayEnabled *bool
}

// Apply copies the set fields onto b and refreshes UpdatedAt.
func (p BillPatch) Apply(b *Bill, now time.Time) {
	if p.WalletID != nil {
		b.WalletID = *p.WalletID
	}
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Amount != nil {
		b.Amount = *p.Amount
	}
	if p.DueDate != nil {
		b.DueDate = *p.DueDate
	}
	if p.Frequency != nil {
		b.Frequency = *p.Frequency
	}
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.ReminderDays != nil {
		b.ReminderDays = *p.ReminderDays
	}
	if p.IsPaid != nil {
		b.IsPaid = *p.IsPaid
	}
	if p.PaidDate != nil {
		b.PaidDate = *p.PaidDate
	}
	if p.Notes != nil {
		b.Notes = *p.Notes
	}
	if p.AutoPayEnabled != nil {
		b.AutoPayEnabled = *p.AutoPayEnabled
	}
	b.Touch(now)
}
