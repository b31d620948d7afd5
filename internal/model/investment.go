package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestmentType identifies the instrument an investment is held in.
type InvestmentType string

// Investment types.
const (
	InvestmentFD         InvestmentType = "fd"
	InvestmentRD         InvestmentType = "rd"
	InvestmentSIP        InvestmentType = "sip"
	InvestmentMutualFund InvestmentType = "mutual_fund"
	InvestmentETF        InvestmentType = "etf"
	InvestmentOther      InvestmentType = "other"
)

// Investment tracks the purchase and current value of a holding.
type Investment struct {
	Timestamps
	StartDate       time.Time        `json:"startDate" validate:"required"`
	MaturityDate    *time.Time       `json:"maturityDate"`
	InterestRate    *decimal.Decimal `json:"interestRate,omitempty"`
	ID              string           `json:"id" validate:"required"`
	UserID          string           `json:"userId" validate:"required"`
	Name            string           `json:"name" validate:"required"`
	Type            InvestmentType   `json:"type" validate:"oneof=fd rd sip mutual_fund etf other"`
	Currency        string           `json:"currency" validate:"required,len=3"`
	Institution     string           `json:"institution"`
	AccountNumber   string           `json:"accountNumber,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	DocumentURLs    []string         `json:"documentURLs,omitempty"`
	PurchaseValue   decimal.Decimal  `json:"purchaseValue" validate:"gt=0"`
	CurrentValue    decimal.Decimal  `json:"currentValue" validate:"gte=0"`
	ReminderEnabled bool             `json:"reminderEnabled"`
}

// RecordID implements Record.
func (i Investment) RecordID() string { return i.ID }

// OwnerID implements Record.
func (i Investment) OwnerID() string { return i.UserID }

// Gain is the difference between current and purchase value.
func (i Investment) Gain() decimal.Decimal {
	return i.CurrentValue.Sub(i.PurchaseValue)
}

// InvestmentPatch lists the mutable investment fields.
type InvestmentPatch struct {
	Name            *string
	Type            *InvestmentType
	PurchaseValue   *decimal.Decimal
	CurrentValue    *decimal.Decimal
	Currency        *string
	StartDate       *time.Time
	MaturityDate    **time.Time
	InterestRate    **decimal.Decimal
	Institution     *string
	AccountNumber   *string
	Notes           *string
	DocumentURLs    *[]string
	ReminderEnabled *bool
}

// Apply copies the set fields onto i and refreshes UpdatedAt.
func (p InvestmentPatch) Apply(i *Investment, now time.Time) {
	if p.Name != nil {
		i.Name = *p.Name
	}
	if p.Type != nil {
		i.Type = *p.Type
	}
	if p.PurchaseValue != nil {
		i.PurchaseValue = *p.PurchaseValue
	}
	if p.CurrentValue != nil {
		i.CurrentValue = *p.CurrentValue
	}
	if p.Currency != nil {
		i.Currency = *p.Currency
	}
	if p.StartDate != nil {
		i.StartDate = *p.StartDate
	}
	if p.MaturityDate != nil {
		i.MaturityDate = *p.MaturityDate
	}
	if p.InterestRate != nil {
		i.InterestRate = *p.InterestRate
	}
	if p.Institution != nil {
		i.Institution = *p.Institution
	}
	if p.AccountNumber != nil {
		i.AccountNumber = *p.AccountNumber
	}
	if p.Notes != nil {
		i.Notes = *p.Notes
	}
	if p.DocumentURLs != nil {
		i.DocumentURLs = append([]string(nil), (*p.DocumentURLs)...)
	}
	if p.ReminderEnabled != nil {
		i.ReminderEnabled = *p.ReminderEnabled
	}
	i.Touch(now)
}
