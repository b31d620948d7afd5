package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Beneficiary receives a share of a policy payout.
type Beneficiary struct {
	Name         string          `json:"name" validate:"required"`
	Relationship string          `json:"relationship"`
	Percentage   decimal.Decimal `json:"percentage" validate:"gt=0,lte=100"`
}

// LifeInsurance is a life insurance policy and its premium schedule.
type LifeInsurance struct {
	Timestamps
	StartDate        time.Time       `json:"startDate" validate:"required"`
	EndDate          time.Time       `json:"endDate" validate:"required"`
	NextPremiumDate  time.Time       `json:"nextPremiumDate"`
	ID               string          `json:"id" validate:"required"`
	UserID           string          `json:"userId" validate:"required"`
	PolicyName       string          `json:"policyName" validate:"required"`
	Provider         string          `json:"provider"`
	PolicyNumber     string          `json:"policyNumber"`
	PremiumFrequency Frequency       `json:"premiumFrequency" validate:"oneof=monthly quarterly yearly"`
	Currency         string          `json:"currency" validate:"required,len=3"`
	Notes            string          `json:"notes,omitempty"`
	Beneficiaries    []Beneficiary   `json:"beneficiaries,omitempty" validate:"dive"`
	DocumentURLs     []string        `json:"documentURLs,omitempty"`
	PremiumAmount    decimal.Decimal `json:"premiumAmount" validate:"gt=0"`
	CoverageAmount   decimal.Decimal `json:"coverageAmount" validate:"gt=0"`
	IsActive         bool            `json:"isActive"`
	ReminderEnabled  bool            `json:"reminderEnabled"`
}

// RecordID implements Record.
func (p LifeInsurance) RecordID() string { return p.ID }

// OwnerID implements Record.
func (p LifeInsurance) OwnerID() string { return p.UserID }

// BeneficiaryShare sums the beneficiary percentages.
func (p LifeInsurance) BeneficiaryShare() decimal.Decimal {
	total := decimal.Zero
	for _, b := range p.Beneficiaries {
		total = total.Add(b.Percentage)
	}
	return total
}

// PremiumDue reports whether an active policy has a premium due within the
// window [now, now+within].
func (p LifeInsurance) PremiumDue(now time.Time, within time.Duration) bool {
	if !p.IsActive || p.NextPremiumDate.IsZero() {
		return false
	}
	return !p.NextPremiumDate.Before(now) && !p.NextPremiumDate.After(now.Add(within))
}

// InsurancePatch lists the mutable policy fields.
type InsurancePatch struct {
	PolicyName       *string
	Provider         *string
	PolicyNumber     *string
	PremiumAmount    *decimal.Decimal
	PremiumFrequency *Frequency
	CoverageAmount   *decimal.Decimal
	Currency         *string
	StartDate        *time.Time
	EndDate          *time.Time
	NextPremiumDate  *time.Time
	IsActive         *bool
	Beneficiaries    *[]Beneficiary
	Notes            *string
	DocumentURLs     *[]string
	ReminderEnabled  *bool
}

// Apply copies the set fields onto p and refreshes UpdatedAt.
func (ip InsurancePatch) Apply(p *LifeInsurance, now time.Time) {
	if ip.PolicyName != nil {
		p.PolicyName = *ip.PolicyName
	}
	if ip.Provider != nil {
		p.Provider = *ip.Provider
	}
	if ip.PolicyNumber != nil {
		p.PolicyNumber = *ip.PolicyNumber
	}
	if ip.PremiumAmount != nil {
		p.PremiumAmount = *ip.PremiumAmount
	}
	if ip.PremiumFrequency != nil {
		p.PremiumFrequency = *ip.PremiumFrequency
	}
	if ip.CoverageAmount != nil {
		p.CoverageAmount = *ip.CoverageAmount
	}
	if ip.Currency != nil {
		p.Currency = *ip.Currency
	}
	if ip.StartDate != nil {
		p.StartDate = *ip.StartDate
	}
	if ip.EndDate != nil {
		p.EndDate = *ip.EndDate
	}
	if ip.NextPremiumDate != nil {
		p.NextPremiumDate = *ip.NextPremiumDate
	}
	if ip.IsActive != nil {
		p.IsActive = *ip.IsActive
	}
	if ip.Beneficiaries != nil {
		p.Beneficiaries = append([]Beneficiary(nil), (*ip.Beneficiaries)...)
	}
	if ip.Notes != nil {
		p.Notes = *ip.Notes
	}
	if ip.DocumentURLs != nil {
		p.DocumentURLs = append([]string(nil), (*ip.DocumentURLs)...)
	}
	if ip.ReminderEnabled != nil {
		p.ReminderEnabled = *ip.ReminderEnabled
	}
	p.Touch(now)
}
