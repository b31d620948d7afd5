package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletType indicates who a wallet belongs to and where it is persisted.
type WalletType string

const (
	// WalletPersonal is a single-user wallet.
	WalletPersonal WalletType = "personal"
	// WalletFamily is a wallet shared with other users via SharedWith.
	WalletFamily WalletType = "family"
	// WalletSecret is kept only in the encrypted local namespace.
	WalletSecret WalletType = "secret"
)

// Wallet is a named pool of funds with a balance and currency.
type Wallet struct {
	Timestamps
	ID         string          `json:"id" validate:"required"`
	UserID     string          `json:"userId" validate:"required"`
	Name       string          `json:"name" validate:"required"`
	Type       WalletType      `json:"type" validate:"oneof=personal family secret"`
	Currency   string          `json:"currency" validate:"required,len=3"`
	Color      string          `json:"color,omitempty"`
	Icon       string          `json:"icon,omitempty"`
	SharedWith []string        `json:"sharedWith,omitempty"`
	Balance    decimal.Decimal `json:"balance"`
	IsDefault  bool            `json:"isDefault"`
}

// RecordID implements Record.
func (w Wallet) RecordID() string { return w.ID }

// OwnerID implements Record.
func (w Wallet) OwnerID() string { return w.UserID }

// IsSecret reports whether the wallet must stay out of the remote store.
func (w Wallet) IsSecret() bool { return w.Type == WalletSecret }

// WalletPatch lists the mutable wallet fields. Nil fields are left untouched.
type WalletPatch struct {
	Name       *string
	Type       *WalletType
	Balance    *decimal.Decimal
	Currency   *string
	Color      *string
	Icon       *string
	IsDefault  *bool
	SharedWith *[]string
}

// Apply copies the set fields onto w and refreshes UpdatedAt.
func (p WalletPatch) Apply(w *Wallet, now time.Time) {
	if p.Name != nil {
		w.Name = *p.Name
	}
	if p.Type != nil {
		w.Type = *p.Type
	}
	if p.Balance != nil {
		w.Balance = *p.Balance
	}
	if p.Currency != nil {
		w.Currency = *p.Currency
	}
	if p.Color != nil {
		w.Color = *p.Color
	}
	if p.Icon != nil {
		w.Icon = *p.Icon
	}
	if p.IsDefault != nil {
		w.IsDefault = *p.IsDefault
	}
	if p.SharedWith != nil {
		w.SharedWith = append([]string(nil), (*p.SharedWith)...)
	}
	w.Touch(now)
}
