package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// PremiumWindow is how far ahead Summary looks for premiums due.
const PremiumWindow = 30 * 24 * time.Hour

// Summary is a snapshot of the loaded data at a point in time.
type Summary struct {
	GeneratedAt       time.Time
	BalanceByCurrency map[string]decimal.Decimal
	Alerts            []model.Budget
	UpcomingBills     []model.Bill
	OverdueBills      []model.Bill
	DuePremiums       []model.LifeInsurance
	Balance           decimal.Decimal
	Income            decimal.Decimal
	Expense           decimal.Decimal
	Budgeted          decimal.Decimal
	Spent             decimal.Decimal
	Saved             decimal.Decimal
	SavingsTarget     decimal.Decimal
	Unpaid            decimal.Decimal
	Invested          decimal.Decimal
	Portfolio         decimal.Decimal
	Gains             decimal.Decimal
	Coverage          decimal.Decimal
	Wallets           int
	Transactions      int
	ActiveGoals       int
	CompletedGoals    int
}

// Summary aggregates the stores as of now.
func (l *Ledger) Summary(now time.Time) Summary {
	s := l.state
	return Summary{
		GeneratedAt:       now,
		BalanceByCurrency: s.Wallets.TotalBalanceByCurrency(),
		Alerts:            s.Budgets.Alerts(),
		UpcomingBills:     s.Bills.Upcoming(now),
		OverdueBills:      s.Bills.Overdue(now),
		DuePremiums:       s.Insurance.DuePremiums(now, PremiumWindow),
		Balance:           s.Wallets.TotalBalance(),
		Income:            s.Transactions.TotalIncome(),
		Expense:           s.Transactions.TotalExpense(),
		Budgeted:          s.Budgets.TotalBudget(),
		Spent:             s.Budgets.TotalSpent(),
		Saved:             s.Goals.TotalSaved(),
		SavingsTarget:     s.Goals.TotalTarget(),
		Unpaid:            s.Bills.TotalUnpaid(),
		Invested:          s.Investments.TotalInvested(),
		Portfolio:         s.Investments.TotalCurrentValue(),
		Gains:             s.Investments.TotalGains(),
		Coverage:          s.Insurance.TotalCoverage(),
		Wallets:           s.Wallets.Len(),
		Transactions:      s.Transactions.Len(),
		ActiveGoals:       len(s.Goals.Active()),
		CompletedGoals:    len(s.Goals.Completed()),
	}
}
