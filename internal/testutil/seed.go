package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// Seed builds ledger data fluently. Wallets are referred to by name; records
// are created through the ledger so balances and budgets stay consistent.
//
// Example:
//
//	seeded := testutil.NewSeed(t).
//		WithWallet("Cash", "100").
//		WithBudget(model.CategoryFood, "50").
//		WithExpense("Cash", model.CategoryFood, "20").
//		Apply(env)
type Seed struct {
	t       *testing.T
	wallets []model.Wallet
	steps   []func(context.Context, *Env, *Seeded)
}

// Seeded holds the records created by Apply.
type Seeded struct {
	Wallets      map[string]model.Wallet
	Transactions []model.Transaction
	Budgets      []model.Budget
	Goals        []model.Goal
	Bills        []model.Bill
}

// NewSeed creates an empty seed for t.
func NewSeed(t *testing.T) *Seed {
	t.Helper()
	return &Seed{t: t}
}

// WithWallet adds a personal wallet with an opening balance.
func (s *Seed) WithWallet(name, balance string) *Seed {
	s.wallets = append(s.wallets, model.Wallet{Name: name, Type: model.WalletPersonal, Balance: decimal.RequireFromString(balance)})
	return s
}

// WithSecretWallet adds a secret wallet with an opening balance.
func (s *Seed) WithSecretWallet(name, balance string) *Seed {
	s.wallets = append(s.wallets, model.Wallet{Name: name, Type: model.WalletSecret, Balance: decimal.RequireFromString(balance)})
	return s
}

// WithBudget adds a monthly budget for category.
func (s *Seed) WithBudget(category model.Category, amount string) *Seed {
	s.steps = append(s.steps, func(ctx context.Context, e *Env, out *Seeded) {
		b, err := e.Ledger.AddBudget(ctx, model.Budget{
			Name:     category.DisplayName(),
			Category: category,
			Period:   model.PeriodMonthly,
			Amount:   decimal.RequireFromString(amount),
		})
		s.check(err, "budget")
		out.Budgets = append(out.Budgets, b)
	})
	return s
}

// WithExpense records an expense against the named wallet.
func (s *Seed) WithExpense(wallet string, category model.Category, amount string) *Seed {
	return s.withTransaction(wallet, model.TransactionExpense, category, amount)
}

// WithIncome records income into the named wallet.
func (s *Seed) WithIncome(wallet string, category model.Category, amount string) *Seed {
	return s.withTransaction(wallet, model.TransactionIncome, category, amount)
}

func (s *Seed) withTransaction(wallet string, kind model.TransactionType, category model.Category, amount string) *Seed {
	s.steps = append(s.steps, func(ctx context.Context, e *Env, out *Seeded) {
		w, ok := out.Wallets[wallet]
		if !ok {
			s.t.Fatalf("seed: unknown wallet %q", wallet)
		}
		tx, err := e.Ledger.AddTransaction(ctx, model.Transaction{
			WalletID: w.ID,
			Type:     kind,
			Category: category,
			Amount:   decimal.RequireFromString(amount),
		})
		s.check(err, "transaction")
		out.Transactions = append(out.Transactions, tx)
	})
	return s
}

// WithGoal adds a savings goal.
func (s *Seed) WithGoal(name, target, saved string) *Seed {
	s.steps = append(s.steps, func(ctx context.Context, e *Env, out *Seeded) {
		g, err := e.Ledger.AddGoal(ctx, model.Goal{
			Name:          name,
			TargetAmount:  decimal.RequireFromString(target),
			CurrentAmount: decimal.RequireFromString(saved),
		})
		s.check(err, "goal")
		out.Goals = append(out.Goals, g)
	})
	return s
}

// WithBill adds an unpaid one-time bill due at due with a three day reminder.
func (s *Seed) WithBill(name, amount string, due time.Time) *Seed {
	s.steps = append(s.steps, func(ctx context.Context, e *Env, out *Seeded) {
		b, err := e.Ledger.AddBill(ctx, model.Bill{
			Name:         name,
			Amount:       decimal.RequireFromString(amount),
			DueDate:      due,
			ReminderDays: 3,
		})
		s.check(err, "bill")
		out.Bills = append(out.Bills, b)
	})
	return s
}

// Apply creates the wallets first and then the other records in the order
// they were added. The Env must be signed in.
func (s *Seed) Apply(e *Env) *Seeded {
	s.t.Helper()
	ctx := context.Background()
	out := &Seeded{Wallets: make(map[string]model.Wallet)}

	for _, w := range s.wallets {
		created, err := e.Ledger.AddWallet(ctx, w)
		s.check(err, "wallet")
		out.Wallets[w.Name] = created
	}
	for _, step := range s.steps {
		step(ctx, e, out)
	}
	return out
}

func (s *Seed) check(err error, what string) {
	s.t.Helper()
	if err != nil {
		s.t.Fatalf("seed: failed to add %s: %v", what, err)
	}
}
