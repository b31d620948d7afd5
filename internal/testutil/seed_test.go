package testutil

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshGadhecha/SpendWise/internal/model"
)

func TestSeed_Apply(t *testing.T) {
	now := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	env := NewEnvWithOptions(t, EnvOptions{Clock: func() time.Time { return now }}).SignIn("alice")

	seeded := NewSeed(t).
		WithWallet("Cash", "100").
		WithSecretWallet("Stash", "40").
		WithBudget(model.CategoryFood, "50").
		WithExpense("Cash", model.CategoryFood, "20").
		WithIncome("Cash", model.CategorySalary, "500").
		WithGoal("Bike", "300", "100").
		WithBill("Rent", "900", now.AddDate(0, 0, 5)).
		Apply(env)

	require.Len(t, seeded.Wallets, 2)
	require.Len(t, seeded.Transactions, 2)

	cash, ok := env.State.Wallets.Get(seeded.Wallets["Cash"].ID)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("580").Equal(cash.Balance))

	budget, _ := env.State.Budgets.Get(seeded.Budgets[0].ID)
	assert.True(t, decimal.RequireFromString("20").Equal(budget.Spent))

	assert.Len(t, env.State.Goals.Active(), 1)
	assert.Len(t, env.State.Bills.Upcoming(now), 1)
	assert.True(t, seeded.Wallets["Stash"].IsSecret())
}
