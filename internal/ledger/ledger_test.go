package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/docstore"
	"github.com/HarshGadhecha/SpendWise/internal/localstore"
	"github.com/HarshGadhecha/SpendWise/internal/model"
	"github.com/HarshGadhecha/SpendWise/internal/service"
	"github.com/HarshGadhecha/SpendWise/internal/session"
	"github.com/HarshGadhecha/SpendWise/internal/storage"
	"github.com/HarshGadhecha/SpendWise/internal/store"
	"github.com/HarshGadhecha/SpendWise/internal/syncer"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// outageRemote fails reads and writes as unavailable while down is set.
type outageRemote struct {
	service.DocumentStore
	mu   sync.Mutex
	down bool
}

func (r *outageRemote) setDown(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.down = v
}

func (r *outageRemote) check() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return common.Unavailable("test", context.DeadlineExceeded)
	}
	return nil
}

func (r *outageRemote) Set(ctx context.Context, collection, id string, doc service.Document) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.DocumentStore.Set(ctx, collection, id, doc)
}

func (r *outageRemote) Query(ctx context.Context, q service.Query) ([]service.Document, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.DocumentStore.Query(ctx, q)
}

func (r *outageRemote) Delete(ctx context.Context, collection, id string) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.DocumentStore.Delete(ctx, collection, id)
}

type fixture struct {
	ledger  *Ledger
	state   *store.State
	sync    *syncer.Service
	session *session.Session
	remote  *outageRemote
	kv      *localstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	backend, err := docstore.NewSQLiteStore(ctx, storage.MemoryPath)
	require.NoError(t, err)
	kv, err := localstore.Open(ctx, storage.MemoryPath, "passphrase")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = backend.Close()
		_ = kv.Close()
	})

	clock := func() time.Time { return testNow }
	remote := &outageRemote{DocumentStore: backend}
	svc := syncer.New(remote, kv, syncer.Config{Now: clock, Retry: common.RetryOptions{MaxAttempts: 1}})
	state := store.NewState(clock)
	sess := session.New(svc.Users, kv, state)
	return &fixture{
		ledger:  New(state, svc, kv, sess),
		state:   state,
		sync:    svc,
		session: sess,
		remote:  remote,
		kv:      kv,
	}
}

func signedIn(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	_, err := f.session.SignIn(context.Background(), service.Identity{UserID: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	f.session.Wait()
	return f
}

func (f *fixture) wallet(t *testing.T, name string, kind model.WalletType, balance string) model.Wallet {
	t.Helper()
	w, err := f.ledger.AddWallet(context.Background(), model.Wallet{Name: name, Type: kind, Balance: dec(balance)})
	require.NoError(t, err)
	return w
}

func expense(walletID, amount string) model.Transaction {
	return model.Transaction{
		WalletID: walletID,
		Type:     model.TransactionExpense,
		Category: model.CategoryFood,
		Amount:   dec(amount),
	}
}

func TestLedger_RequiresSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.AddWallet(context.Background(), model.Wallet{Name: "Cash"})
	assert.ErrorIs(t, err, common.ErrNoSession)
	assert.Zero(t, f.state.Wallets.Len())
}

func TestLedger_AddWalletDefaults(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)

	w := f.wallet(t, "Cash", "", "100")
	assert.NotEmpty(t, w.ID)
	assert.Equal(t, "alice", w.UserID)
	assert.Equal(t, model.WalletPersonal, w.Type)
	assert.Equal(t, DefaultCurrency, w.Currency)
	assert.Equal(t, testNow, w.CreatedAt)
	assert.True(t, w.IsDefault, "first wallet becomes the default")

	second := f.wallet(t, "Bank", "", "0")
	assert.False(t, second.IsDefault)

	remote, err := f.sync.Wallets.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(remote.Balance))
}

func TestLedger_SingleDefaultWallet(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)

	first, err := f.ledger.AddWallet(ctx, model.Wallet{Name: "Cash", IsDefault: true})
	require.NoError(t, err)
	second, err := f.ledger.AddWallet(ctx, model.Wallet{Name: "Bank", IsDefault: true})
	require.NoError(t, err)

	def, ok := f.state.Wallets.Default("alice")
	require.True(t, ok)
	assert.Equal(t, second.ID, def.ID)

	remoteFirst, err := f.sync.Wallets.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, remoteFirst.IsDefault, "demoted wallet is written through")

	_, err = f.ledger.SetDefaultWallet(ctx, first.ID)
	require.NoError(t, err)
	def, _ = f.state.Wallets.Default("alice")
	assert.Equal(t, first.ID, def.ID)
}

func TestLedger_TransactionEffects(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)
	w := f.wallet(t, "Cash", model.WalletPersonal, "100")

	budget, err := f.ledger.AddBudget(ctx, model.Budget{
		Name:     "Food",
		Category: model.CategoryFood,
		Period:   model.PeriodMonthly,
		Amount:   dec("50"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultAlertThreshold, budget.AlertThreshold)
	assert.False(t, budget.EndDate.IsZero())

	tx, err := f.ledger.AddTransaction(ctx, expense(w.ID, "30"))
	require.NoError(t, err)
	assert.Equal(t, testNow, tx.Date)

	got, _ := f.state.Wallets.Get(w.ID)
	assert.True(t, dec("70").Equal(got.Balance))
	b, _ := f.state.Budgets.Get(budget.ID)
	assert.True(t, dec("30").Equal(b.Spent))

	remoteWallet, err := f.sync.Wallets.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, dec("70").Equal(remoteWallet.Balance))
	_, err = f.sync.Transactions.Get(ctx, tx.ID)
	require.NoError(t, err)

	amount := dec("45")
	_, err = f.ledger.UpdateTransaction(ctx, tx.ID, model.TransactionPatch{Amount: &amount})
	require.NoError(t, err)
	got, _ = f.state.Wallets.Get(w.ID)
	assert.True(t, dec("55").Equal(got.Balance))
	b, _ = f.state.Budgets.Get(budget.ID)
	assert.True(t, dec("45").Equal(b.Spent))
	assert.True(t, b.IsAlert())

	require.NoError(t, f.ledger.DeleteTransaction(ctx, tx.ID))
	got, _ = f.state.Wallets.Get(w.ID)
	assert.True(t, dec("100").Equal(got.Balance))
	b, _ = f.state.Budgets.Get(budget.ID)
	assert.True(t, b.Spent.IsZero())

	_, err = f.sync.Transactions.Get(ctx, tx.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLedger_IncomeSkipsBudgets(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)
	w := f.wallet(t, "Bank", model.WalletPersonal, "0")
	budget, err := f.ledger.AddBudget(ctx, model.Budget{Name: "Food", Category: model.CategoryFood, Period: model.PeriodMonthly, Amount: dec("50")})
	require.NoError(t, err)

	_, err = f.ledger.AddTransaction(ctx, model.Transaction{
		WalletID: w.ID,
		Type:     model.TransactionIncome,
		Category: model.CategorySalary,
		Amount:   dec("1000"),
	})
	require.NoError(t, err)

	got, _ := f.state.Wallets.Get(w.ID)
	assert.True(t, dec("1000").Equal(got.Balance))
	b, _ := f.state.Budgets.Get(budget.ID)
	assert.True(t, b.Spent.IsZero())
}

func TestLedger_TransactionValidation(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)
	w := f.wallet(t, "Cash", model.WalletPersonal, "10")

	tests := []struct {
		name    string
		tx      model.Transaction
		wantErr error
	}{
		{"zero amount", expense(w.ID, "0"), common.ErrInvalidAmount},
		{"negative amount", expense(w.ID, "-5"), common.ErrInvalidAmount},
		{"unknown wallet", expense("missing", "5"), common.ErrNotFound},
		{"category mismatch", model.Transaction{WalletID: w.ID, Type: model.TransactionIncome, Category: model.CategoryFood, Amount: dec("5")}, common.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.AddTransaction(ctx, tt.tx)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Zero(t, f.state.Transactions.Len())
	got, _ := f.state.Wallets.Get(w.ID)
	assert.True(t, dec("10").Equal(got.Balance))
}

func TestLedger_OtherOwnersRecordsAreInvisible(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)
	require.NoError(t, f.state.Wallets.Insert(model.Wallet{ID: "bob-wallet", UserID: "bob", Name: "Bob", Type: model.WalletPersonal, Currency: "USD"}))

	name := "Mine now"
	_, err := f.ledger.UpdateWallet(ctx, "bob-wallet", model.WalletPatch{Name: &name})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, f.ledger.DeleteWallet(ctx, "bob-wallet"), common.ErrNotFound)
	_, err = f.ledger.AddTransaction(ctx, expense("bob-wallet", "1"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLedger_SecretWalletStaysLocal(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)
	budget, err := f.ledger.AddBudget(ctx, model.Budget{Name: "Food", Category: model.CategoryFood, Period: model.PeriodMonthly, Amount: dec("50")})
	require.NoError(t, err)

	w := f.wallet(t, "Stash", model.WalletSecret, "500")
	tx, err := f.ledger.AddTransaction(ctx, expense(w.ID, "20"))
	require.NoError(t, err)

	_, err = f.sync.Wallets.Get(ctx, w.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.sync.Transactions.Get(ctx, tx.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	var wallets []model.Wallet
	ok, err := f.kv.GetSecret(ctx, localstore.SecretWalletData, &wallets)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, wallets, 1)
	assert.True(t, dec("480").Equal(wallets[0].Balance))

	var txs []model.Transaction
	_, err = f.kv.GetSecret(ctx, localstore.SecretTransactions, &txs)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, tx.ID, txs[0].ID)

	b, _ := f.state.Budgets.Get(budget.ID)
	assert.True(t, b.Spent.IsZero(), "secret spending is not budgeted")
}

func TestLedger_WalletSecrecyTransitions(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)
	w := f.wallet(t, "Cash", model.WalletPersonal, "100")
	tx, err := f.ledger.AddTransaction(ctx, expense(w.ID, "10"))
	require.NoError(t, err)

	secret := model.WalletSecret
	_, err = f.ledger.UpdateWallet(ctx, w.ID, model.WalletPatch{Type: &secret})
	require.NoError(t, err)
	_, err = f.sync.Wallets.Get(ctx, w.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.sync.Transactions.Get(ctx, tx.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	personal := model.WalletPersonal
	_, err = f.ledger.UpdateWallet(ctx, w.ID, model.WalletPatch{Type: &personal})
	require.NoError(t, err)
	_, err = f.sync.Wallets.Get(ctx, w.ID)
	require.NoError(t, err)
	_, err = f.sync.Transactions.Get(ctx, tx.ID)
	require.NoError(t, err)

	var wallets []model.Wallet
	_, err = f.kv.GetSecret(ctx, localstore.SecretWalletData, &wallets)
	require.NoError(t, err)
	assert.Empty(t, wallets)
}

func TestLedger_WalletSecrecyMovesBudgetSpending(t *testing.T) {
	ctx := context.Background()
	secret, personal := model.WalletSecret, model.WalletPersonal

	spent := func(t *testing.T, f *fixture, id string) decimal.Decimal {
		t.Helper()
		b, ok := f.state.Budgets.Get(id)
		require.True(t, ok)
		return b.Spent
	}

	t.Run("hiding a wallet", func(t *testing.T) {
		f := signedIn(t)
		w := f.wallet(t, "Cash", model.WalletPersonal, "100")
		budget, err := f.ledger.AddBudget(ctx, model.Budget{Name: "Food", Category: model.CategoryFood, Period: model.PeriodMonthly, Amount: dec("200")})
		require.NoError(t, err)
		tx, err := f.ledger.AddTransaction(ctx, expense(w.ID, "50"))
		require.NoError(t, err)
		require.True(t, dec("50").Equal(spent(t, f, budget.ID)))

		_, err = f.ledger.UpdateWallet(ctx, w.ID, model.WalletPatch{Type: &secret})
		require.NoError(t, err)
		assert.True(t, spent(t, f, budget.ID).IsZero())
		remote, err := f.sync.Budgets.Get(ctx, budget.ID)
		require.NoError(t, err)
		assert.True(t, remote.Spent.IsZero())

		require.NoError(t, f.ledger.DeleteTransaction(ctx, tx.ID))
		assert.True(t, spent(t, f, budget.ID).IsZero())
	})

	t.Run("publishing a wallet", func(t *testing.T) {
		f := signedIn(t)
		hidden := f.wallet(t, "Stash", model.WalletSecret, "100")
		open := f.wallet(t, "Bank", model.WalletPersonal, "100")
		budget, err := f.ledger.AddBudget(ctx, model.Budget{Name: "Food", Category: model.CategoryFood, Period: model.PeriodMonthly, Amount: dec("200")})
		require.NoError(t, err)
		tx, err := f.ledger.AddTransaction(ctx, expense(hidden.ID, "50"))
		require.NoError(t, err)
		_, err = f.ledger.AddTransaction(ctx, expense(open.ID, "30"))
		require.NoError(t, err)
		require.True(t, dec("30").Equal(spent(t, f, budget.ID)))

		_, err = f.ledger.UpdateWallet(ctx, hidden.ID, model.WalletPatch{Type: &personal})
		require.NoError(t, err)
		assert.True(t, dec("80").Equal(spent(t, f, budget.ID)))

		require.NoError(t, f.ledger.DeleteTransaction(ctx, tx.ID))
		assert.True(t, dec("30").Equal(spent(t, f, budget.ID)))
	})
}

func TestLedger_LoadMergesSecretData(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)
	public := f.wallet(t, "Cash", model.WalletPersonal, "100")
	secret := f.wallet(t, "Stash", model.WalletSecret, "50")
	older, err := f.ledger.AddTransaction(ctx, model.Transaction{
		WalletID: public.ID, Type: model.TransactionExpense, Category: model.CategoryFood,
		Amount: dec("5"), Date: testNow.Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	newer, err := f.ledger.AddTransaction(ctx, model.Transaction{
		WalletID: secret.ID, Type: model.TransactionExpense, Category: model.CategoryFood,
		Amount: dec("5"), Date: testNow.Add(-time.Hour),
	})
	require.NoError(t, err)

	f.state.Reset()
	var loaded []string
	require.NoError(t, f.ledger.Load(ctx, func(collection string, _ int) {
		loaded = append(loaded, collection)
	}))

	assert.Len(t, loaded, 7)
	assert.Equal(t, 2, f.state.Wallets.Len())
	all := f.state.Transactions.All()
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID, "newest first")
	assert.Equal(t, older.ID, all[1].ID)

	last, ok, err := f.sync.LastSync(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, testNow, last)
}

func TestLedger_DeleteWalletCascades(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)
	keep := f.wallet(t, "Bank", model.WalletPersonal, "100")
	w := f.wallet(t, "Cash", model.WalletPersonal, "100")
	budget, err := f.ledger.AddBudget(ctx, model.Budget{Name: "Food", Category: model.CategoryFood, Period: model.PeriodMonthly, Amount: dec("50")})
	require.NoError(t, err)

	gone, err := f.ledger.AddTransaction(ctx, expense(w.ID, "20"))
	require.NoError(t, err)
	kept, err := f.ledger.AddTransaction(ctx, expense(keep.ID, "5"))
	require.NoError(t, err)

	require.NoError(t, f.ledger.DeleteWallet(ctx, w.ID))

	_, ok := f.state.Wallets.Get(w.ID)
	assert.False(t, ok)
	_, ok = f.state.Transactions.Get(gone.ID)
	assert.False(t, ok)
	_, ok = f.state.Transactions.Get(kept.ID)
	assert.True(t, ok)
	b, _ := f.state.Budgets.Get(budget.ID)
	assert.True(t, dec("5").Equal(b.Spent))

	_, err = f.sync.Transactions.Get(ctx, gone.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.sync.Wallets.Get(ctx, w.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLedger_QueuesWhileOffline(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)
	f.remote.setDown(true)

	w, err := f.ledger.AddWallet(ctx, model.Wallet{Name: "Cash"})
	require.NoError(t, err, "unavailable remote queues the write")
	_, ok := f.state.Wallets.Get(w.ID)
	assert.True(t, ok)

	pending, err := f.sync.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	f.remote.setDown(false)
	flushed, err := f.sync.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)

	_, err = f.sync.Wallets.Get(ctx, w.ID)
	require.NoError(t, err)
}

func TestLedger_Goals(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)

	g, err := f.ledger.AddGoal(ctx, model.Goal{Name: "Bike", TargetAmount: dec("300")})
	require.NoError(t, err)
	assert.Equal(t, model.PriorityMedium, g.Priority)
	assert.False(t, g.IsCompleted)

	g, err = f.ledger.AddToGoal(ctx, g.ID, dec("300"))
	require.NoError(t, err)
	assert.True(t, g.IsCompleted)

	target := dec("500")
	g, err = f.ledger.UpdateGoal(ctx, g.ID, model.GoalPatch{TargetAmount: &target})
	require.NoError(t, err)
	assert.False(t, g.IsCompleted, "raising the target reopens the goal")

	remote, err := f.sync.Goals.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, dec("500").Equal(remote.TargetAmount))

	require.NoError(t, f.ledger.DeleteGoal(ctx, g.ID))
	assert.Zero(t, f.state.Goals.Len())
}

func TestLedger_Bills(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)

	bill, err := f.ledger.AddBill(ctx, model.Bill{Name: "Rent", Amount: dec("900"), DueDate: testNow.AddDate(0, 0, 3)})
	require.NoError(t, err)
	assert.Equal(t, model.FrequencyOneTime, bill.Frequency)
	assert.Len(t, f.state.Bills.Upcoming(testNow), 1)

	paid, err := f.ledger.MarkBillPaid(ctx, bill.ID)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidDate)
	assert.Equal(t, testNow, *paid.PaidDate)
	assert.Empty(t, f.state.Bills.Upcoming(testNow))

	_, err = f.ledger.MarkBillPaid(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLedger_Holdings(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)

	inv, err := f.ledger.AddInvestment(ctx, model.Investment{
		Name:          "Index fund",
		Type:          model.InvestmentETF,
		PurchaseValue: dec("1000"),
		CurrentValue:  dec("1000"),
	})
	require.NoError(t, err)
	assert.Equal(t, testNow, inv.StartDate)

	value := dec("1250")
	_, err = f.ledger.UpdateInvestment(ctx, inv.ID, model.InvestmentPatch{CurrentValue: &value})
	require.NoError(t, err)
	assert.True(t, dec("250").Equal(f.state.Investments.TotalGains()))

	policy := model.LifeInsurance{
		PolicyName:       "Term",
		PremiumFrequency: model.FrequencyYearly,
		PremiumAmount:    dec("120"),
		CoverageAmount:   dec("100000"),
		StartDate:        testNow,
		EndDate:          testNow.AddDate(20, 0, 0),
		IsActive:         true,
		Beneficiaries: []model.Beneficiary{
			{Name: "A", Relationship: "spouse", Percentage: dec("60")},
			{Name: "B", Relationship: "child", Percentage: dec("30")},
		},
	}
	_, err = f.ledger.AddPolicy(ctx, policy)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Zero(t, f.state.Insurance.Len())

	policy.Beneficiaries[1].Percentage = dec("40")
	p, err := f.ledger.AddPolicy(ctx, policy)
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, p.Currency)

	require.NoError(t, f.ledger.DeletePolicy(ctx, p.ID))
	require.NoError(t, f.ledger.DeleteInvestment(ctx, inv.ID))
	assert.Zero(t, f.state.Insurance.Len())
	assert.Zero(t, f.state.Investments.Len())
}

func TestLedger_Summary(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)
	w := f.wallet(t, "Cash", model.WalletPersonal, "100")
	_, err := f.ledger.AddTransaction(ctx, expense(w.ID, "40"))
	require.NoError(t, err)
	_, err = f.ledger.AddBill(ctx, model.Bill{Name: "Phone", Amount: dec("30"), DueDate: testNow.AddDate(0, 0, -1)})
	require.NoError(t, err)

	s := f.ledger.Summary(testNow)
	assert.True(t, dec("60").Equal(s.Balance))
	assert.True(t, dec("40").Equal(s.Expense))
	assert.True(t, dec("30").Equal(s.Unpaid))
	assert.Len(t, s.OverdueBills, 1)
	assert.Empty(t, s.UpcomingBills)
	assert.Equal(t, 1, s.Wallets)
	assert.Equal(t, 1, s.Transactions)
}

func TestLedger_LoadRestoresLocalCopyWhenOffline(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)
	cash := f.wallet(t, "Cash", model.WalletPersonal, "100")
	f.wallet(t, "Stash", model.WalletSecret, "40")
	_, err := f.ledger.AddTransaction(ctx, expense(cash.ID, "5"))
	require.NoError(t, err)
	_, err = f.ledger.AddGoal(ctx, model.Goal{Name: "Bike", TargetAmount: dec("300")})
	require.NoError(t, err)

	f.remote.setDown(true)
	card := f.wallet(t, "Card", model.WalletPersonal, "10")

	f.state.Reset()
	counts := map[string]int{}
	err = f.ledger.Load(ctx, func(collection string, n int) { counts[collection] = n })
	require.ErrorIs(t, err, common.ErrUnavailable)

	assert.Equal(t, 2, counts["wallets"], "secret wallets are not part of the copy")
	assert.Equal(t, 3, f.state.Wallets.Len())
	_, ok := f.state.Wallets.Get(card.ID)
	assert.True(t, ok, "changes made offline survive")
	got, ok := f.state.Wallets.Get(cash.ID)
	require.True(t, ok)
	assert.True(t, dec("95").Equal(got.Balance))
	assert.Equal(t, 1, f.state.Transactions.Len())
	assert.Equal(t, 1, f.state.Goals.Len())
}

func TestLedger_WatchAppliesRemoteWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := signedIn(t)
	f.wallet(t, "Stash", model.WalletSecret, "40")

	var mu sync.Mutex
	seen := map[string]bool{}
	w, err := f.ledger.Watch(ctx, func(collection string) {
		mu.Lock()
		seen[collection] = true
		mu.Unlock()
	})
	require.NoError(t, err)
	defer w.Close()

	goal := model.Goal{
		ID: "g-remote", UserID: "alice", Name: "Trip", Currency: "USD",
		Priority: model.PriorityMedium, TargetAmount: dec("500"),
	}
	require.NoError(t, f.sync.Goals.Save(ctx, goal))
	require.NoError(t, f.sync.Wallets.Save(ctx, model.Wallet{
		ID: "w-remote", UserID: "alice", Name: "Bank", Type: model.WalletPersonal, Currency: "USD", Balance: dec("10"),
	}))

	require.Eventually(t, func() bool {
		_, goalOK := f.state.Goals.Get(goal.ID)
		_, walletOK := f.state.Wallets.Get("w-remote")
		return goalOK && walletOK
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, f.ledger.secretWalletIDs("alice"), 1, "secret wallets survive remote snapshots")
	mu.Lock()
	assert.True(t, seen["goals"])
	mu.Unlock()
}

func TestLedger_PayPremium(t *testing.T) {
	ctx := context.Background()
	f := signedIn(t)
	due := testNow.AddDate(0, 0, 5)
	p, err := f.ledger.AddPolicy(ctx, model.LifeInsurance{
		PolicyName: "Term", PremiumFrequency: model.FrequencyMonthly,
		PremiumAmount: dec("100"), CoverageAmount: dec("100000"),
		StartDate: testNow.AddDate(-1, 0, 0), EndDate: testNow.AddDate(10, 0, 0),
		NextPremiumDate: due, IsActive: true,
	})
	require.NoError(t, err)

	paid, err := f.ledger.PayPremium(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, due.AddDate(0, 1, 0), paid.NextPremiumDate)

	remote, err := f.sync.Insurance.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, paid.NextPremiumDate.Equal(remote.NextPremiumDate))

	inactive := false
	_, err = f.ledger.UpdatePolicy(ctx, p.ID, model.InsurancePatch{IsActive: &inactive})
	require.NoError(t, err)
	_, err = f.ledger.PayPremium(ctx, p.ID)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.ledger.PayPremium(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
