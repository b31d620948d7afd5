package syncer

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/HarshGadhecha/SpendWise/internal/storage"
	"github.com/HarshGadhecha/SpendWise/internal/store"
)

var testNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// flakyRemote fails writes with err until it is cleared.
type flakyRemote struct {
	service.DocumentStore
	err error
	mu  sync.Mutex
}

func (f *flakyRemote) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *flakyRemote) failure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *flakyRemote) Set(ctx context.Context, collection, id string, doc service.Document) error {
	if err := f.failure(); err != nil {
		return err
	}
	return f.DocumentStore.Set(ctx, collection, id, doc)
}

func (f *flakyRemote) Delete(ctx context.Context, collection, id string) error {
	if err := f.failure(); err != nil {
		return err
	}
	return f.DocumentStore.Delete(ctx, collection, id)
}

type fixture struct {
	svc    *Service
	remote *flakyRemote
	kv     *localstore.Store
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	ctx := context.Background()

	backend, err := docstore.NewSQLiteStore(ctx, storage.MemoryPath)
	require.NoError(t, err)
	kv, err := localstore.Open(ctx, storage.MemoryPath, "")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = backend.Close()
		_ = kv.Close()
	})

	remote := &flakyRemote{DocumentStore: backend}
	svc := New(remote, kv, Config{
		Timeout: timeout,
		Now:     func() time.Time { return testNow },
		Retry:   common.RetryOptions{MaxAttempts: 1},
	})
	return &fixture{svc: svc, remote: remote, kv: kv}
}

func sampleTransaction(id string, date time.Time) model.Transaction {
	return model.Transaction{
		Timestamps: model.Timestamps{CreatedAt: testNow, UpdatedAt: testNow},
		ID:         id,
		UserID:     "u1",
		WalletID:   "w1",
		Type:       model.TransactionExpense,
		Category:   model.CategoryFood,
		Amount:     dec("12.5"),
		Date:       date,
	}
}

func assertSameJSON(t *testing.T, want, got any) {
	t.Helper()
	w, err := json.Marshal(want)
	require.NoError(t, err)
	g, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(w), string(g))
}

func TestCodec_RoundTripKeepsDatePrecision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	precise := time.Date(2026, 4, 2, 13, 14, 15, 123456789, time.UTC)
	end := precise.AddDate(1, 0, 0)

	tx := sampleTransaction("t1", precise)
	tx.IsRecurring = true
	tx.RecurringPattern = &model.RecurringPattern{Frequency: model.FrequencyMonthly, Interval: 1, EndDate: &end}
	tx.Tags = []string{"lunch"}
	require.NoError(t, f.svc.Transactions.Save(ctx, tx))

	doc, err := f.remote.Get(ctx, "transactions", "t1")
	require.NoError(t, err)
	ts, ok, err := docstore.AsTimestamp(doc["date"])
	require.NoError(t, err)
	require.True(t, ok, "dates travel as timestamps")
	assert.Equal(t, precise, ts.Time())

	got, err := f.svc.Transactions.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, precise, got.Date)
	require.NotNil(t, got.RecurringPattern)
	require.NotNil(t, got.RecurringPattern.EndDate)
	assert.Equal(t, end, *got.RecurringPattern.EndDate)
	assertSameJSON(t, tx, got)

	bill := model.Bill{
		ID: "b1", UserID: "u1", Name: "Rent", Frequency: model.FrequencyMonthly,
		Amount: dec("900"), DueDate: precise,
	}
	require.NoError(t, f.svc.Bills.Save(ctx, bill))
	gotBill, err := f.svc.Bills.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, gotBill.PaidDate, "absent optional dates stay absent")
	assertSameJSON(t, bill, gotBill)

	paid := precise.Add(time.Hour)
	bill.PaidDate = &paid
	bill.IsPaid = true
	require.NoError(t, f.svc.Bills.Save(ctx, bill))
	gotBill, err = f.svc.Bills.Get(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, gotBill.PaidDate)
	assert.Equal(t, paid, *gotBill.PaidDate)

	goal := model.Goal{
		ID: "g1", UserID: "u1", Name: "Bike", Currency: "USD", Priority: model.PriorityHigh,
		TargetAmount: dec("500"),
	}
	require.NoError(t, f.svc.Goals.Save(ctx, goal))
	gotGoal, err := f.svc.Goals.Get(ctx, "g1")
	require.NoError(t, err)
	assertSameJSON(t, goal, gotGoal)
}

func TestRepo_GetMissing(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.svc.Wallets.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRepo_SaveIsIdempotentAndLoadAllOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	older := sampleTransaction("old", testNow.Add(-48*time.Hour))
	newer := sampleTransaction("new", testNow.Add(-time.Hour))
	other := sampleTransaction("other", testNow)
	other.UserID = "u2"

	require.NoError(t, f.svc.Transactions.Save(ctx, older))
	require.NoError(t, f.svc.Transactions.Save(ctx, newer))
	require.NoError(t, f.svc.Transactions.Save(ctx, newer))
	require.NoError(t, f.svc.Transactions.Save(ctx, other))

	got, err := f.svc.Transactions.LoadAll(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID, "newest first")
	assert.Equal(t, "old", got[1].ID)
}

func TestRepo_SubscribeDeliversUntilClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	var (
		mu        sync.Mutex
		snapshots [][]model.Goal
	)
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(snapshots)
	}

	sub, err := f.svc.Goals.Subscribe(ctx, "u1", func(goals []model.Goal) {
		mu.Lock()
		defer mu.Unlock()
		snapshots = append(snapshots, goals)
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return count() == 1 }, time.Second, 5*time.Millisecond)

	goal := model.Goal{ID: "g1", UserID: "u1", Name: "Trip", Currency: "USD", TargetAmount: dec("100")}
	require.NoError(t, f.svc.Goals.Save(ctx, goal))
	require.Eventually(t, func() bool { return count() == 2 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	last := snapshots[len(snapshots)-1]
	mu.Unlock()
	require.Len(t, last, 1)
	assert.Equal(t, "Trip", last[0].Name)

	sub.Close()
	sub.Close()

	goal.ID = "g2"
	require.NoError(t, f.svc.Goals.Save(ctx, goal))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, count())
}

func TestRepo_BindReplacesStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	wallets := store.NewWalletStore(nil)
	require.NoError(t, wallets.Insert(model.Wallet{ID: "stale", UserID: "u1", Currency: "USD"}))

	sub, err := f.svc.Wallets.Bind(ctx, "u1", wallets)
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return wallets.Len() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.svc.Wallets.Save(ctx, model.Wallet{
		ID: "w1", UserID: "u1", Name: "Cash", Currency: "USD", Balance: dec("10"),
	}))
	require.Eventually(t, func() bool { return wallets.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, dec("10").Equal(wallets.TotalBalance()))
}

func TestService_OfflineQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.remote.fail(common.Unavailable("test", errors.New("offline")))

	tx := sampleTransaction("t1", testNow)
	queued, err := f.svc.Transactions.SaveOrQueue(ctx, tx)
	require.NoError(t, err)
	assert.True(t, queued)

	queued, err = f.svc.Wallets.DeleteOrQueue(ctx, "w9")
	require.NoError(t, err)
	assert.True(t, queued)

	n, err := f.svc.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.svc.Flush(ctx)
	assert.ErrorIs(t, err, common.ErrUnavailable)
	n, err = f.svc.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "failed flush keeps the queue")

	_, ok, err := f.svc.LastSync(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	f.remote.fail(nil)
	flushed, err := f.svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, flushed)

	got, err := f.svc.Transactions.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, testNow, got.Date)

	n, err = f.svc.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	last, ok, err := f.svc.LastSync(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, testNow, last)
}

func TestService_SaveOrQueuePassesPermanentErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.remote.fail(common.Remote("test", errors.New("permission denied")))

	queued, err := f.svc.Wallets.SaveOrQueue(ctx, model.Wallet{ID: "w1", UserID: "u1"})
	assert.False(t, queued)
	assert.ErrorIs(t, err, common.ErrRemote)

	n, err := f.svc.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// blockingRemote never answers writes before the caller gives up.
type blockingRemote struct {
	service.DocumentStore
}

func (blockingRemote) Set(ctx context.Context, _, _ string, _ service.Document) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestService_RemoteCallsTimeOut(t *testing.T) {
	f := newFixture(t, 0)
	svc := New(blockingRemote{DocumentStore: f.remote}, f.kv, Config{Timeout: 20 * time.Millisecond})

	start := time.Now()
	err := svc.Wallets.Save(context.Background(), model.Wallet{ID: "w1", UserID: "u1"})
	assert.ErrorIs(t, err, common.ErrTimeout)
	assert.NotErrorIs(t, err, common.ErrUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestService_PullAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	require.NoError(t, f.svc.Wallets.Save(ctx, model.Wallet{ID: "w1", UserID: "u1", Currency: "USD", Balance: dec("100")}))
	require.NoError(t, f.svc.Wallets.Save(ctx, model.Wallet{ID: "w2", UserID: "u1", Currency: "USD", Balance: dec("50")}))
	require.NoError(t, f.svc.Transactions.Save(ctx, sampleTransaction("t1", testNow)))
	require.NoError(t, f.svc.Budgets.Save(ctx, model.Budget{
		ID: "b1", UserID: "u1", Category: model.CategoryFood, Amount: dec("100"),
		Period: model.PeriodMonthly, StartDate: testNow, EndDate: testNow.AddDate(0, 1, 0),
	}))

	st := store.NewState(nil)
	loaded := map[string]int{}
	require.NoError(t, f.svc.PullAll(ctx, "u1", st, func(collection string, n int) {
		loaded[collection] = n
	}))

	assert.Equal(t, 2, loaded["wallets"])
	assert.Equal(t, 1, loaded["transactions"])
	assert.Equal(t, 0, loaded["insurance"])
	assert.Len(t, loaded, 7)
	assert.True(t, dec("150").Equal(st.Wallets.TotalBalance()))
	assert.Equal(t, 1, st.Budgets.Len())

	_, ok, err := f.svc.LastSync(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWriteQueue_SerializesPerKey(t *testing.T) {
	ctx := context.Background()
	q := newWriteQueue()

	var (
		mu    sync.Mutex
		order []int
	)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = q.run(ctx, "k", func() error {
			close(started)
			<-release
			mu.Lock()
			order = append(order, 1)
			mu.Unlock()
			return nil
		})
	}()
	<-started

	var wg sync.WaitGroup
	for i := 2; i <= 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = q.run(ctx, "k", func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
		time.Sleep(10 * time.Millisecond)
	}

	// Another key is not held up.
	require.NoError(t, q.run(ctx, "other", func() error { return nil }))

	close(release)
	wg.Wait()
	assert.Equal(t, []int{1, 2, 3, 4}, order)
	assert.Zero(t, q.pending())
}

func TestWriteQueue_CancelWhileWaiting(t *testing.T) {
	q := newWriteQueue()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = q.run(context.Background(), "k", func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := q.run(ctx, "k", func() error { ran = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)

	close(release)
	require.NoError(t, q.run(context.Background(), "k", func() error { return nil }))
	require.Eventually(t, func() bool { return q.pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestService_FlushEmptyQueueLeavesLastSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.remote.fail(common.Unavailable("test", errors.New("offline")))

	flushed, err := f.svc.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, flushed)

	_, ok, err := f.svc.LastSync(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "nothing reached the remote")
}

func TestService_OfflineQueueKeepsLatestWritePerDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	f.remote.fail(common.Unavailable("test", errors.New("offline")))

	for _, balance := range []string{"10", "20", "30"} {
		_, err := f.svc.Wallets.SaveOrQueue(ctx, model.Wallet{ID: "w1", UserID: "u1", Currency: "USD", Balance: dec(balance)})
		require.NoError(t, err)
	}
	_, err := f.svc.Goals.DeleteOrQueue(ctx, "g1")
	require.NoError(t, err)

	n, err := f.svc.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f.remote.fail(nil)
	flushed, err := f.svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, flushed)

	got, err := f.svc.Wallets.Get(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, dec("30").Equal(got.Balance))
}

func TestService_DirectWriteDropsQueuedVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	f.remote.fail(common.Unavailable("test", errors.New("offline")))
	_, err := f.svc.Wallets.SaveOrQueue(ctx, model.Wallet{ID: "w1", UserID: "u1", Currency: "USD", Balance: dec("10")})
	require.NoError(t, err)
	_, err = f.svc.Wallets.SaveOrQueue(ctx, model.Wallet{ID: "w2", UserID: "u1", Currency: "USD", Balance: dec("5")})
	require.NoError(t, err)

	f.remote.fail(nil)
	queued, err := f.svc.Wallets.SaveOrQueue(ctx, model.Wallet{ID: "w1", UserID: "u1", Currency: "USD", Balance: dec("99")})
	require.NoError(t, err)
	assert.False(t, queued)

	n, err := f.svc.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only w2 is still waiting")

	_, err = f.svc.Flush(ctx)
	require.NoError(t, err)
	got, err := f.svc.Wallets.Get(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, dec("99").Equal(got.Balance))
}

func TestRepo_CachedAppliesQueuedWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	wallets := []model.Wallet{
		{ID: "w1", UserID: "u1", Name: "Cash", Currency: "USD", Balance: dec("100")},
		{ID: "w2", UserID: "u1", Name: "Bank", Currency: "USD", Balance: dec("50")},
		{ID: "w9", UserID: "u2", Name: "Other", Currency: "USD", Balance: dec("1")},
	}
	require.NoError(t, f.svc.Wallets.Cache(ctx, "u1", wallets))

	f.remote.fail(common.Unavailable("test", errors.New("offline")))
	_, err := f.svc.Wallets.SaveOrQueue(ctx, model.Wallet{ID: "w3", UserID: "u1", Name: "Card", Currency: "USD", Balance: dec("7")})
	require.NoError(t, err)
	_, err = f.svc.Wallets.DeleteOrQueue(ctx, "w2")
	require.NoError(t, err)

	got, ok, err := f.svc.Wallets.Cached(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	ids := make([]string, 0, len(got))
	for _, w := range got {
		ids = append(ids, w.ID)
	}
	assert.ElementsMatch(t, []string{"w1", "w3"}, ids)

	_, ok, err = f.svc.Wallets.Cached(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, ok, "the copy belongs to u1")
}

func TestService_RestoreAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	require.NoError(t, f.svc.Wallets.Cache(ctx, "u1", []model.Wallet{
		{ID: "w1", UserID: "u1", Name: "Cash", Currency: "USD", Balance: dec("100")},
	}))
	require.NoError(t, f.svc.Transactions.Cache(ctx, "u1", []model.Transaction{sampleTransaction("t1", testNow)}))

	st := store.NewState(nil)
	require.NoError(t, st.Goals.Insert(model.Goal{ID: "stale", UserID: "u1", Name: "Old", Currency: "USD", TargetAmount: dec("1")}))

	loaded := map[string]int{}
	require.NoError(t, f.svc.RestoreAll(ctx, "u1", st, func(collection string, n int) {
		loaded[collection] = n
	}))

	assert.Len(t, loaded, Collections)
	assert.Equal(t, 1, loaded["wallets"])
	assert.True(t, dec("100").Equal(st.Wallets.TotalBalance()))
	assert.Equal(t, 1, st.Transactions.Len())
	assert.Zero(t, st.Goals.Len(), "collections without a copy are emptied")

	_, ok, err := f.svc.LastSync(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "restoring is not a sync")
}

func TestWriteQueue_DeadlineWhileWaitingIsTimeout(t *testing.T) {
	q := newWriteQueue()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = q.run(context.Background(), "k", func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.run(ctx, "k", func() error { return nil })
	assert.ErrorIs(t, err, common.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
