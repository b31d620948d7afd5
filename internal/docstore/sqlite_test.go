package docstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/service"
	"github.com/HarshGadhecha/SpendWise/internal/storage"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ids(docs []service.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID())
	}
	return out
}

// recorder collects live query snapshots.
type recorder struct {
	snapshots [][]service.Document
	mu        sync.Mutex
}

func (r *recorder) record(docs []service.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, docs)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recorder) last() []service.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

// documentStoreContract runs the behavior every backend must share. other
// writes documents on behalf of a second user.
func documentStoreContract(t *testing.T, s, other service.DocumentStore) {
	ctx := context.Background()
	t1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	doc := func(id, owner string, date time.Time) service.Document {
		return service.Document{
			"id":     id,
			"userId": owner,
			"amount": "12.50",
			"date":   TimestampOf(date),
		}
	}

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "transactions", "a", doc("a", "u1", t1)))
		got, err := s.Get(ctx, "transactions", "a")
		require.NoError(t, err)
		assert.Equal(t, "a", got.ID())
		assert.Equal(t, "12.50", got["amount"])

		ts, ok, err := AsTimestamp(got["date"])
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, t1, ts.Time())
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, "transactions", "nope")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("set is idempotent", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "transactions", "a", doc("a", "u1", t1)))
		require.NoError(t, s.Set(ctx, "transactions", "a", doc("a", "u1", t1)))
		docs, err := s.Query(ctx, service.Query{Collection: "transactions", OwnerID: "u1"})
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("query scopes and orders", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "transactions", "b", doc("b", "u1", t1.Add(2*time.Hour))))
		require.NoError(t, s.Set(ctx, "transactions", "c", doc("c", "u1", t1.Add(time.Hour))))
		require.NoError(t, other.Set(ctx, "transactions", "x", doc("x", "u2", t1)))
		require.NoError(t, s.Set(ctx, "wallets", "w", doc("w", "u1", t1)))

		docs, err := s.Query(ctx, service.Query{Collection: "transactions", OwnerID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, ids(docs), "insertion order")

		docs, err = s.Query(ctx, service.Query{
			Collection: "transactions", OwnerID: "u1", OrderBy: "date", Descending: true,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c", "a"}, ids(docs))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "transactions", "c"))
		require.NoError(t, s.Delete(ctx, "transactions", "c"), "deleting twice is fine")
		_, err := s.Get(ctx, "transactions", "c")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("rejects empty keys", func(t *testing.T) {
		assert.ErrorIs(t, s.Set(ctx, "", "a", service.Document{}), common.ErrValidation)
		_, err := s.Query(ctx, service.Query{Collection: "wallets"})
		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestSQLiteStore_Contract(t *testing.T) {
	s := newTestSQLite(t)
	documentStoreContract(t, s, s)
}

func TestSQLiteStore_ListenDeliversSnapshotsUntilStopped(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	q := service.Query{Collection: "goals", OwnerID: "u1"}

	var rec recorder
	stop, err := s.Listen(ctx, q, rec.record)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, rec.last(), "initial snapshot is empty")

	require.NoError(t, s.Set(ctx, "goals", "g1", service.Document{"id": "g1", "userId": "u1"}))
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"g1"}, ids(rec.last()))

	// Changes for other owners do not wake the listener.
	require.NoError(t, s.Set(ctx, "goals", "g9", service.Document{"id": "g9", "userId": "u2"}))

	stop()
	stop()
	require.NoError(t, s.Set(ctx, "goals", "g2", service.Document{"id": "g2", "userId": "u1"}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, rec.count())
}

func TestSQLiteStore_ListenStopsOnContextCancel(t *testing.T) {
	s := newTestSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())

	var rec recorder
	_, err := s.Listen(ctx, service.Query{Collection: "bills", OwnerID: "u1"}, rec.record)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Set(context.Background(), "bills", "b", service.Document{"id": "b", "userId": "u1"}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestSQLiteStore_OwnerMoveNotifiesBoth(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	require.NoError(t, s.Set(ctx, "wallets", "w", service.Document{"id": "w", "userId": "u1"}))

	var rec recorder
	stop, err := s.Listen(ctx, service.Query{Collection: "wallets", OwnerID: "u1"}, rec.record)
	require.NoError(t, err)
	defer stop()
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Set(ctx, "wallets", "w", service.Document{"id": "w", "userId": "u2"}))
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, rec.last())
}

func TestAsTimestamp(t *testing.T) {
	want := time.Date(2026, 2, 3, 4, 5, 6, 789, time.UTC)
	raw, err := json.Marshal(TimestampOf(want))
	require.NoError(t, err)
	decoded, err := decodeDocument([]byte(`{"d":` + string(raw) + `}`))
	require.NoError(t, err)

	tests := []struct {
		value  any
		name   string
		ok     bool
		errMsg string
	}{
		{name: "value", value: TimestampOf(want), ok: true},
		{name: "pointer", value: func() *Timestamp { ts := TimestampOf(want); return &ts }(), ok: true},
		{name: "decoded json", value: decoded["d"], ok: true},
		{name: "float map", value: map[string]any{"seconds": float64(want.Unix()), "nanos": float64(789)}, ok: true},
		{name: "string", value: "2026-02-03", ok: false},
		{name: "other map", value: map[string]any{"x": 1}, ok: false},
		{name: "bad nanos", value: map[string]any{"seconds": float64(1), "nanos": float64(2e9)}, ok: true, errMsg: "out of range"},
		{name: "fractional seconds", value: map[string]any{"seconds": 1.5}, ok: true, errMsg: "not an integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok, err := AsTimestamp(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			if ok {
				assert.Equal(t, want, ts.Time())
			}
		})
	}
}

func TestSortDocuments(t *testing.T) {
	docs := []service.Document{
		{"id": "a", "n": json.Number("3")},
		{"id": "b"},
		{"id": "c", "n": json.Number("1")},
		{"id": "d", "n": json.Number("3")},
	}
	sortDocuments(docs, "n", false)
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids(docs))

	sortDocuments(docs, "n", true)
	assert.Equal(t, []string{"a", "d", "c", "b"}, ids(docs))
}
