package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/localstore"
	"github.com/HarshGadhecha/SpendWise/internal/model"
	"github.com/HarshGadhecha/SpendWise/internal/service"
	"github.com/HarshGadhecha/SpendWise/internal/store"
)

// snapshot is the device's last known copy of one owner's collection.
type snapshot[T model.Record] struct {
	SavedAt time.Time `json:"savedAt"`
	Owner   string    `json:"owner"`
	Records []T       `json:"records"`
}

func cacheKey(collection string) string {
	return localstore.KeyCachePrefix + collection
}

// Cache keeps records as owner's local copy of the collection, replacing
// the previous copy. Records of other owners are left out.
func (r *Repo[T]) Cache(ctx context.Context, owner string, records []T) error {
	snap := snapshot[T]{SavedAt: r.svc.now(), Owner: owner, Records: make([]T, 0, len(records))}
	for _, rec := range records {
		if rec.OwnerID() == owner {
			snap.Records = append(snap.Records, rec)
		}
	}
	if err := r.svc.kv.Set(ctx, cacheKey(r.codec.Collection), snap); err != nil {
		return fmt.Errorf("failed to cache %s: %w", r.codec.Collection, err)
	}
	return nil
}

// Cached returns owner's local copy of the collection with the queued
// writes made since it was taken applied on top. ok is false when the
// device holds no copy for owner.
func (r *Repo[T]) Cached(ctx context.Context, owner string) (records []T, ok bool, err error) {
	var snap snapshot[T]
	found, err := r.svc.kv.Get(ctx, cacheKey(r.codec.Collection), &snap)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached %s: %w", r.codec.Collection, err)
	}
	if !found || snap.Owner != owner {
		return nil, false, nil
	}

	r.svc.offline.Lock()
	queue, err := r.svc.loadQueue(ctx)
	r.svc.offline.Unlock()
	if err != nil {
		return nil, false, err
	}

	records = snap.Records
	for _, w := range queue {
		if w.Collection != r.codec.Collection || w.QueuedAt.Before(snap.SavedAt) {
			continue
		}
		records = without(records, w.ID)
		if w.Op != opSet || w.Document[service.OwnerField] != owner {
			continue
		}
		rec, err := r.codec.Decode(w.Document)
		if err != nil {
			slog.Warn("Skipping undecodable queued write", "collection", w.Collection, "id", w.ID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, true, nil
}

func without[T model.Record](records []T, id string) []T {
	out := records[:0:0]
	for _, rec := range records {
		if rec.RecordID() != id {
			out = append(out, rec)
		}
	}
	return out
}

// RestoreAll fills st from the local copies of owner's collections, the
// offline counterpart of PullAll. Collections without a copy are emptied.
// loaded is called like in PullAll.
func (s *Service) RestoreAll(ctx context.Context, owner string, st *store.State, loaded func(collection string, n int)) error {
	if loaded == nil {
		loaded = func(string, int) {}
	}

	steps := []struct {
		restore    func() (int, error)
		collection string
	}{
		{collection: WalletCodec.Collection, restore: restoreInto(ctx, s.Wallets, owner, st.Wallets)},
		{collection: TransactionCodec.Collection, restore: restoreInto(ctx, s.Transactions, owner, st.Transactions)},
		{collection: BudgetCodec.Collection, restore: restoreInto(ctx, s.Budgets, owner, st.Budgets)},
		{collection: GoalCodec.Collection, restore: restoreInto(ctx, s.Goals, owner, st.Goals)},
		{collection: BillCodec.Collection, restore: restoreInto(ctx, s.Bills, owner, st.Bills)},
		{collection: InvestmentCodec.Collection, restore: restoreInto(ctx, s.Investments, owner, st.Investments)},
		{collection: InsuranceCodec.Collection, restore: restoreInto(ctx, s.Insurance, owner, st.Insurance)},
	}

	for _, step := range steps {
		n, err := step.restore()
		if err != nil {
			return err
		}
		loaded(step.collection, n)
	}
	return nil
}

func restoreInto[T model.Record](ctx context.Context, repo *Repo[T], owner string, dst Replacer[T]) func() (int, error) {
	return func() (int, error) {
		records, _, err := repo.Cached(ctx, owner)
		if err != nil {
			return 0, err
		}
		dst.ReplaceAll(records)
		return len(records), nil
	}
}
