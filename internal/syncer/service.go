package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/model"
	"github.com/HarshGadhecha/SpendWise/internal/service"
	"github.com/HarshGadhecha/SpendWise/internal/store"
)

// DefaultTimeout bounds every remote call when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Collections is the number of collections PullAll loads.
const Collections = 7

// Config tunes a Service.
type Config struct {
	Now     func() time.Time
	Retry   common.RetryOptions
	Timeout time.Duration
}

// Service talks to the remote document store on behalf of the entity stores.
type Service struct {
	remote  service.DocumentStore
	kv      service.KeyValueStore
	queue   *writeQueue
	now     func() time.Time
	retry   common.RetryOptions
	timeout time.Duration
	// offline guards read-modify-write of the offline queue key.
	offline sync.Mutex

	Wallets      *Repo[model.Wallet]
	Transactions *Repo[model.Transaction]
	Budgets      *Repo[model.Budget]
	Goals        *Repo[model.Goal]
	Bills        *Repo[model.Bill]
	Investments  *Repo[model.Investment]
	Insurance    *Repo[model.LifeInsurance]
	Users        *Repo[model.User]
}

// New creates a Service. kv holds the offline queue and sync bookkeeping.
func New(remote service.DocumentStore, kv service.KeyValueStore, cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = store.SystemClock
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = common.DefaultRetryOptions()
	}

	s := &Service{
		remote:  remote,
		kv:      kv,
		queue:   newWriteQueue(),
		now:     cfg.Now,
		retry:   cfg.Retry,
		timeout: cfg.Timeout,
	}
	s.Wallets = NewRepo(s, WalletCodec)
	s.Transactions = NewRepo(s, TransactionCodec)
	s.Budgets = NewRepo(s, BudgetCodec)
	s.Goals = NewRepo(s, GoalCodec)
	s.Bills = NewRepo(s, BillCodec)
	s.Investments = NewRepo(s, InvestmentCodec)
	s.Insurance = NewRepo(s, InsuranceCodec)
	s.Users = NewRepo(s, UserCodec)
	return s
}

// call runs fn under the remote timeout and classifies its error.
func (s *Service) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return common.ClassifyRemote(op, fn(ctx))
}

// set writes doc through the per-record write queue.
func (s *Service) set(ctx context.Context, collection, id string, doc service.Document) error {
	return s.queue.run(ctx, collection+"/"+id, func() error {
		return s.call(ctx, "save "+collection, func(ctx context.Context) error {
			return s.remote.Set(ctx, collection, id, doc)
		})
	})
}

func (s *Service) delete(ctx context.Context, collection, id string) error {
	return s.queue.run(ctx, collection+"/"+id, func() error {
		return s.call(ctx, "delete "+collection, func(ctx context.Context) error {
			return s.remote.Delete(ctx, collection, id)
		})
	})
}

// PullAll loads every collection owned by owner into st. loaded, when not
// nil, is called after each collection with the number of records.
func (s *Service) PullAll(ctx context.Context, owner string, st *store.State, loaded func(collection string, n int)) error {
	if loaded == nil {
		loaded = func(string, int) {}
	}

	steps := []struct {
		pull       func() (int, error)
		collection string
	}{
		{collection: WalletCodec.Collection, pull: pullInto(ctx, s.Wallets, owner, st.Wallets)},
		{collection: TransactionCodec.Collection, pull: pullInto(ctx, s.Transactions, owner, st.Transactions)},
		{collection: BudgetCodec.Collection, pull: pullInto(ctx, s.Budgets, owner, st.Budgets)},
		{collection: GoalCodec.Collection, pull: pullInto(ctx, s.Goals, owner, st.Goals)},
		{collection: BillCodec.Collection, pull: pullInto(ctx, s.Bills, owner, st.Bills)},
		{collection: InvestmentCodec.Collection, pull: pullInto(ctx, s.Investments, owner, st.Investments)},
		{collection: InsuranceCodec.Collection, pull: pullInto(ctx, s.Insurance, owner, st.Insurance)},
	}

	for _, step := range steps {
		n, err := step.pull()
		if err != nil {
			return fmt.Errorf("failed to pull %s: %w", step.collection, err)
		}
		loaded(step.collection, n)
	}

	return s.kv.Set(ctx, lastSyncKey, s.now())
}

// Replacer is the part of an entity store a live subscription writes into.
type Replacer[T model.Record] interface {
	ReplaceAll(records []T)
}

func pullInto[T model.Record](ctx context.Context, repo *Repo[T], owner string, dst Replacer[T]) func() (int, error) {
	return func() (int, error) {
		records, err := repo.LoadAll(ctx, owner)
		if err != nil {
			return 0, err
		}
		dst.ReplaceAll(records)
		return len(records), nil
	}
}

// LastSync returns when the offline queue was last flushed or the stores
// last pulled. ok is false if that never happened.
func (s *Service) LastSync(ctx context.Context) (time.Time, bool, error) {
	var t time.Time
	ok, err := s.kv.Get(ctx, lastSyncKey, &t)
	return t, ok, err
}

// Subscription is a live query. Close stops it; closing twice is harmless.
type Subscription struct {
	stop func()
	once sync.Once
}

// Close stops delivery. No callback runs after Close returns.
func (sub *Subscription) Close() {
	sub.once.Do(sub.stop)
}

// Repo reads and writes one entity type.
type Repo[T model.Record] struct {
	svc   *Service
	codec Codec[T]
}

// NewRepo binds codec to svc.
func NewRepo[T model.Record](svc *Service, codec Codec[T]) *Repo[T] {
	return &Repo[T]{svc: svc, codec: codec}
}

// Collection returns the remote collection name.
func (r *Repo[T]) Collection() string {
	return r.codec.Collection
}

// Save upserts rec. Saving the same record twice leaves one document.
func (r *Repo[T]) Save(ctx context.Context, rec T) error {
	doc, err := r.codec.Encode(rec)
	if err != nil {
		return err
	}
	return r.svc.set(ctx, r.codec.Collection, rec.RecordID(), doc)
}

// SaveOrQueue saves rec, or queues the write for Flush when the remote is
// unavailable. queued reports the latter; err is then nil.
func (r *Repo[T]) SaveOrQueue(ctx context.Context, rec T) (queued bool, err error) {
	doc, err := r.codec.Encode(rec)
	if err != nil {
		return false, err
	}
	err = r.svc.set(ctx, r.codec.Collection, rec.RecordID(), doc)
	if err == nil {
		return false, r.svc.forget(ctx, r.codec.Collection, rec.RecordID())
	}
	if !errors.Is(err, common.ErrUnavailable) {
		return false, err
	}
	return true, r.svc.enqueue(ctx, pendingWrite{
		Op:         opSet,
		Collection: r.codec.Collection,
		ID:         rec.RecordID(),
		Document:   doc,
		Cause:      err.Error(),
	})
}

// Get fetches one record. A missing record is common.ErrNotFound.
func (r *Repo[T]) Get(ctx context.Context, id string) (T, error) {
	var rec T
	var doc service.Document
	err := r.svc.call(ctx, "get "+r.codec.Collection, func(ctx context.Context) error {
		var err error
		doc, err = r.svc.remote.Get(ctx, r.codec.Collection, id)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return rec, err
	}
	if doc == nil {
		return rec, fmt.Errorf("%w: %s/%s", common.ErrNotFound, r.codec.Collection, id)
	}
	return r.decode(doc)
}

// LoadAll returns every record owned by owner in the collection's order.
func (r *Repo[T]) LoadAll(ctx context.Context, owner string) ([]T, error) {
	var docs []service.Document
	err := r.svc.call(ctx, "load "+r.codec.Collection, func(ctx context.Context) error {
		var err error
		docs, err = r.svc.remote.Query(ctx, r.codec.query(owner))
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		rec, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Subscribe delivers the full set of owner's records now and after every
// change until the subscription is closed or ctx ends. Documents that fail
// to decode are logged and left out of the snapshot.
func (r *Repo[T]) Subscribe(ctx context.Context, owner string, fn func([]T)) (*Subscription, error) {
	stop, err := r.svc.remote.Listen(ctx, r.codec.query(owner), func(docs []service.Document) {
		records := make([]T, 0, len(docs))
		for _, doc := range docs {
			rec, err := r.codec.Decode(doc)
			if err != nil {
				slog.Warn("Skipping undecodable document",
					"collection", r.codec.Collection,
					"id", doc.ID(),
					"error", err)
				continue
			}
			records = append(records, rec)
		}
		fn(records)
	})
	if err != nil {
		return nil, common.ClassifyRemote("subscribe "+r.codec.Collection, err)
	}
	return &Subscription{stop: stop}, nil
}

// Bind subscribes dst to owner's records: each snapshot replaces its
// contents.
func (r *Repo[T]) Bind(ctx context.Context, owner string, dst Replacer[T]) (*Subscription, error) {
	return r.Subscribe(ctx, owner, dst.ReplaceAll)
}

// Delete removes the remote document only. Deleting a missing document is
// not an error.
func (r *Repo[T]) Delete(ctx context.Context, id string) error {
	return r.svc.delete(ctx, r.codec.Collection, id)
}

// DeleteOrQueue is Delete with the offline fallback of SaveOrQueue.
func (r *Repo[T]) DeleteOrQueue(ctx context.Context, id string) (queued bool, err error) {
	err = r.svc.delete(ctx, r.codec.Collection, id)
	if err == nil {
		return false, r.svc.forget(ctx, r.codec.Collection, id)
	}
	if !errors.Is(err, common.ErrUnavailable) {
		return false, err
	}
	return true, r.svc.enqueue(ctx, pendingWrite{
		Op:         opDelete,
		Collection: r.codec.Collection,
		ID:         id,
		Cause:      err.Error(),
	})
}

func (r *Repo[T]) decode(doc service.Document) (T, error) {
	rec, err := r.codec.Decode(doc)
	if err != nil {
		return rec, common.Remote("decode "+r.codec.Collection, err)
	}
	return rec, nil
}
