// Package store holds the authoritative in-memory collections for each
// entity type and answers aggregate queries over them.
//
// Every store is safe for concurrent use. Mutations are atomic: a failed
// mutation leaves the collection untouched.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/model"
)

// Clock returns the current time. Stores stamp UpdatedAt with it.
type Clock func() time.Time

// SystemClock is the default clock, in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// Collection is an ordered set of records keyed by id.
type Collection[T model.Record] struct {
	clock   Clock
	records []T
	mu      sync.RWMutex
}

// NewCollection creates an empty collection. A nil clock means SystemClock.
func NewCollection[T model.Record](clock Clock) *Collection[T] {
	if clock == nil {
		clock = SystemClock
	}
	return &Collection[T]{clock: clock}
}

// Now returns the collection's notion of the current time.
func (c *Collection[T]) Now() time.Time {
	return c.clock()
}

// ReplaceAll swaps the whole collection for records. It is used after a
// full load or a live snapshot; nothing is merged. When records repeats an
// id, the first occurrence wins.
func (c *Collection[T]) ReplaceAll(records []T) {
	next := make([]T, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, dup := seen[r.RecordID()]; dup {
			continue
		}
		seen[r.RecordID()] = struct{}{}
		next = append(next, r)
	}

	c.mu.Lock()
	c.records = next
	c.mu.Unlock()
}

// Insert appends record. An id already present is rejected with ErrDuplicateID.
func (c *Collection[T]) Insert(record T) error {
	return c.insert(record, false)
}

// Prepend inserts record at the front, with the same duplicate check as Insert.
func (c *Collection[T]) Prepend(record T) error {
	return c.insert(record, true)
}

func (c *Collection[T]) insert(record T, front bool) error {
	id := record.RecordID()
	if id == "" {
		return fmt.Errorf("%w: id", common.ErrMissingField)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexLocked(id) >= 0 {
		return fmt.Errorf("%w: %s", common.ErrDuplicateID, id)
	}
	if front {
		c.records = append([]T{record}, c.records...)
	} else {
		c.records = append(c.records, record)
	}
	return nil
}

// Update runs mutate on a copy of the record with the given id and stores
// the result. mutate receives the current time for timestamping.
// It returns ErrNotFound when id is absent.
func (c *Collection[T]) Update(id string, mutate func(*T, time.Time)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		var zero T
		return zero, fmt.Errorf("%w: %s", common.ErrNotFound, id)
	}
	rec := c.records[i]
	mutate(&rec, c.clock())
	c.records[i] = rec
	return rec, nil
}

// Mutate is like Update but lets mutate reject the change. On error the
// record is left as it was.
func (c *Collection[T]) Mutate(id string, mutate func(*T, time.Time) error) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	i := c.indexLocked(id)
	if i < 0 {
		return zero, fmt.Errorf("%w: %s", common.ErrNotFound, id)
	}
	rec := c.records[i]
	if err := mutate(&rec, c.clock()); err != nil {
		return zero, err
	}
	c.records[i] = rec
	return rec, nil
}

// Remove deletes the record with the given id and returns it. It returns
// ErrNotFound when id is absent.
func (c *Collection[T]) Remove(id string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		var zero T
		return zero, fmt.Errorf("%w: %s", common.ErrNotFound, id)
	}
	removed := c.records[i]
	c.records = append(c.records[:i:i], c.records[i+1:]...)
	return removed, nil
}

// Get returns the record with the given id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexLocked(id)
	if i < 0 {
		var zero T
		return zero, false
	}
	return c.records[i], true
}

// All returns a copy of every record in collection order.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, len(c.records))
	copy(out, c.records)
	return out
}

// Filter returns the records for which pred is true, in collection order.
func (c *Collection[T]) Filter(pred func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []T
	for _, r := range c.records {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of records.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// View runs fn with read access to the live slice. fn must not retain or
// modify it.
func (c *Collection[T]) View(fn func([]T)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.records)
}

// Batch runs fn on a copy of the records under the write lock and installs
// the slice it returns only when fn succeeds.
func (c *Collection[T]) Batch(fn func(records []T, now time.Time) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	work := make([]T, len(c.records))
	copy(work, c.records)
	next, err := fn(work, c.clock())
	if err != nil {
		return err
	}
	c.records = next
	return nil
}

func (c *Collection[T]) indexLocked(id string) int {
	return indexOf(c.records, id)
}

func indexOf[T model.Record](records []T, id string) int {
	for i := range records {
		if records[i].RecordID() == id {
			return i
		}
	}
	return -1
}
