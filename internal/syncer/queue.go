package syncer

import (
	"context"
	"errors"
	"sync"

	"github.com/HarshGadhecha/SpendWise/internal/common"
)

// writeQueue runs writes for the same key one at a time, in the order they
// were submitted. Writes for different keys run concurrently.
type writeQueue struct {
	tails map[string]chan struct{}
	mu    sync.Mutex
}

func newWriteQueue() *writeQueue {
	return &writeQueue{tails: make(map[string]chan struct{})}
}

// run waits for every earlier write on key, then calls fn. If ctx ends while
// waiting, fn is skipped and the context error is returned, a deadline
// classified as common.ErrTimeout; later writes still wait for the earlier
// ones.
func (q *writeQueue) run(ctx context.Context, key string, fn func() error) error {
	done := make(chan struct{})

	q.mu.Lock()
	prev := q.tails[key]
	q.tails[key] = done
	q.mu.Unlock()

	finish := func() {
		close(done)
		q.mu.Lock()
		if q.tails[key] == done {
			delete(q.tails, key)
		}
		q.mu.Unlock()
	}

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			go func() {
				<-prev
				finish()
			}()
			err := ctx.Err()
			if errors.Is(err, context.DeadlineExceeded) {
				return common.ClassifyRemote("wait for earlier write to "+key, err)
			}
			return err
		}
	}

	defer finish()
	return fn()
}

// pending reports how many keys have writes queued or running.
func (q *writeQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tails)
}
