package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/localstore"
	"github.com/HarshGadhecha/SpendWise/internal/service"
)

const (
	offlineQueueKey = localstore.KeyOfflineQueue
	lastSyncKey     = localstore.KeyLastSync
)

// Queued operations.
const (
	opSet    = "set"
	opDelete = "delete"
)

// pendingWrite is a remote write that failed because the remote was
// unavailable, kept in local storage until Flush replays it.
type pendingWrite struct {
	QueuedAt   time.Time        `json:"queuedAt"`
	Document   service.Document `json:"document,omitempty"`
	Op         string           `json:"op"`
	Collection string           `json:"collection"`
	ID         string           `json:"id"`
	Cause      string           `json:"cause,omitempty"`
}

// enqueue appends w to the offline queue. An earlier queued write to the
// same document is dropped, since replaying it would be overwritten anyway.
func (s *Service) enqueue(ctx context.Context, w pendingWrite) error {
	s.offline.Lock()
	defer s.offline.Unlock()

	queue, err := s.loadQueue(ctx)
	if err != nil {
		return err
	}
	w.QueuedAt = s.now()
	queue = append(dropWrites(queue, w.Collection, w.ID), w)
	if err := s.kv.Set(ctx, offlineQueueKey, queue); err != nil {
		return fmt.Errorf("failed to queue %s %s/%s: %w", w.Op, w.Collection, w.ID, err)
	}

	slog.Warn("Remote unavailable, write queued",
		"op", w.Op,
		"collection", w.Collection,
		"id", w.ID,
		"queued", len(queue))
	return nil
}

// forget drops queued writes to a document that was just written directly,
// so a later Flush cannot replay an older version over it.
func (s *Service) forget(ctx context.Context, collection, id string) error {
	s.offline.Lock()
	defer s.offline.Unlock()

	queue, err := s.loadQueue(ctx)
	if err != nil {
		return err
	}
	rest := dropWrites(queue, collection, id)
	switch {
	case len(rest) == len(queue):
		return nil
	case len(rest) == 0:
		err = s.kv.Delete(ctx, offlineQueueKey)
	default:
		err = s.kv.Set(ctx, offlineQueueKey, rest)
	}
	if err != nil {
		return fmt.Errorf("failed to update offline queue: %w", err)
	}
	return nil
}

func dropWrites(queue []pendingWrite, collection, id string) []pendingWrite {
	out := queue[:0:0]
	for _, w := range queue {
		if w.Collection != collection || w.ID != id {
			out = append(out, w)
		}
	}
	return out
}

func (s *Service) loadQueue(ctx context.Context) ([]pendingWrite, error) {
	var queue []pendingWrite
	if _, err := s.kv.Get(ctx, offlineQueueKey, &queue); err != nil {
		return nil, fmt.Errorf("failed to read offline queue: %w", err)
	}
	return queue, nil
}

// Pending returns the number of queued writes.
func (s *Service) Pending(ctx context.Context) (int, error) {
	s.offline.Lock()
	defer s.offline.Unlock()

	queue, err := s.loadQueue(ctx)
	return len(queue), err
}

// Flush replays queued writes in order, retrying transient failures. It
// stops at the first write that still fails and keeps it and everything
// after it queued. A complete flush of a non-empty queue records the sync
// time; an empty queue never reaches the remote and records nothing.
func (s *Service) Flush(ctx context.Context) (int, error) {
	s.offline.Lock()
	defer s.offline.Unlock()

	queue, err := s.loadQueue(ctx)
	if err != nil {
		return 0, err
	}

	flushed := 0
	var flushErr error
	for _, w := range queue {
		err := common.WithRetry(ctx, func() error {
			return s.replay(ctx, w)
		}, s.retry)
		if err != nil {
			flushErr = fmt.Errorf("failed to replay %s %s/%s: %w", w.Op, w.Collection, w.ID, err)
			break
		}
		flushed++
	}

	rest := queue[flushed:]
	if flushed > 0 {
		if len(rest) == 0 {
			err = s.kv.Delete(ctx, offlineQueueKey)
		} else {
			err = s.kv.Set(ctx, offlineQueueKey, rest)
		}
		if err != nil {
			return flushed, fmt.Errorf("failed to update offline queue: %w", err)
		}
	}
	if flushErr != nil {
		return flushed, flushErr
	}

	if flushed == 0 {
		return 0, nil
	}
	slog.Info("Flushed offline queue", "writes", flushed)
	return flushed, s.kv.Set(ctx, lastSyncKey, s.now())
}

func (s *Service) replay(ctx context.Context, w pendingWrite) error {
	switch w.Op {
	case opSet:
		return s.set(ctx, w.Collection, w.ID, w.Document)
	case opDelete:
		return s.delete(ctx, w.Collection, w.ID)
	default:
		slog.Warn("Dropping queued write with unknown op", "op", w.Op, "id", w.ID)
		return nil
	}
}
