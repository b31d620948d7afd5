package docstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/HarshGadhecha/SpendWise/internal/service"
)

// topic identifies the result set a live query watches.
type topic struct {
	collection string
	owner      string
}

// changeHub fans change signals out to live queries. Signals carry no data;
// a listener re-runs its query on every signal. Pending signals coalesce.
type changeHub struct {
	subscribers map[topic]map[chan struct{}]struct{}
	mu          sync.RWMutex
}

func newChangeHub() *changeHub {
	return &changeHub{
		subscribers: make(map[topic]map[chan struct{}]struct{}),
	}
}

// subscribe registers for changes on t and returns the signal channel and a
// function that unregisters and closes it.
func (h *changeHub) subscribe(t topic) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[t]
	if !ok {
		subs = make(map[chan struct{}]struct{})
		h.subscribers[t] = subs
	}
	subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			if subs, exists := h.subscribers[t]; exists {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(h.subscribers, t)
				}
			}
			close(ch)
		})
	}
}

// publish signals every listener on t without blocking.
func (h *changeHub) publish(t topic) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[t] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// listener guarantees fn is not running and never runs again once stopped.
type listener struct {
	fn      func([]service.Document)
	mu      sync.Mutex
	stopped bool
}

func (l *listener) deliver(docs []service.Document) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.fn(docs)
}

func (l *listener) stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
}

func (l *listener) isStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// listen runs a live query against hub: it delivers fetch's result once,
// then again after every signal on t, until the returned stop function is
// called or ctx ends. stop must not be called from inside fn.
func listen(ctx context.Context, hub *changeHub, t topic,
	fetch func(context.Context) ([]service.Document, error), fn func([]service.Document),
) func() {
	ctx, cancel := context.WithCancel(ctx)
	changes, unsubscribe := hub.subscribe(t)
	l := &listener{fn: fn}

	refresh := func() {
		docs, err := fetch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("Live query refresh failed",
					"collection", t.collection,
					"error", err)
			}
			return
		}
		l.deliver(docs)
	}

	go func() {
		defer unsubscribe()
		refresh()
		for {
			select {
			case <-ctx.Done():
				l.stop()
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				refresh()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			l.stop()
		})
	}
}
