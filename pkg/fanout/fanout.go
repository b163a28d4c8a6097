// Package fanout delivers notifications to a dynamic set of listeners.
//
// Listeners are keyed by a monotonically increasing id and invoked in
// registration order, outside the internal lock. A listener may remove
// itself, or any other listener, from inside its callback. A panicking
// listener is recovered and logged; the others still run.
package fanout

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/queuesync/queuesync-go/pkg/topic"
)

// Listener receives notifications. It runs on the delivering goroutine
// and must not block.
type Listener func(topic.Notification)

type entry struct {
	id      uint64
	fn      Listener
	removed atomic.Bool
}

// Fanout is a set of listeners. The zero value is not usable; call New.
type Fanout struct {
	mu        sync.RWMutex
	listeners map[uint64]*entry
	nextID    uint64
	logger    *slog.Logger
}

// New creates an empty Fanout. logger may be nil.
func New(logger *slog.Logger) *Fanout {
	return &Fanout{
		listeners: make(map[uint64]*entry),
		logger:    logger,
	}
}

// Handle identifies a registered listener.
type Handle struct {
	f    *Fanout
	e    *entry
	once sync.Once
}

// ID returns the listener id.
func (h *Handle) ID() uint64 {
	return h.e.id
}

// Remove deregisters the listener. It is idempotent and safe to call from
// inside any listener.
func (h *Handle) Remove() {
	h.once.Do(func() {
		h.e.removed.Store(true)
		h.f.mu.Lock()
		delete(h.f.listeners, h.e.id)
		h.f.mu.Unlock()
	})
}

// Add registers fn and returns its handle.
func (f *Fanout) Add(fn Listener) *Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	e := &entry{id: f.nextID, fn: fn}
	f.listeners[e.id] = e
	return &Handle{f: f, e: e}
}

// Len returns the number of registered listeners.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners)
}

// Deliver invokes every current listener with n and returns how many
// were invoked. Listeners removed after the snapshot is taken are skipped.
func (f *Fanout) Deliver(n topic.Notification) int {
	f.mu.RLock()
	snapshot := make([]*entry, 0, len(f.listeners))
	for _, e := range f.listeners {
		snapshot = append(snapshot, e)
	}
	f.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].id < snapshot[j].id })

	delivered := 0
	for _, e := range snapshot {
		if e.removed.Load() {
			continue
		}
		if err := f.invoke(e, n); err != nil {
			if f.logger != nil {
				f.logger.Error("listener panicked", "listener", e.id, "topic", n.Topic().String(), "error", err)
			}
			continue
		}
		delivered++
	}
	return delivered
}

func (f *Fanout) invoke(e *entry, n topic.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	e.fn(n)
	return nil
}
