// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/replica"
//	"github.com/unkn0wn-root/replica/hooks/async"
//	"github.com/unkn0wn-root/replica/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    LoadEvery:     10, // sample logs: ~every 10th load
//	    ObserverEvery: 1,  // log every observer change
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	profile, _ := replica.New[User](replica.Options[User]{
//	    Name:  "profile",
//	    Fetch: fetchProfile,
//	    Hooks: hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/replica"
)

// Hooks moves hook calls off the replica's lock onto a worker pool.
// Events are dropped when the queue is full.
type Hooks struct {
	inner   replica.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ replica.Hooks = (*Hooks)(nil)

func New(inner replica.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Later events are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) LoadStarted(r string) { h.try(func() { h.inner.LoadStarted(r) }) }
func (h *Hooks) BecameStale(r string) { h.try(func() { h.inner.BecameStale(r) }) }
func (h *Hooks) Evicted(r string)     { h.try(func() { h.inner.Evicted(r) }) }
func (h *Hooks) LoadFinished(r, outcome string, took time.Duration) {
	h.try(func() { h.inner.LoadFinished(r, outcome, took) })
}
func (h *Hooks) StorageFailed(r, op string, err error) {
	h.try(func() { h.inner.StorageFailed(r, op, err) })
}
func (h *Hooks) ObserversChanged(r string, observers, active int) {
	h.try(func() { h.inner.ObserversChanged(r, observers, active) })
}
