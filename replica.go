package replica

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type fetchResult[T any] struct {
	v   T
	err error
}

// replica is the single owner of a replica's state. Every operation runs
// under mu; states are broadcast to observer streams in commit order.
type replica[T any] struct {
	name     string
	settings Settings
	storage  Storage[T]
	log      Logger
	hooks    Hooks
	now      func() time.Time

	mu        sync.Mutex
	state     State[T]
	observers map[string]*Observer[T]
	loader    *dataLoader[T]
	loadID    uint64 // 0 => no load owns the state
	loadStart time.Time
	waiters   []chan fetchResult[T]
	closed    bool

	staleTimer *time.Timer
	staleGen   uint64
	clearTimer *time.Timer
	clearGen   uint64

	// store orders storage access: writes and removes run in commit order,
	// loader reads wait for writes committed before them.
	store *storeOrder
}

var _ Replica[struct{}] = (*replica[struct{}])(nil)

func newReplica[T any](opts Options[T]) (*replica[T], error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("replica: name is required")
	}
	if opts.Fetch == nil {
		return nil, fmt.Errorf("replica: fetch is required")
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}

	r := &replica[T]{
		name:      opts.Name,
		settings:  opts.Settings,
		storage:   opts.Storage,
		observers: make(map[string]*Observer[T]),
		store:     newStoreOrder(),
	}

	// defaults
	r.log = coalesce[Logger](opts.Logger, NopLogger{})
	r.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	r.now = time.Now
	if opts.Clock != nil {
		r.now = opts.Clock
	}

	r.state = emptyState[T](r.storage != nil)
	var persist func(context.Context, T)
	if r.storage != nil {
		persist = r.persistFetched
	}
	r.loader = newDataLoader(r.storage, opts.Fetch, r.store, persist)
	return r, nil
}

func (r *replica[T]) Name() string { return r.name }

func (r *replica[T]) CurrentState() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Close cancels timers and the in-flight load, fails pending FetchData calls
// and ends every observer. Observers are detached after the lock is released
// since a concurrent Observer.Close may be waiting for it.
func (r *replica[T]) Close(context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.stopStaleTimerLocked()
	r.stopClearTimerLocked()
	r.loader.cancel()
	r.loadID = 0
	r.resolveWaitersLocked(fetchResult[T]{err: &LoadingError{Replica: r.name, Err: ErrClosed}})
	observers := make([]*Observer[T], 0, len(r.observers))
	for id, o := range r.observers {
		observers = append(observers, o)
		delete(r.observers, id)
	}
	r.log.Debug("replica closed", Fields{"replica": r.name})
	r.mu.Unlock()

	for _, o := range observers {
		o.detach()
	}
	return nil
}

// ==============================
// Observers
// ==============================

func (r *replica[T]) Observe(ctx context.Context, active bool, activity <-chan bool) *Observer[T] {
	id := uuid.NewString()

	r.mu.Lock()
	o := newObserver[T](id, r, newStateStream(r.state))
	if r.closed {
		r.mu.Unlock()
		o.detach()
		return o
	}
	r.observers[id] = o
	r.applyObserverLocked(id, true, active)
	r.mu.Unlock()

	go o.watch(ctx, active, activity)
	return o
}

func (r *replica[T]) setObserverActive(id string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if _, ok := r.state.Observing.IDs[id]; !ok {
		return
	}
	r.applyObserverLocked(id, true, active)
}

func (r *replica[T]) removeObserver(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, id)
	if r.closed {
		return
	}
	if _, ok := r.state.Observing.IDs[id]; !ok {
		return
	}
	r.applyObserverLocked(id, false, false)
}

func (r *replica[T]) applyObserverLocked(id string, present, active bool) {
	prev := r.state.Observing
	next := prev.next(id, present, active, r.now())
	r.state.Observing = next

	if prev.Count() != next.Count() || prev.ActiveCount() != next.ActiveCount() {
		r.hooks.ObserversChanged(r.name, next.Count(), next.ActiveCount())
		r.broadcastLocked()
	}
	switch {
	case prev.Count() > 0 && next.Count() == 0:
		r.armClearTimerLocked()
	case next.Count() > 0:
		r.stopClearTimerLocked()
	}
	if next.ActiveCount() > prev.ActiveCount() {
		r.revalidateLocked()
	}
}

// ==============================
// Loading
// ==============================

func (r *replica[T]) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.startLoadingLocked(false, false)
}

func (r *replica[T]) Revalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.revalidateLocked()
}

func (r *replica[T]) Preload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.state.HasFreshData() {
		return
	}
	r.startLoadingLocked(false, true)
}

func (r *replica[T]) FetchData(ctx context.Context, forceRefresh bool) (T, error) {
	var zero T

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return zero, ErrClosed
	}
	if !forceRefresh && r.state.HasFreshData() {
		v := r.state.Data.ValueWithOptimisticUpdates()
		r.mu.Unlock()
		return v, nil
	}
	ch := make(chan fetchResult[T], 1)
	r.waiters = append(r.waiters, ch)
	r.startLoadingLocked(true, false)
	r.mu.Unlock()

	select {
	case res := <-ch:
		return res.v, res.err
	case <-ctx.Done():
		r.mu.Lock()
		r.dropWaiterLocked(ch)
		r.mu.Unlock()
		return zero, ctx.Err()
	}
}

func (r *replica[T]) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.state.Loading {
		return
	}
	r.cancelLoadLocked()
	r.resolveWaitersLocked(fetchResult[T]{err: &LoadingError{Replica: r.name, Err: ErrLoadCanceled}})
}

func (r *replica[T]) revalidateLocked() {
	if r.state.HasFreshData() {
		return
	}
	r.startLoadingLocked(false, false)
}

// startLoadingLocked starts a load unless one is in flight, in which case the
// in-flight load is joined and only the request flags are raised.
func (r *replica[T]) startLoadingLocked(dataRequested, preloading bool) {
	if r.state.Loading {
		changed := false
		if dataRequested && !r.state.DataRequested {
			r.state.DataRequested = true
			changed = true
		}
		if preloading && !r.state.Preloading {
			r.state.Preloading = true
			changed = true
		}
		if changed {
			r.broadcastLocked()
		}
		return
	}

	r.loadID = r.loader.load(r.state.LoadingFromStorageRequired, r.onLoadOutput)
	r.loadStart = r.now()
	r.state.Loading = true
	r.state.Error = nil
	r.state.DataRequested = dataRequested
	r.state.Preloading = preloading

	r.hooks.LoadStarted(r.name)
	r.log.Debug("load started", Fields{"replica": r.name, "loadID": r.loadID})
	r.broadcastLocked()
}

func (r *replica[T]) cancelLoadLocked() {
	r.loader.cancel()
	r.loadID = 0
	r.state.Loading = false
	r.state.DataRequested = false
	r.state.Preloading = false

	r.hooks.LoadFinished(r.name, OutcomeCanceled, r.now().Sub(r.loadStart))
	r.log.Debug("load canceled", Fields{"replica": r.name})
	r.broadcastLocked()
}

// onLoadOutput applies a loader output. Outputs of superseded or canceled
// loads are dropped.
func (r *replica[T]) onLoadOutput(id uint64, out loadOutput[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || id != r.loadID {
		return
	}

	if out.kind == outStorageRead {
		if !r.state.LoadingFromStorageRequired {
			return // replaced by SetData/MutateData meanwhile
		}
		r.state.LoadingFromStorageRequired = false
		if out.found {
			if r.state.Data == nil {
				r.state.Data = &Data[T]{Value: out.value, ChangingDate: r.now()}
			} else {
				r.state.Data = r.state.Data.withValue(out.value, r.now())
			}
		}
		r.log.Debug("storage read", Fields{"replica": r.name, "found": out.found})
		r.broadcastLocked()
		return
	}

	r.loader.finished(id)
	r.loadID = 0
	r.state.Loading = false
	r.state.DataRequested = false
	r.state.Preloading = false
	r.hooks.LoadFinished(r.name, out.outcome, out.took)

	switch out.outcome {
	case OutcomeSuccess:
		data := &Data[T]{Value: out.value, IsFresh: true, ChangingDate: r.now()}
		if r.state.Data != nil && len(r.state.Data.OptimisticUpdates) > 0 {
			data.OptimisticUpdates = append([]OptimisticUpdate[T](nil), r.state.Data.OptimisticUpdates...)
		}
		r.state.Data = data
		r.state.Error = nil
		r.state.LoadingFromStorageRequired = false
		r.log.Debug("load succeeded", Fields{"replica": r.name, "took": out.took})
		r.broadcastLocked()
		r.armStaleTimerLocked()
		r.resolveWaitersLocked(fetchResult[T]{v: data.ValueWithOptimisticUpdates()})

	case OutcomeError:
		var err error = &FetchError{Replica: r.name, Err: out.err}
		if out.storage {
			err = &StorageError{Replica: r.name, Op: "read", Err: out.err}
			r.hooks.StorageFailed(r.name, "read", out.err)
		}
		r.state.Error = err
		r.log.Debug("load failed", Fields{"replica": r.name, "err": out.err})
		r.broadcastLocked()
		r.resolveWaitersLocked(fetchResult[T]{err: err})

	default:
		r.broadcastLocked()
		r.resolveWaitersLocked(fetchResult[T]{err: &LoadingError{Replica: r.name, Err: ErrLoadCanceled}})
	}
}

func (r *replica[T]) resolveWaitersLocked(res fetchResult[T]) {
	for _, ch := range r.waiters {
		ch <- res
	}
	r.waiters = nil
}

func (r *replica[T]) dropWaiterLocked(ch chan fetchResult[T]) {
	for i, w := range r.waiters {
		if w == ch {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			return
		}
	}
}

// ==============================
// Data changes
// ==============================

func (r *replica[T]) SetData(ctx context.Context, v T) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.state.Data == nil {
		r.state.Data = &Data[T]{Value: v, ChangingDate: r.now()}
	} else {
		r.state.Data = r.state.Data.withValue(v, r.now())
	}
	r.state.LoadingFromStorageRequired = false
	r.broadcastLocked()
	return r.writeThroughUnlock(ctx, v)
}

func (r *replica[T]) MutateData(ctx context.Context, transform func(T) T) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.state.Data == nil {
		r.mu.Unlock()
		return nil
	}
	v := transform(r.state.Data.Value)
	r.state.Data = r.state.Data.withValue(v, r.now())
	r.state.LoadingFromStorageRequired = false
	r.broadcastLocked()
	return r.writeThroughUnlock(ctx, v)
}

// writeThroughUnlock takes a storage ticket before releasing mu, so storage
// writes happen in commit order. The in-memory change is kept on failure.
func (r *replica[T]) writeThroughUnlock(ctx context.Context, v T) error {
	if r.storage == nil {
		r.mu.Unlock()
		return nil
	}
	t := r.store.ticket()
	r.mu.Unlock()
	r.store.acquire(t)
	err := r.storage.Write(ctx, v)
	r.store.release()
	if err != nil {
		r.hooks.StorageFailed(r.name, "write", err)
		return &StorageError{Replica: r.name, Op: "write", Err: err}
	}
	return nil
}

// persistFetched is the loader's write-through of fetched values.
// A load canceled before its turn writes nothing, so a Clear that removed
// the stored copy is not undone.
func (r *replica[T]) persistFetched(ctx context.Context, v T) {
	r.store.acquire(r.store.ticket())
	if ctx.Err() != nil {
		r.store.release()
		return
	}
	err := r.storage.Write(context.WithoutCancel(ctx), v)
	r.store.release()
	if err != nil {
		r.hooks.StorageFailed(r.name, "write", err)
		r.log.Warn("storage write after fetch failed", Fields{"replica": r.name, "err": err})
	}
}

// ==============================
// Clearing and freshness
// ==============================

func (r *replica[T]) Clear(ctx context.Context, mode InvalidationMode, removeFromStorage bool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.state.Loading {
		r.cancelLoadLocked()
	}
	r.stopStaleTimerLocked()
	r.state.Data = nil
	r.state.Error = nil
	r.state.LoadingFromStorageRequired = r.storage != nil
	r.log.Debug("cleared", Fields{"replica": r.name, "removeFromStorage": removeFromStorage})
	r.broadcastLocked()

	if !removeFromStorage || r.storage == nil {
		r.applyInvalidationLocked(mode)
		r.mu.Unlock()
		return
	}

	// A refresh started below reads storage only after the remove completes.
	t := r.store.ticket()
	r.applyInvalidationLocked(mode)
	r.mu.Unlock()
	r.store.acquire(t)
	err := r.storage.Remove(ctx)
	r.store.release()
	if err != nil {
		r.hooks.StorageFailed(r.name, "remove", err)
		r.log.Warn("storage remove failed", Fields{"replica": r.name, "err": err})
	}
}

func (r *replica[T]) ClearError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.state.Error == nil {
		return
	}
	r.state.Error = nil
	r.broadcastLocked()
}

func (r *replica[T]) Invalidate(mode InvalidationMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.stopStaleTimerLocked()
	if r.state.HasFreshData() {
		r.state.Data = r.state.Data.withFresh(false)
		r.broadcastLocked()
	}
	r.applyInvalidationLocked(mode)
}

func (r *replica[T]) MakeFresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.state.Data == nil {
		return
	}
	if !r.state.Data.IsFresh {
		r.state.Data = r.state.Data.withFresh(true)
		r.broadcastLocked()
	}
	r.armStaleTimerLocked()
}

// applyInvalidationLocked restarts an in-flight load, otherwise refreshes
// according to mode. Waiters left without a load are failed.
func (r *replica[T]) applyInvalidationLocked(mode InvalidationMode) {
	waiting := len(r.waiters) > 0
	if r.state.Loading {
		r.cancelLoadLocked()
		r.startLoadingLocked(waiting, false)
		return
	}

	refresh := false
	switch mode {
	case RefreshIfHasObservers:
		refresh = r.state.Observing.Status() != StatusNone
	case RefreshIfHasActiveObservers:
		refresh = r.state.Observing.Status() == StatusActive
	case RefreshAlways:
		refresh = true
	}
	if refresh {
		r.startLoadingLocked(waiting, false)
		return
	}
	if waiting {
		r.resolveWaitersLocked(fetchResult[T]{err: &LoadingError{Replica: r.name, Err: ErrLoadCanceled}})
	}
}

// ==============================
// Optimistic updates
// ==============================

func (r *replica[T]) BeginOptimisticUpdate(u OptimisticUpdate[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.state.Data == nil {
		return
	}
	data := r.state.Data.clone()
	data.OptimisticUpdates = append(data.OptimisticUpdates, u)
	r.state.Data = data
	r.broadcastLocked()
}

// CommitOptimisticUpdate folds u, together with every update begun before
// it, into the cached value and drops them from the pending stack. Updates
// apply in the same order as before, so the displayed value is unchanged.
// The folded value is written to storage best-effort.
func (r *replica[T]) CommitOptimisticUpdate(u OptimisticUpdate[T]) {
	r.mu.Lock()
	if r.closed || r.state.Data == nil {
		r.mu.Unlock()
		return
	}
	i := indexOfUpdate(r.state.Data.OptimisticUpdates, u.ID())
	if i < 0 {
		r.mu.Unlock()
		return
	}
	pending := r.state.Data.OptimisticUpdates
	v := r.state.Data.Value
	for _, p := range pending[:i+1] {
		v = p.Apply(v)
	}
	data := r.state.Data.withValue(v, r.now())
	data.OptimisticUpdates = append([]OptimisticUpdate[T](nil), pending[i+1:]...)
	r.state.Data = data
	r.broadcastLocked()

	if err := r.writeThroughUnlock(context.Background(), data.Value); err != nil {
		r.log.Warn("storage write after optimistic commit failed", Fields{"replica": r.name, "err": err})
	}
}

func (r *replica[T]) RollbackOptimisticUpdate(u OptimisticUpdate[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.state.Data == nil {
		return
	}
	i := indexOfUpdate(r.state.Data.OptimisticUpdates, u.ID())
	if i < 0 {
		return
	}
	data := r.state.Data.clone()
	data.OptimisticUpdates = withoutUpdate(r.state.Data.OptimisticUpdates, i)
	r.state.Data = data
	r.broadcastLocked()
}

// ==============================
// Broadcast and timers
// ==============================

func (r *replica[T]) broadcastLocked() {
	for _, o := range r.observers {
		o.stream.push(r.state)
	}
}

func (r *replica[T]) armStaleTimerLocked() {
	r.stopStaleTimerLocked()
	if !finite(r.settings.StaleTime) {
		return
	}
	gen := r.staleGen
	r.staleTimer = time.AfterFunc(r.settings.StaleTime, func() { r.onStale(gen) })
}

func (r *replica[T]) stopStaleTimerLocked() {
	if r.staleTimer != nil {
		r.staleTimer.Stop()
		r.staleTimer = nil
	}
	r.staleGen++
}

func (r *replica[T]) onStale(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || gen != r.staleGen {
		return
	}
	r.staleTimer = nil
	if !r.state.HasFreshData() {
		return
	}
	r.state.Data = r.state.Data.withFresh(false)
	r.hooks.BecameStale(r.name)
	r.log.Debug("became stale", Fields{"replica": r.name})
	r.broadcastLocked()
}

// armClearTimerLocked starts the eviction countdown once the last observer
// is gone. The conditions are checked again when it fires.
func (r *replica[T]) armClearTimerLocked() {
	r.stopClearTimerLocked()
	if !finite(r.settings.ClearTime) {
		return
	}
	gen := r.clearGen
	r.clearTimer = time.AfterFunc(r.settings.ClearTime, func() { r.onClear(gen) })
}

func (r *replica[T]) stopClearTimerLocked() {
	if r.clearTimer != nil {
		r.clearTimer.Stop()
		r.clearTimer = nil
	}
	r.clearGen++
}

func (r *replica[T]) onClear(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || gen != r.clearGen {
		return
	}
	r.clearTimer = nil
	if r.state.Loading || r.state.Observing.Count() > 0 {
		return
	}
	if r.state.Data == nil && r.state.Error == nil {
		return
	}
	r.stopStaleTimerLocked()
	r.state.Data = nil
	r.state.Error = nil
	r.state.LoadingFromStorageRequired = r.storage != nil
	r.hooks.Evicted(r.name)
	r.log.Debug("evicted", Fields{"replica": r.name})
	r.broadcastLocked()
}
