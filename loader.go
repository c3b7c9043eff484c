package replica

import (
	"context"
	"time"
)

type outputKind int

const (
	outStorageRead outputKind = iota
	outFinished
)

// loadOutput is one lifecycle output of a load. A load emits at most one
// outStorageRead followed by exactly one outFinished.
type loadOutput[T any] struct {
	kind    outputKind
	found   bool // outStorageRead: storage held a value
	value   T
	outcome string // outFinished: OutcomeSuccess, OutcomeError or OutcomeCanceled
	err     error
	storage bool // outFinished: err came from the storage read
	took    time.Duration
}

type loadJob struct {
	id     uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// dataLoader runs load attempts: an optional storage read, then one fetch.
// load and cancel must be called under the owner's lock; outputs are delivered
// from the load goroutine through emit.
type dataLoader[T any] struct {
	storage Storage[T]
	fetch   FetchFunc[T]
	store   *storeOrder
	persist func(context.Context, T) // best-effort write-through of fetched values

	seq  uint64
	job  *loadJob // active load, nil once finished or canceled
	last *loadJob // most recently started load, possibly still unwinding
}

func newDataLoader[T any](storage Storage[T], fetch FetchFunc[T], store *storeOrder, persist func(context.Context, T)) *dataLoader[T] {
	return &dataLoader[T]{storage: storage, fetch: fetch, store: store, persist: persist}
}

// load cancels the in-flight fetch, if any, and starts a new load.
// The new fetch does not begin until the previous one has returned.
func (l *dataLoader[T]) load(readStorage bool, emit func(id uint64, out loadOutput[T])) uint64 {
	if l.job != nil {
		l.job.cancel()
	}
	prev := l.last
	l.seq++
	ctx, cancel := context.WithCancel(context.Background())
	job := &loadJob{id: l.seq, cancel: cancel, done: make(chan struct{})}
	l.job = job
	l.last = job
	go l.run(ctx, job, prev, readStorage && l.storage != nil, emit)
	return job.id
}

// cancel requests cooperative cancellation of the in-flight fetch.
// A storage read already under way runs to completion.
func (l *dataLoader[T]) cancel() {
	if l.job == nil {
		return
	}
	l.job.cancel()
	l.job = nil
}

// finished clears the current job if it is id.
func (l *dataLoader[T]) finished(id uint64) {
	if l.job != nil && l.job.id == id {
		l.job = nil
	}
}

func (l *dataLoader[T]) run(ctx context.Context, job *loadJob, prev *loadJob, readStorage bool, emit func(uint64, loadOutput[T])) {
	defer close(job.done)
	defer job.cancel()

	if prev != nil {
		<-prev.done
	}
	start := time.Now()
	finish := func(out loadOutput[T]) {
		out.kind = outFinished
		out.took = time.Since(start)
		emit(job.id, out)
	}

	if readStorage {
		l.store.rlock()
		v, ok, err := l.storage.Read(context.WithoutCancel(ctx))
		l.store.runlock()
		if err != nil {
			finish(loadOutput[T]{outcome: OutcomeError, err: err, storage: true})
			return
		}
		emit(job.id, loadOutput[T]{kind: outStorageRead, found: ok, value: v})
	}

	if ctx.Err() != nil {
		finish(loadOutput[T]{outcome: OutcomeCanceled})
		return
	}
	v, err := l.fetch(ctx)
	switch {
	case ctx.Err() != nil:
		finish(loadOutput[T]{outcome: OutcomeCanceled})
	case err != nil:
		finish(loadOutput[T]{outcome: OutcomeError, err: err})
	default:
		if l.persist != nil {
			l.persist(ctx, v)
		}
		finish(loadOutput[T]{outcome: OutcomeSuccess, value: v})
	}
}
