package replica

import (
	"context"
	"time"
)

// FetchFunc loads the authoritative value, typically over the network.
// It should return promptly once ctx is canceled.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Storage persists the last known value of a replica.
// Read returns (zero, false, nil) when nothing is stored.
type Storage[T any] interface {
	Read(ctx context.Context) (v T, ok bool, err error)
	Write(ctx context.Context, v T) error
	Remove(ctx context.Context) error
}

// InvalidationMode decides whether Clear and Invalidate start a refresh.
type InvalidationMode int

const (
	DontRefresh InvalidationMode = iota
	RefreshIfHasObservers
	RefreshIfHasActiveObservers
	RefreshAlways
)

// Replica is a single named, observable, cached unit of remote data.
// All methods are safe for concurrent use.
type Replica[T any] interface {
	Name() string
	CurrentState() State[T]
	Close(context.Context) error

	// Observe registers an observer. active is the initial activity; every value
	// received on activity toggles it. The observer is removed when ctx ends,
	// activity is closed or Close is called on the returned handle.
	// activity may be nil.
	Observe(ctx context.Context, active bool, activity <-chan bool) *Observer[T]

	// Loading
	Refresh()
	Revalidate()
	Preload()
	FetchData(ctx context.Context, forceRefresh bool) (T, error)
	Cancel()

	// Data changes (write-through to storage)
	SetData(ctx context.Context, v T) error
	MutateData(ctx context.Context, transform func(T) T) error

	// Clearing and freshness
	Clear(ctx context.Context, mode InvalidationMode, removeFromStorage bool)
	ClearError()
	Invalidate(mode InvalidationMode)
	MakeFresh()

	// Optimistic updates
	BeginOptimisticUpdate(u OptimisticUpdate[T])
	CommitOptimisticUpdate(u OptimisticUpdate[T])
	RollbackOptimisticUpdate(u OptimisticUpdate[T])
}

// Options configure a replica. Name and Fetch are required.
type Options[T any] struct {
	// Required
	Name  string // diagnostic identifier, e.g. "profile", "feed:home"
	Fetch FetchFunc[T]

	Settings Settings   // zero => stale right after fetch, evicted once unobserved
	Storage  Storage[T] // nil => memory only
	Logger   Logger     // if nil, NopLogger is used
	Hooks    Hooks      // if nil, NopHooks is used
	Clock    func() time.Time
}

func New[T any](opts Options[T]) (Replica[T], error) {
	return newReplica[T](opts)
}
