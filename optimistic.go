package replica

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// OptimisticUpdate is a provisional transform of the displayed value.
// Commit and rollback match updates strictly by ID.
type OptimisticUpdate[T any] interface {
	ID() string
	Apply(T) T
}

type funcUpdate[T any] struct {
	id string
	fn func(T) T
}

func (u funcUpdate[T]) ID() string  { return u.id }
func (u funcUpdate[T]) Apply(v T) T { return u.fn(v) }

// NewOptimisticUpdate wraps transform with a random unique ID.
func NewOptimisticUpdate[T any](transform func(T) T) OptimisticUpdate[T] {
	return funcUpdate[T]{id: uuid.NewString(), fn: transform}
}

// OptimisticHooks are optional callbacks for WithOptimisticUpdate.
type OptimisticHooks struct {
	OnSuccess  func()
	OnError    func(error)
	OnCanceled func()
	OnFinished func()
}

// WithOptimisticUpdate begins update, runs op and commits on success.
// On failure the update is rolled back, OnError is called and the error is
// returned unchanged. A failure matching context.Canceled also calls OnCanceled.
func WithOptimisticUpdate[T, R any](
	ctx context.Context,
	r Replica[T],
	update OptimisticUpdate[T],
	hooks OptimisticHooks,
	op func(context.Context) (R, error),
) (R, error) {
	r.BeginOptimisticUpdate(update)

	res, err := op(ctx)
	if err != nil {
		r.RollbackOptimisticUpdate(update)
		if hooks.OnError != nil {
			hooks.OnError(err)
		}
		if errors.Is(err, context.Canceled) {
			call(hooks.OnCanceled)
		}
		call(hooks.OnFinished)
		var zero R
		return zero, err
	}

	r.CommitOptimisticUpdate(update)
	call(hooks.OnSuccess)
	call(hooks.OnFinished)
	return res, nil
}

func call(f func()) {
	if f != nil {
		f()
	}
}

func indexOfUpdate[T any](updates []OptimisticUpdate[T], id string) int {
	for i, u := range updates {
		if u.ID() == id {
			return i
		}
	}
	return -1
}

func withoutUpdate[T any](updates []OptimisticUpdate[T], i int) []OptimisticUpdate[T] {
	out := make([]OptimisticUpdate[T], 0, len(updates)-1)
	out = append(out, updates[:i]...)
	return append(out, updates[i+1:]...)
}
