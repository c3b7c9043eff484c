package storage

import (
	"context"
	"sync"
)

// Memory keeps one value in process. Useful for tests and for sharing the
// last value between short-lived replicas of the same data.
type Memory[T any] struct {
	mu  sync.Mutex
	v   T
	set bool
}

func NewMemory[T any]() *Memory[T] { return &Memory[T]{} }

// NewMemoryWith returns a Memory already holding v.
func NewMemoryWith[T any](v T) *Memory[T] { return &Memory[T]{v: v, set: true} }

func (m *Memory[T]) Read(context.Context) (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v, m.set, nil
}

func (m *Memory[T]) Write(_ context.Context, v T) error {
	m.mu.Lock()
	m.v, m.set = v, true
	m.mu.Unlock()
	return nil
}

func (m *Memory[T]) Remove(context.Context) error {
	m.mu.Lock()
	var zero T
	m.v, m.set = zero, false
	m.mu.Unlock()
	return nil
}
