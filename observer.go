package replica

import (
	"context"
	"sync"
)

// stateStream is an unbounded, ordered queue of states feeding one consumer.
// push never blocks, so the replica can broadcast under its lock.
type stateStream[T any] struct {
	mu     sync.Mutex
	queue  []State[T]
	latest State[T]

	signal chan struct{}
	out    chan State[T]
	done   chan struct{}
	once   sync.Once
}

func newStateStream[T any](initial State[T]) *stateStream[T] {
	s := &stateStream[T]{
		queue:  []State[T]{initial},
		latest: initial,
		signal: make(chan struct{}, 1),
		out:    make(chan State[T]),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *stateStream[T]) push(st State[T]) {
	s.mu.Lock()
	s.queue = append(s.queue, st)
	s.latest = st
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *stateStream[T]) current() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *stateStream[T]) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *stateStream[T]) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		next := s.queue[0]
		s.queue[0] = State[T]{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}

// observerHost is the orchestrator side of an Observer.
type observerHost[T any] interface {
	setObserverActive(id string, active bool)
	removeObserver(id string)
}

// Observer is one consumer's subscription to a replica.
// States delivers every committed state in commit order, starting with the
// state current at registration. The channel is closed once the observer is removed.
type Observer[T any] struct {
	id     string
	host   observerHost[T]
	stream *stateStream[T]

	once   sync.Once
	closed chan struct{}
}

func newObserver[T any](id string, host observerHost[T], stream *stateStream[T]) *Observer[T] {
	return &Observer[T]{id: id, host: host, stream: stream, closed: make(chan struct{})}
}

func (o *Observer[T]) ID() string { return o.id }

// States returns the ordered state channel.
func (o *Observer[T]) States() <-chan State[T] { return o.stream.out }

// Current returns the latest state delivered to this observer's queue.
func (o *Observer[T]) Current() State[T] { return o.stream.current() }

// Close unregisters the observer. Safe to call multiple times.
func (o *Observer[T]) Close() {
	o.once.Do(func() {
		close(o.closed)
		o.stream.close()
		o.host.removeObserver(o.id)
	})
}

// detach ends the observer without calling back into the host.
// Used when the replica itself is closed.
func (o *Observer[T]) detach() {
	o.once.Do(func() {
		close(o.closed)
		o.stream.close()
	})
}

// watch follows the activity signal until it ends, ctx ends or Close is called.
func (o *Observer[T]) watch(ctx context.Context, active bool, activity <-chan bool) {
	defer o.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.closed:
			return
		case a, ok := <-activity:
			if !ok {
				return
			}
			if a != active {
				active = a
				o.host.setObserverActive(o.id, a)
			}
		}
	}
}
