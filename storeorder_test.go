package replica

import (
	"sync"
	"testing"
	"time"
)

func TestStoreOrderServesTicketsInOrder(t *testing.T) {
	s := newStoreOrder()
	first, second, third := s.ticket(), s.ticket(), s.ticket()

	var mu sync.Mutex
	var order []uint64
	var wg sync.WaitGroup
	for _, tk := range []uint64{third, second, first} {
		wg.Add(1)
		go func(tk uint64) {
			defer wg.Done()
			s.acquire(tk)
			mu.Lock()
			order = append(order, tk)
			mu.Unlock()
			s.release()
		}(tk)
	}
	wg.Wait()

	if len(order) != 3 || order[0] != first || order[1] != second || order[2] != third {
		t.Fatalf("order=%v", order)
	}
}

func TestStoreOrderReaderWaitsForEarlierWrites(t *testing.T) {
	s := newStoreOrder()
	tk := s.ticket()
	s.acquire(tk)

	read := make(chan struct{})
	go func() {
		s.rlock()
		close(read)
		s.runlock()
	}()

	select {
	case <-read:
		t.Fatalf("reader ran before an earlier write finished")
	case <-time.After(30 * time.Millisecond):
	}
	s.release()
	select {
	case <-read:
	case <-time.After(time.Second):
		t.Fatalf("reader never admitted")
	}
}

func TestStateStreamReplaysInitialState(t *testing.T) {
	initial := emptyState[int](true)
	s := newStateStream(initial)
	defer s.close()

	next := initial
	next.Loading = true
	s.push(next)

	first, second := <-s.out, <-s.out
	if first.Loading || !first.LoadingFromStorageRequired || !second.Loading {
		t.Fatalf("first=%+v second=%+v", first, second)
	}
}
