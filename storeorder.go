package replica

import "sync"

// storeOrder serializes storage access in commit order without holding the
// replica lock while storage works. A writer takes a ticket under the replica
// lock and later waits for its turn; readers wait until every ticket issued
// before them has been served.
type storeOrder struct {
	mu      sync.Mutex
	cond    *sync.Cond
	issued  uint64
	served  uint64
	readers int
}

func newStoreOrder() *storeOrder {
	s := &storeOrder{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// ticket reserves the next write slot. Every ticket must be passed to acquire.
func (s *storeOrder) ticket() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// acquire blocks until t is the next ticket and no reader is active.
func (s *storeOrder) acquire(t uint64) {
	s.mu.Lock()
	for s.served+1 != t || s.readers > 0 {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

func (s *storeOrder) release() {
	s.mu.Lock()
	s.served++
	s.mu.Unlock()
	s.cond.Broadcast()
}

// rlock waits for all tickets issued so far, then admits a reader.
func (s *storeOrder) rlock() {
	s.mu.Lock()
	upTo := s.issued
	for s.served < upTo {
		s.cond.Wait()
	}
	s.readers++
	s.mu.Unlock()
}

func (s *storeOrder) runlock() {
	s.mu.Lock()
	s.readers--
	s.mu.Unlock()
	s.cond.Broadcast()
}

// pending reports tickets issued but not yet released.
func (s *storeOrder) pending() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued - s.served
}
