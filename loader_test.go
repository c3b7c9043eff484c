package replica

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type gatedStorage struct {
	entered chan struct{}
	release chan struct{}
	v       int
	ok      bool
	err     error
}

func (s *gatedStorage) Read(context.Context) (int, bool, error) {
	if s.entered != nil {
		close(s.entered)
	}
	if s.release != nil {
		<-s.release
	}
	return s.v, s.ok, s.err
}
func (s *gatedStorage) Write(context.Context, int) error { return nil }
func (s *gatedStorage) Remove(context.Context) error     { return nil }

type outputLog struct {
	mu   sync.Mutex
	outs []loadOutput[int]
	ids  []uint64
	done chan struct{}
}

func newOutputLog() *outputLog { return &outputLog{done: make(chan struct{}, 8)} }

func (l *outputLog) emit(id uint64, out loadOutput[int]) {
	l.mu.Lock()
	l.outs = append(l.outs, out)
	l.ids = append(l.ids, id)
	l.mu.Unlock()
	if out.kind == outFinished {
		l.done <- struct{}{}
	}
}

func (l *outputLog) wait(t *testing.T) {
	t.Helper()
	select {
	case <-l.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("load did not finish")
	}
}

func TestLoaderReadsStorageThenFetches(t *testing.T) {
	var persisted []int
	sf := &stubFetch{}
	l := newDataLoader[int](&gatedStorage{v: 9, ok: true}, sf.fetch, newStoreOrder(), func(_ context.Context, v int) {
		persisted = append(persisted, v)
	})
	log := newOutputLog()

	id := l.load(true, log.emit)
	log.wait(t)

	if len(log.outs) != 2 {
		t.Fatalf("outputs=%+v", log.outs)
	}
	if o := log.outs[0]; o.kind != outStorageRead || !o.found || o.value != 9 {
		t.Fatalf("storage output=%+v", o)
	}
	if o := log.outs[1]; o.kind != outFinished || o.outcome != OutcomeSuccess || o.value != 1 {
		t.Fatalf("finished output=%+v", o)
	}
	if log.ids[0] != id || log.ids[1] != id {
		t.Fatalf("ids=%v want %d", log.ids, id)
	}
	if len(persisted) != 1 || persisted[0] != 1 {
		t.Fatalf("persisted=%v", persisted)
	}
}

func TestLoaderStorageReadErrorSkipsFetch(t *testing.T) {
	boom := errors.New("io")
	sf := &stubFetch{}
	l := newDataLoader[int](&gatedStorage{err: boom}, sf.fetch, newStoreOrder(), nil)
	log := newOutputLog()

	l.load(true, log.emit)
	log.wait(t)

	if len(log.outs) != 1 {
		t.Fatalf("outputs=%+v", log.outs)
	}
	if o := log.outs[0]; o.outcome != OutcomeError || !o.storage || !errors.Is(o.err, boom) {
		t.Fatalf("output=%+v", o)
	}
	if sf.calls.Load() != 0 {
		t.Fatalf("fetch must not run after a failed storage read")
	}
}

func TestLoaderCancelLetsStorageReadFinish(t *testing.T) {
	st := &gatedStorage{entered: make(chan struct{}), release: make(chan struct{}), v: 4, ok: true}
	sf := &stubFetch{}
	l := newDataLoader[int](st, sf.fetch, newStoreOrder(), nil)
	log := newOutputLog()

	l.load(true, log.emit)
	<-st.entered
	l.cancel()
	close(st.release)
	log.wait(t)

	if len(log.outs) != 2 || log.outs[0].kind != outStorageRead || log.outs[1].outcome != OutcomeCanceled {
		t.Fatalf("outputs=%+v", log.outs)
	}
	if sf.calls.Load() != 0 {
		t.Fatalf("canceled load must not fetch")
	}
}

func TestLoaderNewLoadWaitsForPrevious(t *testing.T) {
	sf := &stubFetch{gate: make(chan struct{})}
	l := newDataLoader[int](nil, sf.fetch, newStoreOrder(), nil)
	log := newOutputLog()

	first := l.load(false, log.emit)
	waitFor(t, "first fetch", func() bool { return sf.calls.Load() == 1 })
	second := l.load(false, log.emit)
	if second == first {
		t.Fatalf("load ids must differ")
	}

	log.wait(t) // first load ends canceled
	sf.gate <- struct{}{}
	log.wait(t)

	if m := sf.maxRun.Load(); m != 1 {
		t.Fatalf("max concurrent fetches=%d", m)
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	if log.ids[0] != first || log.outs[0].outcome != OutcomeCanceled {
		t.Fatalf("first output=%+v", log.outs[0])
	}
	if log.ids[1] != second || log.outs[1].outcome != OutcomeSuccess || log.outs[1].value != 2 {
		t.Fatalf("second output=%+v", log.outs[1])
	}
}
