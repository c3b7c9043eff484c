package promhooks

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/unkn0wn-root/replica"
)

func TestHooksRecordMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := New(reg)

	h.LoadStarted("feed")
	h.LoadStarted("feed")
	h.LoadFinished("feed", replica.OutcomeSuccess, 20*time.Millisecond)
	h.LoadFinished("feed", replica.OutcomeCanceled, time.Millisecond)
	h.StorageFailed("feed", "write", errors.New("disk full"))
	h.BecameStale("feed")
	h.Evicted("feed")
	h.ObserversChanged("feed", 3, 1)

	if v := testutil.ToFloat64(h.loadsStarted.WithLabelValues("feed")); v != 2 {
		t.Fatalf("loads started=%v", v)
	}
	if v := testutil.ToFloat64(h.loadsFinished.WithLabelValues("feed", replica.OutcomeSuccess)); v != 1 {
		t.Fatalf("loads succeeded=%v", v)
	}
	if v := testutil.ToFloat64(h.storageErrors.WithLabelValues("feed", "write")); v != 1 {
		t.Fatalf("storage errors=%v", v)
	}
	if v := testutil.ToFloat64(h.observers.WithLabelValues("feed")); v != 3 {
		t.Fatalf("observers=%v", v)
	}
	if v := testutil.ToFloat64(h.activeObserver.WithLabelValues("feed")); v != 1 {
		t.Fatalf("active observers=%v", v)
	}
	if n := testutil.CollectAndCount(h.loadDuration); n != 2 {
		t.Fatalf("histogram series=%d", n)
	}
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected duplicate registration to panic")
		}
	}()
	New(reg)
}
