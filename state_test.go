package replica

import (
	"testing"
	"time"
)

func TestObservingStateTransitions(t *testing.T) {
	now := time.Unix(1700000000, 0)
	o := emptyState[int](false).Observing

	o = o.next("a", true, false, now)
	if o.Status() != StatusInactive || o.Time.Kind != ObservedNever {
		t.Fatalf("after inactive add: %v %v", o.Status(), o.Time.Kind)
	}

	o = o.next("a", true, true, now)
	o = o.next("b", true, true, now)
	if o.Status() != StatusActive || o.ActiveCount() != 2 || o.Time.Kind != ObservedNow {
		t.Fatalf("after activation: %+v", o)
	}

	o = o.next("a", true, false, now)
	if o.Time.Kind != ObservedNow {
		t.Fatalf("one active observer left, time=%v", o.Time.Kind)
	}

	later := now.Add(time.Minute)
	prev := o
	o = o.next("b", false, false, later)
	if o.Time.Kind != ObservedInPast || !o.Time.At.Equal(later) {
		t.Fatalf("last active removed: %+v", o.Time)
	}
	if o.Count() != 1 || o.Status() != StatusInactive {
		t.Fatalf("unexpected sets: %+v", o)
	}
	if prev.Count() != 2 {
		t.Fatalf("next must not mutate the receiver")
	}

	o = o.next("a", false, false, later.Add(time.Minute))
	if o.Status() != StatusNone || !o.Time.At.Equal(later) {
		t.Fatalf("removing an inactive observer must keep the timestamp: %+v", o.Time)
	}
}

func TestDataCopiesAreIndependent(t *testing.T) {
	now := time.Now()
	d := &Data[int]{Value: 2, IsFresh: true, ChangingDate: now}
	add := NewOptimisticUpdate(func(v int) int { return v + 3 })
	mul := NewOptimisticUpdate(func(v int) int { return v * 10 })
	d.OptimisticUpdates = []OptimisticUpdate[int]{add, mul}

	if v := d.ValueWithOptimisticUpdates(); v != 50 {
		t.Fatalf("updates must apply in insertion order, got %d", v)
	}

	stale := d.withFresh(false)
	if !d.IsFresh || stale.IsFresh {
		t.Fatalf("withFresh must copy")
	}
	moved := d.withValue(7, now.Add(time.Second))
	if d.Value != 2 || moved.Value != 7 || !moved.IsFresh || !moved.ChangingDate.After(now) {
		t.Fatalf("withValue: %+v", moved)
	}
	moved.OptimisticUpdates[0] = mul
	if d.OptimisticUpdates[0].ID() != add.ID() {
		t.Fatalf("update slices must not be shared")
	}

	if (State[int]{}).HasFreshData() {
		t.Fatalf("empty state has no fresh data")
	}
	if StatusActive.String() != "active" {
		t.Fatalf("String=%q", StatusActive.String())
	}
}
