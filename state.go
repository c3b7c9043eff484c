package replica

import "time"

// State is a snapshot of a replica. A published State is never mutated;
// every transition produces a new value.
type State[T any] struct {
	Data                       *Data[T]
	Loading                    bool
	Error                      error
	DataRequested              bool
	Preloading                 bool
	LoadingFromStorageRequired bool
	Observing                  ObservingState
}

// HasFreshData reports whether the state holds data inside its validity window.
func (s State[T]) HasFreshData() bool {
	return s.Data != nil && s.Data.IsFresh
}

func emptyState[T any](hasStorage bool) State[T] {
	return State[T]{
		LoadingFromStorageRequired: hasStorage,
		Observing:                  ObservingState{Time: ObservingTime{Kind: ObservedNever}},
	}
}

// Data is the cached value plus its freshness and pending optimistic updates.
type Data[T any] struct {
	Value             T
	IsFresh           bool
	ChangingDate      time.Time
	OptimisticUpdates []OptimisticUpdate[T] // applied in insertion order
}

// ValueWithOptimisticUpdates returns Value with every pending update applied.
func (d *Data[T]) ValueWithOptimisticUpdates() T {
	v := d.Value
	for _, u := range d.OptimisticUpdates {
		v = u.Apply(v)
	}
	return v
}

func (d *Data[T]) clone() *Data[T] {
	cp := *d
	if len(d.OptimisticUpdates) > 0 {
		cp.OptimisticUpdates = append([]OptimisticUpdate[T](nil), d.OptimisticUpdates...)
	}
	return &cp
}

func (d *Data[T]) withValue(v T, now time.Time) *Data[T] {
	cp := d.clone()
	cp.Value = v
	cp.ChangingDate = now
	return cp
}

func (d *Data[T]) withFresh(fresh bool) *Data[T] {
	cp := d.clone()
	cp.IsFresh = fresh
	return cp
}

// ObservingStatus is derived from the observer sets.
type ObservingStatus int

const (
	StatusNone ObservingStatus = iota
	StatusInactive
	StatusActive
)

func (s ObservingStatus) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusInactive:
		return "inactive"
	case StatusActive:
		return "active"
	default:
		return "unknown"
	}
}

type ObservingTimeKind int

const (
	ObservedNever ObservingTimeKind = iota
	ObservedNow
	ObservedInPast
)

// ObservingTime records when the replica was last actively observed.
// At is set only for ObservedInPast.
type ObservingTime struct {
	Kind ObservingTimeKind
	At   time.Time
}

// ObservingState tracks registered and active observers.
// ActiveIDs is always a subset of IDs.
type ObservingState struct {
	IDs       map[string]struct{}
	ActiveIDs map[string]struct{}
	Time      ObservingTime
}

func (o ObservingState) Count() int       { return len(o.IDs) }
func (o ObservingState) ActiveCount() int { return len(o.ActiveIDs) }

func (o ObservingState) Status() ObservingStatus {
	switch {
	case len(o.ActiveIDs) > 0:
		return StatusActive
	case len(o.IDs) > 0:
		return StatusInactive
	default:
		return StatusNone
	}
}

// next returns a copy with id added or removed and its active flag set.
func (o ObservingState) next(id string, present, active bool, now time.Time) ObservingState {
	out := ObservingState{
		IDs:       make(map[string]struct{}, len(o.IDs)+1),
		ActiveIDs: make(map[string]struct{}, len(o.ActiveIDs)+1),
		Time:      o.Time,
	}
	for k := range o.IDs {
		out.IDs[k] = struct{}{}
	}
	for k := range o.ActiveIDs {
		out.ActiveIDs[k] = struct{}{}
	}
	if present {
		out.IDs[id] = struct{}{}
	} else {
		delete(out.IDs, id)
	}
	if present && active {
		out.ActiveIDs[id] = struct{}{}
	} else {
		delete(out.ActiveIDs, id)
	}

	switch {
	case len(out.ActiveIDs) > 0:
		out.Time = ObservingTime{Kind: ObservedNow}
	case len(o.ActiveIDs) > 0:
		out.Time = ObservingTime{Kind: ObservedInPast, At: now}
	}
	return out
}
