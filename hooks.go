package replica

import "time"

// Load outcomes reported to Hooks.LoadFinished.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The replica calls them on its state transitions, often under its lock.
type Hooks interface {
	// A load (optional storage read + fetch) was started.
	LoadStarted(replica string)

	// A load ended. outcome ∈ {"success", "error", "canceled"}.
	LoadFinished(replica, outcome string, took time.Duration)

	// A best-effort storage operation failed.
	// op ∈ {"read", "write", "remove"}
	StorageFailed(replica, op string, err error)

	// The staleness timer flipped fresh data to stale.
	BecameStale(replica string)

	// The eviction timer dropped the in-memory value/error.
	Evicted(replica string)

	// Observer or active observer count changed.
	ObserversChanged(replica string, observers, active int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) LoadStarted(string)                         {}
func (NopHooks) LoadFinished(string, string, time.Duration) {}
func (NopHooks) StorageFailed(string, string, error)        {}
func (NopHooks) BecameStale(string)                         {}
func (NopHooks) Evicted(string)                             {}
func (NopHooks) ObserversChanged(string, int, int)          {}
