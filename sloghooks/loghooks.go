package sloghooks

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/replica"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	LoadEvery     uint64
	ObserverEvery uint64
	// Optional error redactor, e.g. to strip tokens from URLs. Defaults to err.Error().
	Redact func(error) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	loadCtr     atomic.Uint64
	observerCtr atomic.Uint64
}

var _ replica.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(err error) string {
	if err == nil {
		return ""
	}
	if h.opts.Redact != nil {
		return h.opts.Redact(err)
	}
	return err.Error()
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) LoadStarted(name string) {
	if h.l == nil || !sample(h.opts.LoadEvery, &h.loadCtr) {
		return
	}
	h.l.Debug("replica.load_started", "replica", name)
}

// LoadFinished logs errors unsampled.
func (h *Hooks) LoadFinished(name, outcome string, took time.Duration) {
	if h.l == nil {
		return
	}
	if outcome == replica.OutcomeError {
		h.l.Info("replica.load_finished",
			"replica", name,
			"outcome", outcome,
			"took", took)
		return
	}
	if !sample(h.opts.LoadEvery, &h.loadCtr) {
		return
	}
	h.l.Debug("replica.load_finished",
		"replica", name,
		"outcome", outcome,
		"took", took)
}

func (h *Hooks) StorageFailed(name, op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("replica.storage_failed",
		"replica", name,
		"op", op,
		"err", h.redact(err))
}

func (h *Hooks) BecameStale(name string) {
	if h.l == nil {
		return
	}
	h.l.Debug("replica.became_stale", "replica", name)
}

func (h *Hooks) Evicted(name string) {
	if h.l == nil {
		return
	}
	h.l.Debug("replica.evicted", "replica", name)
}

func (h *Hooks) ObserversChanged(name string, observers, active int) {
	if h.l == nil || !sample(h.opts.ObserverEvery, &h.observerCtr) {
		return
	}
	h.l.Debug("replica.observers_changed",
		"replica", name,
		"observers", observers,
		"active", active)
}
