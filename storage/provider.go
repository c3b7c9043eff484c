// Package storage implements the replica storage capability (Read, Write, Remove).
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/replica/codec"
	"github.com/unkn0wn-root/replica/internal/util"
	"github.com/unkn0wn-root/replica/internal/wire"
	pr "github.com/unkn0wn-root/replica/provider"
)

// ErrWriteRejected is returned when the provider refuses a write (ok=false).
var ErrWriteRejected = errors.New("storage: write rejected by provider")

// Provider stores one replica value under a single key of a byte provider.
// Values are framed with the owning replica name and save time; entries that
// fail validation are deleted and read as absent.
type Provider[T any] struct {
	p     pr.Provider
	codec codec.Codec[T]
	name  string
	key   string
	ttl   time.Duration
	now   func() time.Time

	// OnSelfHeal, if set, is called after a corrupt or foreign entry was dropped.
	OnSelfHeal func(key, reason string)
}

type ProviderOptions[T any] struct {
	// Required
	Provider pr.Provider
	Codec    codec.Codec[T]
	Name     string // replica name; part of the key and checked on read

	Namespace string        // optional key prefix segment, e.g. "app:prod"
	TTL       time.Duration // 0 => no expiry
}

func NewProvider[T any](opts ProviderOptions[T]) (*Provider[T], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("storage: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("storage: codec is required")
	}
	if opts.Name == "" {
		return nil, fmt.Errorf("storage: name is required")
	}
	return &Provider[T]{
		p:     opts.Provider,
		codec: opts.Codec,
		name:  opts.Name,
		key:   util.StorageKey(opts.Namespace, opts.Name),
		ttl:   opts.TTL,
		now:   time.Now,
	}, nil
}

// Key returns the provider key this storage owns.
func (s *Provider[T]) Key() string { return s.key }

func (s *Provider[T]) Read(ctx context.Context) (T, bool, error) {
	var zero T
	raw, ok, err := s.p.Get(ctx, s.key)
	if err != nil || !ok {
		return zero, false, err
	}
	e, err := wire.Decode(raw)
	if err != nil {
		s.heal(ctx, "corrupt")
		return zero, false, nil
	}
	if e.Name != s.name {
		s.heal(ctx, "foreign")
		return zero, false, nil
	}
	v, err := s.codec.Decode(e.Payload)
	if err != nil {
		s.heal(ctx, "value_decode")
		return zero, false, nil
	}
	return v, true, nil
}

func (s *Provider[T]) Write(ctx context.Context, v T) error {
	payload, err := s.codec.Encode(v)
	if err != nil {
		return err
	}
	b, err := wire.Encode(wire.Entry{Name: s.name, SavedAt: s.now(), Payload: payload})
	if err != nil {
		return err
	}
	ok, err := s.p.Set(ctx, s.key, b, int64(len(b)), s.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWriteRejected
	}
	return nil
}

func (s *Provider[T]) Remove(ctx context.Context) error {
	return s.p.Del(ctx, s.key)
}

func (s *Provider[T]) heal(ctx context.Context, reason string) {
	_ = s.p.Del(ctx, s.key)
	if s.OnSelfHeal != nil {
		s.OnSelfHeal(s.key, reason)
	}
}
