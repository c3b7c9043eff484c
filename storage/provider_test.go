package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unkn0wn-root/replica"
	"github.com/unkn0wn-root/replica/codec"
	"github.com/unkn0wn-root/replica/internal/wire"
	pr "github.com/unkn0wn-root/replica/provider"
)

var (
	_ replica.Storage[int] = (*Provider[int])(nil)
	_ replica.Storage[int] = (*Memory[int])(nil)
)

type memProvider struct {
	m       map[string][]byte
	reject  bool
	failGet error
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string][]byte)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	if p.failGet != nil {
		return nil, false, p.failGet
	}
	v, ok := p.m[key]
	return v, ok, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	if p.reject {
		return false, nil
	}
	p.m[key] = value
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error { delete(p.m, key); return nil }
func (p *memProvider) Close(_ context.Context) error           { return nil }

type profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestStorage(t *testing.T, mp pr.Provider, name string) *Provider[profile] {
	t.Helper()
	s, err := NewProvider(ProviderOptions[profile]{
		Provider:  mp,
		Codec:     codec.JSON[profile]{},
		Name:      name,
		Namespace: "test",
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return s
}

func TestProviderStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStorage(t, mp, "profile")

	if _, ok, err := s.Read(ctx); err != nil || ok {
		t.Fatalf("expected absent, ok=%v err=%v", ok, err)
	}

	want := profile{ID: "1", Name: "Ada"}
	if err := s.Write(ctx, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, ok := mp.m["replica:test:profile"]; !ok {
		t.Fatalf("expected key replica:test:profile, have %v", mp.m)
	}
	got, ok, err := s.Read(ctx)
	if err != nil || !ok || got != want {
		t.Fatalf("Read: got=%v ok=%v err=%v", got, ok, err)
	}

	if err := s.Remove(ctx); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := s.Read(ctx); ok {
		t.Fatalf("expected absent after Remove")
	}
}

func TestProviderStorageSelfHeals(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStorage(t, mp, "profile")

	var reasons []string
	s.OnSelfHeal = func(_ string, reason string) { reasons = append(reasons, reason) }

	// corrupt bytes
	mp.m[s.Key()] = []byte("not-wire-format")
	if _, ok, err := s.Read(ctx); err != nil || ok {
		t.Fatalf("corrupt entry should read as absent, ok=%v err=%v", ok, err)
	}
	if _, ok := mp.m[s.Key()]; ok {
		t.Fatalf("corrupt entry was not deleted")
	}

	// valid envelope owned by another replica
	b, err := wire.Encode(wire.Entry{Name: "other", SavedAt: time.Now(), Payload: []byte(`{"id":"x"}`)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	mp.m[s.Key()] = b
	if _, ok, _ := s.Read(ctx); ok {
		t.Fatalf("foreign entry should read as absent")
	}

	// right owner, undecodable payload
	b, _ = wire.Encode(wire.Entry{Name: "profile", SavedAt: time.Now(), Payload: []byte("{")})
	mp.m[s.Key()] = b
	if _, ok, _ := s.Read(ctx); ok {
		t.Fatalf("undecodable payload should read as absent")
	}

	want := []string{"corrupt", "foreign", "value_decode"}
	if len(reasons) != len(want) {
		t.Fatalf("reasons=%v want %v", reasons, want)
	}
	for i := range want {
		if reasons[i] != want[i] {
			t.Fatalf("reasons=%v want %v", reasons, want)
		}
	}
}

func TestProviderStorageErrors(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	s := newTestStorage(t, mp, "profile")

	mp.reject = true
	if err := s.Write(ctx, profile{ID: "1"}); !errors.Is(err, ErrWriteRejected) {
		t.Fatalf("expected ErrWriteRejected, got %v", err)
	}

	boom := errors.New("boom")
	mp.failGet = boom
	if _, _, err := s.Read(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNewProviderValidation(t *testing.T) {
	if _, err := NewProvider(ProviderOptions[profile]{Codec: codec.JSON[profile]{}, Name: "n"}); err == nil {
		t.Fatalf("expected error without provider")
	}
	if _, err := NewProvider(ProviderOptions[profile]{Provider: newMemProvider(), Name: "n"}); err == nil {
		t.Fatalf("expected error without codec")
	}
	if _, err := NewProvider(ProviderOptions[profile]{Provider: newMemProvider(), Codec: codec.JSON[profile]{}}); err == nil {
		t.Fatalf("expected error without name")
	}
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryWith(7)
	if v, ok, _ := m.Read(ctx); !ok || v != 7 {
		t.Fatalf("got %v ok=%v", v, ok)
	}
	_ = m.Remove(ctx)
	if _, ok, _ := m.Read(ctx); ok {
		t.Fatalf("expected absent after Remove")
	}
	_ = m.Write(ctx, 9)
	if v, ok, _ := m.Read(ctx); !ok || v != 9 {
		t.Fatalf("got %v ok=%v", v, ok)
	}
}
