package bigcache

import (
	"context"
	"testing"
	"time"
)

func TestProvider(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{LifeWindow: time.Minute, MaxEntriesInWindow: 16, MaxEntrySize: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close(ctx)

	if _, ok, err := p.Get(ctx, "replica:t:a"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "replica:t:a", []byte("v1"), 0, 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	if b, ok, _ := p.Get(ctx, "replica:t:a"); !ok || string(b) != "v1" {
		t.Fatalf("Get: %q ok=%v", b, ok)
	}
	if err := p.Del(ctx, "replica:t:a"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if err := p.Del(ctx, "replica:t:a"); err != nil {
		t.Fatalf("Del of missing key: %v", err)
	}
}
