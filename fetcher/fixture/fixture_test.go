package fixture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/unkn0wn-root/replica/codec"
)

type item struct {
	ID int `json:"id"`
}

func writeFixture(t *testing.T, dir, file, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, file), []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestFetch(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "feed.json", `[{"id":1},{"id":2}]`)
	writeFixture(t, dir, "feed&PI=2&PS=20.json", `[{"id":41}]`)
	src := Source{Dir: dir}
	c := codec.JSON[[]item]{}

	got, err := Fetch[[]item](src, "feed", c)(context.Background())
	if err != nil || len(got) != 2 || got[1].ID != 2 {
		t.Fatalf("got=%v err=%v", got, err)
	}

	got, err = FetchPage[[]item](src, "feed", Page{Index: 2, Size: 20}, c)(context.Background())
	if err != nil || len(got) != 1 || got[0].ID != 41 {
		t.Fatalf("page: got=%v err=%v", got, err)
	}
}

func TestFetchMissingAndCanceled(t *testing.T) {
	src := Source{Dir: t.TempDir(), Ext: "bin"}
	if p := src.Path("x", nil); filepath.Ext(p) != ".bin" {
		t.Fatalf("path=%s", p)
	}

	_, err := Fetch[item](src, "missing", codec.JSON[item]{})(context.Background())
	if !errors.Is(err, ErrNoFixture) {
		t.Fatalf("expected ErrNoFixture, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Fetch[item](src, "missing", codec.JSON[item]{})(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSubstitute(t *testing.T) {
	fixture := func(context.Context) (int, error) { return 1, nil }
	live := func(context.Context) (int, error) { return 2, nil }

	if v, _ := Substitute[int](true, fixture, live)(context.Background()); v != 1 {
		t.Fatalf("enabled: got %d", v)
	}
	if v, _ := Substitute[int](false, fixture, live)(context.Background()); v != 2 {
		t.Fatalf("disabled: got %d", v)
	}
}
