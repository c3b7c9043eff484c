// Package fixture substitutes canned payload files for a replica's fetch.
//
// A fixture for name "feed" lives at <Dir>/feed.json; a paginated request for
// page 2 of size 20 at <Dir>/feed&PI=2&PS=20.json.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/unkn0wn-root/replica"
	"github.com/unkn0wn-root/replica/codec"
)

// ErrNoFixture is returned when no payload file exists for a request.
var ErrNoFixture = errors.New("fixture: not found")

const defaultExt = "json"

// Page selects a paginated fixture.
type Page struct {
	Index int
	Size  int
}

type Source struct {
	Dir    string
	Ext    string         // "" => "json"
	Logger replica.Logger // nil => NopLogger
}

// Path returns the fixture file for name, optionally paginated.
func (s Source) Path(name string, page *Page) string {
	file := name
	if page != nil {
		file = fmt.Sprintf("%s&PI=%d&PS=%d", name, page.Index, page.Size)
	}
	ext := s.Ext
	if ext == "" {
		ext = defaultExt
	}
	return filepath.Join(s.Dir, file+"."+ext)
}

// Read returns the raw payload for name.
func (s Source) Read(name string, page *Page) ([]byte, error) {
	log := s.Logger
	if log == nil {
		log = replica.NopLogger{}
	}
	path := s.Path(name, page)
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("fixture not found", replica.Fields{"fixture": name, "path": path})
		return nil, fmt.Errorf("%w: %s", ErrNoFixture, path)
	case err != nil:
		log.Warn("fixture unreadable", replica.Fields{"fixture": name, "path": path, "err": err})
		return nil, err
	}
	log.Debug("fixture read", replica.Fields{"fixture": name, "path": path, "bytes": len(b)})
	return b, nil
}

// Fetch returns a FetchFunc that decodes the fixture for name with c.
func Fetch[T any](src Source, name string, c codec.Codec[T]) replica.FetchFunc[T] {
	return fetch(src, name, nil, c)
}

// FetchPage is Fetch for one page of a paginated request.
func FetchPage[T any](src Source, name string, page Page, c codec.Codec[T]) replica.FetchFunc[T] {
	return fetch(src, name, &page, c)
}

func fetch[T any](src Source, name string, page *Page, c codec.Codec[T]) replica.FetchFunc[T] {
	return func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		b, err := src.Read(name, page)
		if err != nil {
			return zero, err
		}
		v, err := c.Decode(b)
		if err != nil {
			return zero, fmt.Errorf("fixture: decode %s: %w", name, err)
		}
		return v, nil
	}
}

// Substitute returns fixture when enabled, live otherwise.
func Substitute[T any](enabled bool, fixture, live replica.FetchFunc[T]) replica.FetchFunc[T] {
	if enabled && fixture != nil {
		return fixture
	}
	return live
}
