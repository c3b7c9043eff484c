package badger

import (
	"context"
	"errors"
	"time"

	bg "github.com/dgraph-io/badger/v4"

	pr "github.com/unkn0wn-root/replica/provider"
)

// Provider persists replicas on disk with Badger, so cached values survive
// process restarts.
type Provider struct {
	db      *bg.DB
	closeDB bool
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Dir      string // required unless InMemory
	InMemory bool   // keep everything in RAM (tests)
}

// Open opens (or creates) a Badger database owned by the provider.
func Open(cfg Config) (*Provider, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, errors.New("badger provider: dir is required")
	}
	opts := bg.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = bg.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := bg.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Provider{db: db, closeDB: true}, nil
}

// Wrap uses an existing database; Close leaves it open.
func Wrap(db *bg.DB) *Provider { return &Provider{db: db} }

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	var val []byte
	err := p.db.View(func(txn *bg.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, bg.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	err := p.db.Update(func(txn *bg.Txn) error {
		e := bg.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	return p.db.Update(func(txn *bg.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (p *Provider) Close(_ context.Context) error {
	if !p.closeDB {
		return nil
	}
	return p.db.Close()
}
