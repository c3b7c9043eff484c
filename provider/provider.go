// Package provider defines the byte stores a replica can persist into.
//
// A provider must return from Get exactly the bytes given to Set for the same
// key. Stores that compress or otherwise transform values must undo it fully.
//
// Keys under "replica:" are owned by storage.Provider. Foreign values written
// there fail envelope validation and are deleted on read.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs, safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// IO or remote failures return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl <= 0 means no expiry. cost may be ignored.
	// ok=false reports that the store refused the write (admission, pressure).
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
