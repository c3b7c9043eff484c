package replica

import (
	"errors"
	"fmt"
)

var (
	ErrClosed          = errors.New("replica: closed")
	ErrLoadCanceled    = errors.New("replica: load canceled")
	ErrInvalidSettings = errors.New("replica: invalid settings")
)

// FetchError wraps a failure of the fetch capability. It is stored in State.Error.
type FetchError struct {
	Replica string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("replica %q: fetch failed: %v", e.Replica, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageError wraps a failure of the storage capability.
// Op is one of "read", "write", "remove".
type StorageError struct {
	Replica string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("replica %q: storage %s failed: %v", e.Replica, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// LoadingError is returned by FetchData when the awaited load ended without
// a result, either canceled (ErrLoadCanceled) or closed (ErrClosed).
type LoadingError struct {
	Replica string
	Err     error
}

func (e *LoadingError) Error() string {
	return fmt.Sprintf("replica %q: loading: %v", e.Replica, e.Err)
}

func (e *LoadingError) Unwrap() error { return e.Err }
