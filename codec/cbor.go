package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR serializes values with fxamacker/cbor. Build it with NewCBOR;
// the zero value has no modes and panics on use.
//
// Canonical mode (RFC 8949 core deterministic encoding) gives byte-stable
// output, handy when persisted payloads are compared or hashed.
// Timestamps are always written as RFC3339Nano strings.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

func NewCBOR[V any](canonical bool) (CBOR[V], error) {
	opts := cbor.PreferredUnsortedEncOptions()
	if canonical {
		opts = cbor.CoreDetEncOptions()
	}
	opts.Time = cbor.TimeRFC3339Nano

	em, err := opts.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR is NewCBOR that panics on error; meant for package-level vars and tests.
func MustCBOR[V any](canonical bool) CBOR[V] {
	c, err := NewCBOR[V](canonical)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
