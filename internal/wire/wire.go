// Package wire frames persisted replica values.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version   byte = 1
	kindValue byte = 1
)

var (
	ErrCorrupt  = errors.New("replica: corrupt persisted entry")
	ErrBadName  = errors.New("replica: invalid entry name length")
	magic4      = [...]byte{'R', 'P', 'L', 'C'}
	headerBytes = 4 + 1 + 1 + 8 + 2
)

// Entry is a persisted replica value.
// Name is the owning replica and guards against reading a foreign value
// from a shared key space.
type Entry struct {
	Name    string
	SavedAt time.Time
	Payload []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode lays out:
//
//	magic(4) | ver(1) | kind(1=value) | savedAt(i64 be, unix nanos) |
//	nameLen(u16 be) | name(nameLen) | vlen(u32 be) | payload(vlen)
func Encode(e Entry) ([]byte, error) {
	if l := len(e.Name); l == 0 || l > 0xFFFF {
		return nil, ErrBadName
	}

	var buf bytes.Buffer
	buf.Grow(headerBytes + len(e.Name) + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindValue)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.SavedAt.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Name)))
	buf.Write(u2[:])
	buf.WriteString(e.Name)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)

	return buf.Bytes(), nil
}

// Decode parses an entry. Payload aliases b (no copy).
// Trailing bytes are rejected.
func Decode(b []byte) (Entry, error) {
	if len(b) < headerBytes || !hasMagic(b) || b[4] != version || b[5] != kindValue {
		return Entry{}, ErrCorrupt
	}
	off := 6

	savedAt := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	nlen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if nlen == 0 || nlen > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	name := string(b[off : off+nlen])
	off += nlen

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // overflow-safe, no trailing bytes
		return Entry{}, ErrCorrupt
	}

	return Entry{
		Name:    name,
		SavedAt: time.Unix(0, savedAt),
		Payload: b[off : off+vlen],
	}, nil
}
