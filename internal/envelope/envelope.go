// Package envelope frames cache payloads with their expiry metadata for
// stores that have no native per-entry TTL (filesystem, bigcache). The frame
// is strict: decoders reject bad magic, unknown versions, and trailing bytes
// so a torn or foreign write surfaces as ErrCorrupt instead of a bogus value.
package envelope

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("fallcache: corrupt entry")
	magic4     = [...]byte{'F', 'C', 'H', '1'}
)

// Frame: magic(4) | ver(1) | expiresAt unix-nano (i64 be, 0 = no expiry) |
// vlen(u32 be) | payload(vlen)
const headerLen = 4 + 1 + 8 + 4

// Encode frames payload with an absolute expiry. A zero expiresAt means the
// entry never expires.
func Encode(payload []byte, expiresAt time.Time) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte

	var exp int64
	if !expiresAt.IsZero() {
		exp = expiresAt.UnixNano()
	}
	binary.BigEndian.PutUint64(u8[:], uint64(exp))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode unpacks a frame. expiresAt is the zero time when the entry has no
// expiry. The payload slice aliases b.
func Decode(b []byte) (payload []byte, expiresAt time.Time, err error) {
	if len(b) < headerLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return nil, time.Time{}, ErrCorrupt
	}

	off := 5

	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // strict framing; no trailing bytes
		return nil, time.Time{}, ErrCorrupt
	}

	if exp != 0 {
		expiresAt = time.Unix(0, exp)
	}
	return b[off : off+vlen], expiresAt, nil
}

// Expired reports whether a decoded expiry is in the past. The zero time
// never expires.
func Expired(expiresAt time.Time, now time.Time) bool {
	return !expiresAt.IsZero() && expiresAt.Before(now)
}
