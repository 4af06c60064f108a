// Package wire frames cold-tier records.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version     byte = 1
	kindRecord  byte = 1
	headerBytes      = 4 + 1 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("fetchcache: corrupt cold record")
	magic4     = [...]byte{'F', 'C', 'C', 'R'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Record: magic(4) | ver(1) | kind(1) | updatedAt unix ms (i64 be) | vlen(u32 be) | payload(vlen)
func EncodeRecord(updatedAtMs int64, payload []byte) []byte {
	return encode(kindRecord, updatedAtMs, payload)
}

// DecodeRecord returns a payload slice aliasing b.
func DecodeRecord(b []byte) (updatedAtMs int64, payload []byte, err error) {
	return decode(kindRecord, b)
}

func encode(kind byte, ts int64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(headerBytes + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kind)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(ts))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func decode(kind byte, b []byte) (int64, []byte, error) {
	if len(b) < headerBytes || !hasMagic(b) || b[4] != version || b[5] != kind {
		return 0, nil, ErrCorrupt
	}
	off := 6

	ts := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return 0, nil, ErrCorrupt
	}
	return ts, b[off : off+vlen], nil
}
