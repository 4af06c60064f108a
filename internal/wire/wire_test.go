package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func mustDecodeRecord(t *testing.T, b []byte) (int64, []byte) {
	t.Helper()
	ts, p, err := DecodeRecord(b)
	if err != nil {
		t.Fatalf("DecodeRecord error: %v", err)
	}
	return ts, p
}

func TestRecordEmptyAndNonEmpty(t *testing.T) {
	cases := []struct {
		ts      int64
		payload []byte
	}{
		{0, nil},
		{1_700_000_000_000, []byte("hello")},
		{math.MaxInt64, []byte{0, 1, 2, 3, 4}},
		{-1, []byte("before epoch")},
	}
	for _, tc := range cases {
		ts, p := mustDecodeRecord(t, EncodeRecord(tc.ts, tc.payload))
		if ts != tc.ts {
			t.Fatalf("timestamp mismatch: got %d want %d", ts, tc.ts)
		}
		if !bytes.Equal(p, tc.payload) {
			t.Fatalf("payload mismatch: got %x want %x", p, tc.payload)
		}
	}
}

func TestRecordRejectsTrailingBytes(t *testing.T) {
	enc := EncodeRecord(7, []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, _, err := DecodeRecord(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestRecordCorruptHeaders(t *testing.T) {
	enc := EncodeRecord(1, []byte("abc"))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, _, err := DecodeRecord(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, _, err := DecodeRecord(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	// vlen sits after magic, version, kind and the 8 byte timestamp
	tooLong := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(tooLong[14:18], uint32(len("abc")+1))
	if _, _, err := DecodeRecord(tooLong); err == nil {
		t.Fatalf("expected error on vlen beyond buffer")
	}

	if _, _, err := DecodeRecord(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}
	if _, _, err := DecodeRecord(enc[:5]); err == nil {
		t.Fatalf("expected error on short header")
	}
}

func TestRecordRejectsUnknownKind(t *testing.T) {
	enc := EncodeRecord(1, []byte("a"))
	enc[5] = kindRecord + 1
	if _, _, err := DecodeRecord(enc); err == nil {
		t.Fatalf("expected error on unknown kind")
	}
}

func TestRecordZeroCopyPayload(t *testing.T) {
	enc := EncodeRecord(1, []byte("Z"))
	_, p := mustDecodeRecord(t, enc)
	p[0] = 'Q'
	_, p2 := mustDecodeRecord(t, enc)
	if p2[0] != 'Q' {
		t.Fatalf("expected zero-copy slice into enc buffer")
	}
}
