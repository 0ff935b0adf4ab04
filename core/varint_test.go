package core

import (
	"bytes"
	"testing"
)

func TestVarIntEncode(t *testing.T) {
	cases := []struct {
		v    VarInt
		want []byte
	}{
		{0x42, []byte{0x42}},
		{0xFAFE, []byte{0xFD, 0xFE, 0xFA}},
		{0xFAFBFCFD, []byte{0xFE, 0xFD, 0xFC, 0xFB, 0xFA}},
	}
	for _, c := range cases {
		got := c.v.Bytes()
		if !bytes.Equal(got, c.want) {
			t.Fatalf("encode(0x%x) = %x, want %x", uint64(c.v), got, c.want)
		}
	}
}

func TestVarIntRoundTrip(t *testing.T) {
	values := []VarInt{0, 1, 0xFC, 0xFD, 0xFFFF, 0x10000, 0xFFFFFFFF, 0x100000000, ^VarInt(0)}
	for _, v := range values {
		enc := v.Bytes()
		got, n, err := VarIntFromBytes(enc)
		if err != nil {
			t.Fatalf("decode(%x): %v", enc, err)
		}
		if got != v {
			t.Fatalf("decode(%x) = %d, want %d", enc, got, v)
		}
		if n != len(enc) {
			t.Fatalf("decode(%x) consumed %d bytes, want %d", enc, n, len(enc))
		}
	}
}

func TestVarIntFromBytesPartial(t *testing.T) {
	_, _, err := VarIntFromBytes([]byte{varIntTag32, 0x01, 0x02})
	if err == nil {
		t.Fatalf("expected partial error for truncated varint")
	}
	if _, ok := err.(*PartialErr); !ok {
		t.Fatalf("expected *PartialErr, got %T", err)
	}
}
