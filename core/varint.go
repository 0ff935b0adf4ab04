package core

import "encoding/binary"

// VarInt is Bitcoin's variable-length unsigned integer encoding: a one-byte
// tag selects the width of what follows.
type VarInt uint64

const (
	varIntTag16 = 0xFD
	varIntTag32 = 0xFE
	varIntTag64 = 0xFF
)

// Bytes encodes v in the minimal width for its range, matching the wire
// test vectors: encode(0x42)=[0x42], encode(0xFAFE)=[0xFD,0xFE,0xFA],
// encode(0xFAFBFCFD)=[0xFE,0xFD,0xFC,0xFB,0xFA].
func (v VarInt) Bytes() []byte {
	switch {
	case v < varIntTag16:
		return []byte{byte(v)}
	case v <= 0xFFFF:
		b := make([]byte, 3)
		b[0] = varIntTag16
		binary.LittleEndian.PutUint16(b[1:], uint16(v))
		return b
	case v <= 0xFFFFFFFF:
		b := make([]byte, 5)
		b[0] = varIntTag32
		binary.LittleEndian.PutUint32(b[1:], uint32(v))
		return b
	default:
		b := make([]byte, 9)
		b[0] = varIntTag64
		binary.LittleEndian.PutUint64(b[1:], uint64(v))
		return b
	}
}

// Len returns the number of bytes Bytes would produce for v.
func (v VarInt) Len() int { return len(v.Bytes()) }

// VarIntFromBytes decodes a VarInt from the front of b, returning the value
// and the exact number of bytes consumed. Unlike the original Rust
// implementation this correctly reports the minimal consumed length for
// every tag width, which downstream stream-oriented parsing depends on.
func VarIntFromBytes(b []byte) (VarInt, int, error) {
	if len(b) < 1 {
		return 0, 0, &PartialErr{Needed: 1}
	}
	switch b[0] {
	case varIntTag16:
		if len(b) < 3 {
			return 0, 0, &PartialErr{Needed: 3 - len(b)}
		}
		return VarInt(binary.LittleEndian.Uint16(b[1:3])), 3, nil
	case varIntTag32:
		if len(b) < 5 {
			return 0, 0, &PartialErr{Needed: 5 - len(b)}
		}
		return VarInt(binary.LittleEndian.Uint32(b[1:5])), 5, nil
	case varIntTag64:
		if len(b) < 9 {
			return 0, 0, &PartialErr{Needed: 9 - len(b)}
		}
		return VarInt(binary.LittleEndian.Uint64(b[1:9])), 9, nil
	default:
		return VarInt(b[0]), 1, nil
	}
}
