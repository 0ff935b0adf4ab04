package core

import "encoding/binary"

// cursor reads little-endian primitives off a byte slice, tracking how much
// has been consumed and surfacing a Partial error instead of panicking when
// the buffer runs short — the shape every message's from_bytes is built on.
type cursor struct {
	b   []byte
	off int
}

func newCursor(b []byte) *cursor { return &cursor{b: b} }

func (c *cursor) need(n int) error {
	if len(c.b)-c.off < n {
		return &PartialErr{Needed: n - (len(c.b) - c.off)}
	}
	return nil
}

func (c *cursor) take(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	out := c.b[c.off : c.off+n]
	c.off += n
	return out, nil
}

func (c *cursor) u8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) u16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) u32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) u64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *cursor) hash32() (Hash32, error) {
	b, err := c.take(32)
	if err != nil {
		return Hash32{}, err
	}
	var h Hash32
	copy(h[:], b)
	return h, nil
}

func (c *cursor) varInt() (VarInt, error) {
	v, n, err := VarIntFromBytes(c.b[c.off:])
	if err != nil {
		return 0, err
	}
	c.off += n
	return v, nil
}

func (c *cursor) varBytes() ([]byte, error) {
	n, err := c.varInt()
	if err != nil {
		return nil, err
	}
	return c.take(int(n))
}

func (c *cursor) netAddr() (NetAddr, error) {
	na, n, err := NetAddrFromBytes(c.b[c.off:])
	if err != nil {
		return NetAddr{}, err
	}
	c.off += n
	return na, nil
}

func (c *cursor) addr() (Addr, error) {
	a, n, err := AddrFromBytes(c.b[c.off:])
	if err != nil {
		return Addr{}, err
	}
	c.off += n
	return a, nil
}

func (c *cursor) consumed() int { return c.off }

// putU32/putU64 append little-endian integers, the write-side counterpart
// to cursor's reads.
func putU32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func putU64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func putU16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

func putVarBytes(dst []byte, b []byte) []byte {
	dst = append(dst, VarInt(len(b)).Bytes()...)
	return append(dst, b...)
}
