package core

import (
	"encoding/binary"
)

// Network magic values, selecting which Bitcoin network an envelope belongs
// to. Carried in every message's first four bytes.
const (
	MagicMain     uint32 = 0xD9B4BEF9
	MagicTestnet3 uint32 = 0x0709110B
	MagicTestnet  uint32 = 0xDAB5BFFA
	MagicNamecoin uint32 = 0xFEB4BEF9
)

// Default listening ports per network.
const (
	PortMain     = 8333
	PortTestnet3 = 18333
)

const commandSize = 12
const envelopeHeaderSize = 4 + commandSize + 4 + 4

// Envelope is the on-the-wire framing shared by every message: magic,
// zero-padded ASCII command, payload length, and a checksum (the first four
// bytes of double-SHA-256 of the payload).
type Envelope struct {
	Magic   uint32
	Command string
	Payload []byte
}

func encodeCommand(cmd string) [commandSize]byte {
	var out [commandSize]byte
	copy(out[:], cmd)
	return out
}

func decodeCommand(b [commandSize]byte) string {
	n := 0
	for n < commandSize && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func checksum(payload []byte) [4]byte {
	h := DoubleSHA256(payload)
	var out [4]byte
	copy(out[:], h[:4])
	return out
}

// Bytes serializes the envelope: magic, command, payload length, checksum,
// then the payload itself.
func (e Envelope) Bytes() []byte {
	cmd := encodeCommand(e.Command)
	cs := checksum(e.Payload)

	out := make([]byte, 0, envelopeHeaderSize+len(e.Payload))
	var magicBuf [4]byte
	binary.LittleEndian.PutUint32(magicBuf[:], e.Magic)
	out = append(out, magicBuf[:]...)
	out = append(out, cmd[:]...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(e.Payload)))
	out = append(out, lenBuf[:]...)
	out = append(out, cs[:]...)
	out = append(out, e.Payload...)
	return out
}

// acceptedMagics is the set Parse validates envelope magic against. The
// node only ever speaks one network at a time, but accepting the whole
// family lets a single build run against any of them via configuration.
var acceptedMagics = map[uint32]bool{
	MagicMain:     true,
	MagicTestnet3: true,
	MagicTestnet:  true,
	MagicNamecoin: true,
}

// ParseEnvelope extracts one framed message from the front of b, returning
// the envelope and the number of bytes consumed. It never allocates more
// than necessary to report a Partial error when fewer bytes than the
// declared payload length are buffered.
func ParseEnvelope(b []byte) (Envelope, int, error) {
	if len(b) < envelopeHeaderSize {
		return Envelope{}, 0, &PartialErr{Needed: envelopeHeaderSize - len(b)}
	}
	magic := binary.LittleEndian.Uint32(b[0:4])
	if !acceptedMagics[magic] {
		return Envelope{}, 0, Protocol(ErrInvalidMagic)
	}
	var cmdBuf [commandSize]byte
	copy(cmdBuf[:], b[4:4+commandSize])
	cmd := decodeCommand(cmdBuf)

	lenOff := 4 + commandSize
	payloadLen := binary.LittleEndian.Uint32(b[lenOff : lenOff+4])
	csOff := lenOff + 4
	total := envelopeHeaderSize + int(payloadLen)
	if len(b) < total {
		return Envelope{}, 0, &PartialErr{Needed: total - len(b)}
	}
	payload := b[envelopeHeaderSize:total]
	want := checksum(payload)
	var got [4]byte
	copy(got[:], b[csOff:csOff+4])
	if got != want {
		return Envelope{}, 0, Protocol(ErrInvalidChecksum)
	}
	return Envelope{Magic: magic, Command: cmd, Payload: append([]byte(nil), payload...)}, total, nil
}
