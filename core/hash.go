package core

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // Bitcoin HASH160 requires ripemd160
)

// Hash32 is a double-SHA-256 digest, stored internally in the same byte
// order it is produced: reversal only happens at DisplayString.
type Hash32 [32]byte

// Hash20 is a SHA-256-then-RIPEMD-160 digest (Bitcoin's HASH160).
type Hash20 [20]byte

// Hashable is implemented by every wire type whose identity is derived from
// its serialized bytes.
type Hashable interface {
	Bytes() []byte
}

// DoubleSHA256 hashes b with SHA-256 twice, the Bitcoin block/transaction
// identity primitive.
func DoubleSHA256(b []byte) Hash32 {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return Hash32(second)
}

// Hash160 hashes b with SHA-256 then RIPEMD-160, used for P2PKH/P2SH
// addresses and OP_HASH160.
func Hash160(b []byte) Hash20 {
	sh := sha256.Sum256(b)
	r := ripemd160.New()
	r.Write(sh[:])
	var out Hash20
	copy(out[:], r.Sum(nil))
	return out
}

// HashOf returns the double-SHA-256 identity of h's serialized bytes.
func HashOf(h Hashable) Hash32 {
	return DoubleSHA256(h.Bytes())
}

// reversed returns a byte-order-reversed copy of b.
func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// DisplayString renders a Hash32 the way users and block explorers see it:
// the byte order is reversed before hex-encoding. This is the "display"
// orientation named throughout the wire protocol; internal fields (e.g. a
// header's previous-block hash) keep the unreversed, "internal" orientation.
func (h Hash32) DisplayString() string {
	return hex.EncodeToString(reversed(h[:]))
}

func (h Hash32) String() string { return h.DisplayString() }

// IsZero reports whether h is the all-zero hash, used as the genesis
// previous-block-hash sentinel.
func (h Hash32) IsZero() bool {
	return h == Hash32{}
}

func (h Hash20) DisplayString() string {
	return hex.EncodeToString(reversed(h[:]))
}

func (h Hash20) String() string { return hex.EncodeToString(h[:]) }

// Hash32FromDisplay parses a big-endian hex string (as shown by a block
// explorer) back into the internal byte order.
func Hash32FromDisplay(s string) (Hash32, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash32{}, err
	}
	if len(b) != 32 {
		return Hash32{}, errInvalidHashLength
	}
	var out Hash32
	copy(out[:], reversed(b))
	return out, nil
}
