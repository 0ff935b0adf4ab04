package core

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// FeeFilterMsg asks the peer not to announce transactions below FeeRate
// satoshis per kilobyte. Accepted and logged; influences no control flow in
// this client (mempool maintenance is out of scope).
type FeeFilterMsg struct{ FeeRate uint64 }

func (m FeeFilterMsg) Command() string { return "feefilter" }
func (m FeeFilterMsg) Bytes() []byte   { return putU64(nil, m.FeeRate) }

func FeeFilterFromBytes(b []byte) (FeeFilterMsg, error) {
	c := newCursor(b)
	v, err := c.u64()
	return FeeFilterMsg{FeeRate: v}, err
}

// SendHeadersMsg requests that new blocks be announced via headers rather
// than inv. Empty payload; accepted and logged only.
type SendHeadersMsg struct{}

func (SendHeadersMsg) Command() string { return "sendheaders" }
func (SendHeadersMsg) Bytes() []byte   { return nil }

// trustedAlertKeys are the mainnet and testnet public keys the original
// Satoshi client's alert system trusted. The corresponding private keys
// have since been publicly disclosed, so a "trusted" alert carries no
// security meaning; this client accepts and logs alerts without acting on
// them (§4.1, "alerts influence no control flow").
var trustedAlertKeys = []string{
	"04fc9702847840aaf195de8442ebecedf5b095cdbb9bc716bda9110971b28a49e0ead8564ff0db22209e0374782c093bb899692d524e9d6a6956e7c5ecbcd68284",
	"04302390343f91cc401d56d68b123028bf52e5fca1939df127f63c6467cdf9c8e2c14b61104cf817d0b780da337893ecc4aaff1309e536162dabbdb45200ca2b0a",
}

// AlertMsg is the deprecated network alert message. Payload and signature
// are each VarInt-length-prefixed; Trusted records whether the signature
// verified against one of the trusted (long-disclosed) keys.
type AlertMsg struct {
	PayloadBytes []byte
	Signature    []byte
	Trusted      bool
}

func (m AlertMsg) Command() string { return "alert" }

func (m AlertMsg) Bytes() []byte {
	out := putVarBytes(nil, m.PayloadBytes)
	return putVarBytes(out, m.Signature)
}

func AlertFromBytes(b []byte) (AlertMsg, error) {
	c := newCursor(b)
	payload, err := c.varBytes()
	if err != nil {
		return AlertMsg{}, err
	}
	sig, err := c.varBytes()
	if err != nil {
		return AlertMsg{}, err
	}
	msg := AlertMsg{PayloadBytes: payload, Signature: sig}
	msg.Trusted = verifyAlertSignature(payload, sig)
	return msg, nil
}

func verifyAlertSignature(payload, sig []byte) bool {
	digest := DoubleSHA256(payload)
	parsedSig, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	for _, keyHex := range trustedAlertKeys {
		key := mustHex(keyHex)
		pub, err := btcec.ParsePubKey(key)
		if err != nil {
			continue
		}
		if parsedSig.Verify(digest[:], pub) {
			return true
		}
	}
	return false
}
