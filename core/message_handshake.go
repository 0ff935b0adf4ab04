package core

// Message is the uniform surface every wire payload implements: a command
// name and its serialized bytes. Handling dispatches on a type switch over
// this tagged variant rather than virtual methods, per the wire protocol's
// sum-of-concrete-payload-types design.
type Message interface {
	Command() string
	Bytes() []byte
}

// VersionMsg is the handshake-opening message. ProtocolVersion is this
// node's supported wire version; Services advertises node capabilities
// (always 0 — this client offers none); Receiver/Sender are the two 26-byte
// address records; Nonce detects self-connections; UserAgent is a free-form
// identifying string; StartHeight is the sender's best known block height.
type VersionMsg struct {
	ProtocolVersion uint32
	Services        uint64
	Timestamp       uint64
	Receiver        Addr
	Sender          Addr
	Nonce           uint64
	UserAgent       string
	StartHeight     uint32
	Relay           bool
}

func (m VersionMsg) Command() string { return "version" }

func (m VersionMsg) Bytes() []byte {
	out := make([]byte, 0, 128)
	out = putU32(out, m.ProtocolVersion)
	out = putU64(out, m.Services)
	out = putU64(out, m.Timestamp)
	out = append(out, m.Receiver.Bytes()...)
	out = append(out, m.Sender.Bytes()...)
	out = putU64(out, m.Nonce)
	out = putVarBytes(out, []byte(m.UserAgent))
	out = putU32(out, m.StartHeight)
	relay := byte(0)
	if m.Relay {
		relay = 1
	}
	return append(out, relay)
}

func VersionFromBytes(b []byte) (VersionMsg, error) {
	c := newCursor(b)
	var m VersionMsg
	var err error
	if m.ProtocolVersion, err = c.u32(); err != nil {
		return m, err
	}
	if m.Services, err = c.u64(); err != nil {
		return m, err
	}
	if m.Timestamp, err = c.u64(); err != nil {
		return m, err
	}
	if m.Receiver, err = c.addr(); err != nil {
		return m, err
	}
	if m.Sender, err = c.addr(); err != nil {
		return m, err
	}
	if m.Nonce, err = c.u64(); err != nil {
		return m, err
	}
	ua, err := c.varBytes()
	if err != nil {
		return m, err
	}
	m.UserAgent = string(ua)
	if m.StartHeight, err = c.u32(); err != nil {
		return m, err
	}
	relay, err := c.u8()
	if err != nil {
		// relay byte is commonly omitted by older peers; default to true.
		m.Relay = true
		return m, nil
	}
	m.Relay = relay != 0
	return m, nil
}

// VerAckMsg has an empty payload and advances the handshake.
type VerAckMsg struct{}

func (VerAckMsg) Command() string { return "verack" }
func (VerAckMsg) Bytes() []byte   { return nil }

// PingMsg carries a nonce the peer must echo back in a pong.
type PingMsg struct{ Nonce uint64 }

func (m PingMsg) Command() string { return "ping" }
func (m PingMsg) Bytes() []byte   { return putU64(nil, m.Nonce) }

func PingFromBytes(b []byte) (PingMsg, error) {
	c := newCursor(b)
	n, err := c.u64()
	return PingMsg{Nonce: n}, err
}

// PongMsg echoes a ping's nonce; causes no state change.
type PongMsg struct{ Nonce uint64 }

func (m PongMsg) Command() string { return "pong" }
func (m PongMsg) Bytes() []byte   { return putU64(nil, m.Nonce) }

func PongFromBytes(b []byte) (PongMsg, error) {
	c := newCursor(b)
	n, err := c.u64()
	return PongMsg{Nonce: n}, err
}
