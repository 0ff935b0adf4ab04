package core

// GetAddrMsg requests a peer's known-active address list. Empty payload.
type GetAddrMsg struct{}

func (GetAddrMsg) Command() string { return "getaddr" }
func (GetAddrMsg) Bytes() []byte   { return nil }

// AddrMsg carries a VarInt count followed by that many 30-byte NetAddr
// records. handle forwards the list to the Coordinator, which folds new
// entries into its known-active address set.
type AddrMsg struct {
	Addrs []NetAddr
}

func (m AddrMsg) Command() string { return "addr" }

func (m AddrMsg) Bytes() []byte {
	out := VarInt(len(m.Addrs)).Bytes()
	for _, a := range m.Addrs {
		out = append(out, a.Bytes()...)
	}
	return out
}

func AddrFromWire(b []byte) (AddrMsg, error) {
	c := newCursor(b)
	count, err := c.varInt()
	if err != nil {
		return AddrMsg{}, err
	}
	out := make([]NetAddr, 0, count)
	for i := VarInt(0); i < count; i++ {
		na, err := c.netAddr()
		if err != nil {
			return AddrMsg{}, err
		}
		out = append(out, na)
	}
	return AddrMsg{Addrs: out}, nil
}
