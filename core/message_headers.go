package core

// BlockLocator is a sparse list of recent block hashes; the remote returns
// headers/blocks descending from the most recent locator entry it
// recognizes. Locator entries are sent in canonical (non-reversed) form.
type BlockLocator struct {
	ProtocolVersion uint32
	Hashes          []Hash32
	StopHash        Hash32
}

func (l BlockLocator) bytes() []byte {
	out := putU32(nil, l.ProtocolVersion)
	out = append(out, VarInt(len(l.Hashes)).Bytes()...)
	for _, h := range l.Hashes {
		out = append(out, h[:]...)
	}
	return append(out, l.StopHash[:]...)
}

func blockLocatorFromCursor(c *cursor) (BlockLocator, error) {
	var l BlockLocator
	var err error
	if l.ProtocolVersion, err = c.u32(); err != nil {
		return l, err
	}
	count, err := c.varInt()
	if err != nil {
		return l, err
	}
	l.Hashes = make([]Hash32, 0, count)
	for i := VarInt(0); i < count; i++ {
		h, err := c.hash32()
		if err != nil {
			return l, err
		}
		l.Hashes = append(l.Hashes, h)
	}
	if l.StopHash, err = c.hash32(); err != nil {
		return l, err
	}
	return l, nil
}

// GetHeadersMsg requests headers descending from the locator. The remote
// peer answers with a headers message (up to MaxHeaders entries); this
// client sends getheaders but does not answer one it receives.
type GetHeadersMsg struct{ Locator BlockLocator }

func (m GetHeadersMsg) Command() string { return "getheaders" }
func (m GetHeadersMsg) Bytes() []byte   { return m.Locator.bytes() }

func GetHeadersFromBytes(b []byte) (GetHeadersMsg, error) {
	c := newCursor(b)
	l, err := blockLocatorFromCursor(c)
	return GetHeadersMsg{Locator: l}, err
}

// GetBlocksMsg shares getheaders' payload shape but requests full blocks
// rather than headers. Present in the original implementation and carried
// here for wire-codec completeness; the Coordinator's steady-state pipeline
// drives sync through getheaders/getdata exclusively, per spec.
type GetBlocksMsg struct{ Locator BlockLocator }

func (m GetBlocksMsg) Command() string { return "getblocks" }
func (m GetBlocksMsg) Bytes() []byte   { return m.Locator.bytes() }

func GetBlocksFromBytes(b []byte) (GetBlocksMsg, error) {
	c := newCursor(b)
	l, err := blockLocatorFromCursor(c)
	return GetBlocksMsg{Locator: l}, err
}

// HeaderRecord is one entry of a headers message: a full 80-byte header plus
// the VarInt transaction count that always follows it on the wire (the
// count is not validated here — it describes a block body this message
// never carries).
type HeaderRecord struct {
	Header  BlockHeader
	TxCount VarInt
}

// HeadersMsg carries a VarInt count of HeaderRecord entries. handle forwards
// the list to the Coordinator; headers pass through unvalidated at this
// layer (§4.2).
type HeadersMsg struct{ Headers []HeaderRecord }

func (m HeadersMsg) Command() string { return "headers" }

func (m HeadersMsg) Bytes() []byte {
	out := VarInt(len(m.Headers)).Bytes()
	for _, h := range m.Headers {
		out = append(out, h.Header.Bytes()...)
		out = append(out, h.TxCount.Bytes()...)
	}
	return out
}

func HeadersFromBytes(b []byte) (HeadersMsg, error) {
	c := newCursor(b)
	count, err := c.varInt()
	if err != nil {
		return HeadersMsg{}, err
	}
	out := make([]HeaderRecord, 0, count)
	for i := VarInt(0); i < count; i++ {
		hb, err := c.take(blockHeaderSize)
		if err != nil {
			return HeadersMsg{}, err
		}
		h, err := BlockHeaderFromBytes(hb)
		if err != nil {
			return HeadersMsg{}, err
		}
		txCount, err := c.varInt()
		if err != nil {
			return HeadersMsg{}, err
		}
		out = append(out, HeaderRecord{Header: h, TxCount: txCount})
	}
	return HeadersMsg{Headers: out}, nil
}
