package core

// InvType identifies the kind of object an inventory vector names.
type InvType uint32

const (
	InvTX            InvType = 1
	InvBlock         InvType = 2
	InvFilteredBlock InvType = 3
	InvCmpctBlock    InvType = 4
)

// InvVect is one inventory entry: a type tag and the object's hash.
type InvVect struct {
	Type InvType
	Hash Hash32
}

func (v InvVect) bytes() []byte {
	out := putU32(nil, uint32(v.Type))
	return append(out, v.Hash[:]...)
}

func invVectFromCursor(c *cursor) (InvVect, error) {
	var v InvVect
	t, err := c.u32()
	if err != nil {
		return v, err
	}
	h, err := c.hash32()
	if err != nil {
		return v, err
	}
	return InvVect{Type: InvType(t), Hash: h}, nil
}

// invList is the shared payload of getdata/inv/notfound: a VarInt count
// followed by that many (type, hash) entries.
type invList struct{ Items []InvVect }

func (l invList) bytes() []byte {
	out := VarInt(len(l.Items)).Bytes()
	for _, it := range l.Items {
		out = append(out, it.bytes()...)
	}
	return out
}

func invListFromBytes(b []byte) (invList, error) {
	c := newCursor(b)
	count, err := c.varInt()
	if err != nil {
		return invList{}, err
	}
	items := make([]InvVect, 0, count)
	for i := VarInt(0); i < count; i++ {
		v, err := invVectFromCursor(c)
		if err != nil {
			return invList{}, err
		}
		items = append(items, v)
	}
	return invList{Items: items}, nil
}

// GetDataMsg requests the objects named by Items; the Coordinator uses it to
// request block bodies by hash.
type GetDataMsg struct{ Items []InvVect }

func (m GetDataMsg) Command() string { return "getdata" }
func (m GetDataMsg) Bytes() []byte   { return invList{Items: m.Items}.bytes() }

func GetDataFromBytes(b []byte) (GetDataMsg, error) {
	l, err := invListFromBytes(b)
	return GetDataMsg{Items: l.Items}, err
}

// GetDataForBlocks builds a getdata requesting the given block hashes, the
// shape the Coordinator's download pipeline sends for each batch popped off
// download_queue.
func GetDataForBlocks(hashes []Hash32) GetDataMsg {
	items := make([]InvVect, len(hashes))
	for i, h := range hashes {
		items[i] = InvVect{Type: InvBlock, Hash: h}
	}
	return GetDataMsg{Items: items}
}

// InvMsg announces objects the sender has available.
type InvMsg struct{ Items []InvVect }

func (m InvMsg) Command() string { return "inv" }
func (m InvMsg) Bytes() []byte   { return invList{Items: m.Items}.bytes() }

func InvFromBytes(b []byte) (InvMsg, error) {
	l, err := invListFromBytes(b)
	return InvMsg{Items: l.Items}, err
}

// NotFoundMsg is sent in reply to a getdata naming objects the peer does not
// have.
type NotFoundMsg struct{ Items []InvVect }

func (m NotFoundMsg) Command() string { return "notfound" }
func (m NotFoundMsg) Bytes() []byte   { return invList{Items: m.Items}.bytes() }

func NotFoundFromBytes(b []byte) (NotFoundMsg, error) {
	l, err := invListFromBytes(b)
	return NotFoundMsg{Items: l.Items}, err
}
