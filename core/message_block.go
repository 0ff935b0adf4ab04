package core

// BlockMsg carries a full serialized block. handle forwards it to the
// Coordinator; identity and Merkle root are not yet verified at this layer
// (that is the Validator's job, §4.4).
type BlockMsg struct{ Block Block }

func (m BlockMsg) Command() string { return "block" }
func (m BlockMsg) Bytes() []byte   { return m.Block.Bytes() }

func BlockMsgFromBytes(b []byte) (BlockMsg, error) {
	blk, _, err := BlockFromBytes(b)
	return BlockMsg{Block: blk}, err
}
