package core

import "encoding/hex"

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// blockHeaderSize is fixed at 80 bytes: version(4) + prev(32) + merkle(32) +
// time(4) + bits(4) + nonce(4).
const blockHeaderSize = 80

// BlockHeader is the 80-byte fixed-size record whose double-SHA-256,
// reversed, is the block's identity.
type BlockHeader struct {
	Version        uint32
	HashPrevBlock  Hash32
	HashMerkleRoot Hash32
	Time           uint32
	Bits           uint32
	Nonce          uint32
}

func (h BlockHeader) Bytes() []byte {
	out := make([]byte, 0, blockHeaderSize)
	out = putU32(out, h.Version)
	out = append(out, h.HashPrevBlock[:]...)
	out = append(out, h.HashMerkleRoot[:]...)
	out = putU32(out, h.Time)
	out = putU32(out, h.Bits)
	out = putU32(out, h.Nonce)
	return out
}

// ID is the block header's identity: double-SHA-256 of its 80-byte
// serialization. Use ID().DisplayString() for the reversed, user-facing hex
// form; the value itself stays in internal orientation.
func (h BlockHeader) ID() Hash32 { return HashOf(h) }

func BlockHeaderFromBytes(b []byte) (BlockHeader, error) {
	if len(b) < blockHeaderSize {
		return BlockHeader{}, &PartialErr{Needed: blockHeaderSize - len(b)}
	}
	c := newCursor(b[:blockHeaderSize])
	var h BlockHeader
	var err error
	if h.Version, err = c.u32(); err != nil {
		return h, err
	}
	if h.HashPrevBlock, err = c.hash32(); err != nil {
		return h, err
	}
	if h.HashMerkleRoot, err = c.hash32(); err != nil {
		return h, err
	}
	if h.Time, err = c.u32(); err != nil {
		return h, err
	}
	if h.Bits, err = c.u32(); err != nil {
		return h, err
	}
	if h.Nonce, err = c.u32(); err != nil {
		return h, err
	}
	return h, nil
}

// Validate checks the header's structural invariant: it serializes to
// exactly 80 bytes. The Merkle root is checked against the transactions by
// Block.IsValid, which the Validator calls (§4.4); whether the
// previous-block hash references a known block is not checked anywhere.
// The original source stubbed this unconditionally true; this realizes it.
func (h BlockHeader) Validate() bool {
	return len(h.Bytes()) == blockHeaderSize
}

// Block is a header plus its ordered transaction list, the first of which
// is the coinbase.
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
}

func (b Block) Bytes() []byte {
	out := append([]byte(nil), b.Header.Bytes()...)
	out = append(out, VarInt(len(b.Transactions)).Bytes()...)
	for _, t := range b.Transactions {
		out = append(out, t.Bytes()...)
	}
	return out
}

// ID is the block's identity, equal to its header's ID.
func (b Block) ID() Hash32 { return b.Header.ID() }

func BlockFromBytes(b []byte) (Block, int, error) {
	header, err := BlockHeaderFromBytes(b)
	if err != nil {
		return Block{}, 0, err
	}
	c := newCursor(b[blockHeaderSize:])
	txCount, err := c.varInt()
	if err != nil {
		return Block{}, 0, err
	}
	txs := make([]Transaction, 0, txCount)
	off := blockHeaderSize + c.consumed()
	for i := VarInt(0); i < txCount; i++ {
		t, n, err := TransactionFromBytes(b[off:])
		if err != nil {
			return Block{}, 0, err
		}
		txs = append(txs, t)
		off += n
	}
	return Block{Header: header, Transactions: txs}, off, nil
}

// ComputeMerkleRoot derives the Merkle root of the block's transaction IDs.
func (b Block) ComputeMerkleRoot() Hash32 {
	leaves := make([]Hash32, len(b.Transactions))
	for i, t := range b.Transactions {
		leaves[i] = t.ID()
	}
	return MerkleRoot(leaves)
}

// bip16ActivationTime is the block-time threshold (2012-04-01 00:00:00 UTC)
// at or after which BIP-16/P2SH evaluation applies (§4.5).
const bip16ActivationTime = 1333238400

// IsValid covers the two structural obligations a Block can check entirely
// on its own, ahead of the Validator's fuller pass (§4.4): the header is 80
// bytes, and the Merkle root matches the transaction set. Each non-coinbase
// input's script must also pass, but that needs the referenced previous
// output, which only the Validator's StorageAdapter can supply -
// Validator.validateScripts composes with this method for that step. The
// original source's is_valid() stubbed this unconditionally false; this
// realizes the intended behavior.
func (b Block) IsValid() bool {
	if !b.Header.Validate() {
		return false
	}
	if len(b.Transactions) == 0 {
		return false
	}
	return b.Header.HashMerkleRoot == b.ComputeMerkleRoot()
}

// GenesisBlock builds the single-coinbase genesis block for the given
// network parameters, mirroring original_source's genesis_block() generalized
// with the reward as satoshis.
func GenesisBlock(version, time, nonce, bits uint32, reward uint64) Block {
	scriptSig := mustHex("04ffff001d0104455468652054696d65732030332f4a616e2f32303039204368" +
		"616e63656c6c6f72206f6e206272696e6b206f66207365636f6e64206261696c6f" +
		"757420666f722062616e6b73")
	scriptPubKey := mustHex("4104678afdb0fe5548271967f1a67130b7105cd6a828e03909a67962e0ea1f6" +
		"1deb649f6bc3f4cef38c4f35504e51ec112de5c384df7ba0b8d578a4c702b6bf1" +
		"1d5fac")
	coinbase := NewCoinbase(scriptSig, reward, scriptPubKey)
	b := Block{
		Header: BlockHeader{
			Version:       version,
			HashPrevBlock: Hash32{},
			Time:          time,
			Bits:          bits,
			Nonce:         nonce,
		},
		Transactions: []Transaction{coinbase},
	}
	b.Header.HashMerkleRoot = b.ComputeMerkleRoot()
	return b
}
