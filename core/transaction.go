package core

// TxInput references a previous output being spent.
type TxInput struct {
	PrevTxHash  Hash32
	PrevIndex   uint32
	ScriptSig   []byte
	Sequence    uint32
}

func (in TxInput) Bytes() []byte {
	out := append([]byte(nil), in.PrevTxHash[:]...)
	out = putU32(out, in.PrevIndex)
	out = putVarBytes(out, in.ScriptSig)
	out = putU32(out, in.Sequence)
	return out
}

func txInputFromCursor(c *cursor) (TxInput, error) {
	var in TxInput
	var err error
	if in.PrevTxHash, err = c.hash32(); err != nil {
		return in, err
	}
	if in.PrevIndex, err = c.u32(); err != nil {
		return in, err
	}
	if in.ScriptSig, err = c.varBytes(); err != nil {
		return in, err
	}
	if in.Sequence, err = c.u32(); err != nil {
		return in, err
	}
	return in, nil
}

// IsCoinbase reports whether in references no previous output, the shape a
// block's first transaction's sole input always has.
func (in TxInput) IsCoinbase() bool {
	return in.PrevTxHash.IsZero() && in.PrevIndex == 0xffffffff
}

// TxOutput carries a satoshi value and the script that must be satisfied to
// spend it.
type TxOutput struct {
	Value        uint64
	ScriptPubKey []byte
}

func (o TxOutput) Bytes() []byte {
	out := putU64(nil, o.Value)
	return putVarBytes(out, o.ScriptPubKey)
}

func txOutputFromCursor(c *cursor) (TxOutput, error) {
	var o TxOutput
	var err error
	if o.Value, err = c.u64(); err != nil {
		return o, err
	}
	if o.ScriptPubKey, err = c.varBytes(); err != nil {
		return o, err
	}
	return o, nil
}

// Transaction is version, an ordered input list, an ordered output list and
// a lock-time. Identity is the double-SHA-256 of the serialized form,
// reversed for display.
type Transaction struct {
	Version  uint32
	Inputs   []TxInput
	Outputs  []TxOutput
	LockTime uint32
}

func (t Transaction) Bytes() []byte {
	out := putU32(nil, t.Version)
	out = append(out, VarInt(len(t.Inputs)).Bytes()...)
	for _, in := range t.Inputs {
		out = append(out, in.Bytes()...)
	}
	out = append(out, VarInt(len(t.Outputs)).Bytes()...)
	for _, o := range t.Outputs {
		out = append(out, o.Bytes()...)
	}
	out = putU32(out, t.LockTime)
	return out
}

// ID is the transaction's identity: double-SHA-256 of its serialized form.
// Kept in internal (unreversed) orientation; use ID().DisplayString() for
// the user-facing big-endian hex form.
func (t Transaction) ID() Hash32 { return HashOf(t) }

// TransactionFromBytes parses a transaction from the front of b, returning
// the transaction and the number of bytes consumed.
func TransactionFromBytes(b []byte) (Transaction, int, error) {
	c := newCursor(b)
	var t Transaction
	var err error
	if t.Version, err = c.u32(); err != nil {
		return t, 0, err
	}
	inCount, err := c.varInt()
	if err != nil {
		return t, 0, err
	}
	t.Inputs = make([]TxInput, 0, inCount)
	for i := VarInt(0); i < inCount; i++ {
		in, err := txInputFromCursor(c)
		if err != nil {
			return t, 0, err
		}
		t.Inputs = append(t.Inputs, in)
	}
	outCount, err := c.varInt()
	if err != nil {
		return t, 0, err
	}
	t.Outputs = make([]TxOutput, 0, outCount)
	for i := VarInt(0); i < outCount; i++ {
		o, err := txOutputFromCursor(c)
		if err != nil {
			return t, 0, err
		}
		t.Outputs = append(t.Outputs, o)
	}
	if t.LockTime, err = c.u32(); err != nil {
		return t, 0, err
	}
	return t, c.consumed(), nil
}

// NewCoinbase builds the single-input, single-output coinbase transaction
// that opens every block, mirroring the original implementation's
// genesis-block constructor generalized to any height/reward.
func NewCoinbase(scriptSig []byte, reward uint64, scriptPubKey []byte) Transaction {
	return Transaction{
		Version: 1,
		Inputs: []TxInput{{
			PrevTxHash: Hash32{},
			PrevIndex:  0xffffffff,
			ScriptSig:  scriptSig,
			Sequence:   0xffffffff,
		}},
		Outputs: []TxOutput{{
			Value:        reward,
			ScriptPubKey: scriptPubKey,
		}},
		LockTime: 0,
	}
}
