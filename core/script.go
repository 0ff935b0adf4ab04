package core

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Opcodes this engine recognizes. Anything in [opPushMin, opPushMax] is a
// direct-push of that many following bytes, handled without a table lookup.
const (
	opFalse               byte = 0x00
	opPushMin             byte = 0x01
	opPushMax             byte = 0x4b
	opTrue                byte = 0x51
	opDup                 byte = 0x76
	opEqual               byte = 0x87
	opEqualVerify         byte = 0x88
	opVerify              byte = 0x69
	opHash160             byte = 0xa9
	opCheckSig            byte = 0xac
	opCheckSigVerify      byte = 0xad
	opCheckMultiSig       byte = 0xae
	opCheckMultiSigVerify byte = 0xaf
	opCodeSeparator       byte = 0xab
)

// stackKind tags which of the script engine's three value shapes an entry
// holds, per the engine's explicit ban on collapsing booleans into
// single-byte arrays (a boolean and a one-byte array that happens to be
// empty or 0x01 are never the same value).
type stackKind int

const (
	stackArray stackKind = iota
	stackBool
	stackNumber
)

// stackEntry is one of the script engine's three value shapes: a byte
// array, a boolean, or a signed 64-bit number.
type stackEntry struct {
	kind  stackKind
	array []byte
	b     bool
	n     int64
}

func arrayEntry(b []byte) stackEntry  { return stackEntry{kind: stackArray, array: b} }
func boolEntry(b bool) stackEntry     { return stackEntry{kind: stackBool, b: b} }
func numberEntry(n int64) stackEntry  { return stackEntry{kind: stackNumber, n: n} }

// Script executes the concatenation of a spending input's ScriptSig and the
// previous output's ScriptPubKey against the copy-and-strip transaction
// digest algorithm OP_CHECKSIG relies on. One Script is built per input
// being verified.
type Script struct {
	code []byte
	pc   int

	// prefixLen is the length of the scriptSig-like portion of code for the
	// current pass (the real ScriptSig on the base pass, the truncated
	// ScriptSig on the P2SH re-execution pass); codeSeparator offsets are
	// measured from the start of subScriptSrc, i.e. pc-prefixLen.
	prefixLen int
	// subScriptSrc is the scriptPubKey-equivalent buffer for the current
	// pass: ScriptPubKey on the base pass, the redeem script on the P2SH
	// re-execution pass.
	subScriptSrc []byte
	// lastCodeSeparator is the offset into subScriptSrc just past the most
	// recently executed OP_CODESEPARATOR, the sub-script boundary
	// OP_CHECKSIG signs over. Zero until the first separator runs.
	lastCodeSeparator int

	scriptSig    []byte
	scriptPubKey []byte

	stack []stackEntry

	tx        Transaction
	inputIdx  int
	invalid   bool

	blockTime uint32
}

// ScriptResult is the final stack and invalidity flag after exec.
type ScriptResult struct {
	Stack   []stackEntry
	Invalid bool
}

// Valid reports whether this result represents a passing script (§4.4's
// "result must be valid = true and top-of-stack truthy"): no error occurred
// during execution, and the top stack entry is non-empty/non-zero/true.
func (r ScriptResult) Valid() bool {
	if r.Invalid || len(r.Stack) == 0 {
		return false
	}
	top := r.Stack[len(r.Stack)-1]
	switch top.kind {
	case stackArray:
		return len(top.array) > 0
	case stackBool:
		return top.b
	case stackNumber:
		return top.n != 0
	default:
		return false
	}
}

// NewScript builds the engine for verifying tx's inputIdx-th input against
// the output (prevOut) it spends, at the given block's timestamp (the P2SH
// activation gate is time-based, §4.5).
func NewScript(tx Transaction, inputIdx int, prevOut TxOutput, blockTime uint32) *Script {
	scriptSig := tx.Inputs[inputIdx].ScriptSig
	scriptPubKey := prevOut.ScriptPubKey
	code := make([]byte, 0, len(scriptSig)+len(scriptPubKey))
	code = append(code, scriptSig...)
	code = append(code, scriptPubKey...)
	return &Script{
		code:         code,
		scriptSig:    scriptSig,
		scriptPubKey: scriptPubKey,
		tx:           tx,
		inputIdx:     inputIdx,
		blockTime:    blockTime,
	}
}

// Exec runs ScriptSig then ScriptPubKey, then — if the output matches the
// BIP-16 pay-to-script-hash template and the script validated — pops the
// serialized redeem script off the tail of ScriptSig and re-executes it in
// place of ScriptPubKey (§4.5's "extended validation").
func (s *Script) Exec() ScriptResult {
	s.stack = s.stack[:0]
	s.pc = 0
	s.lastCodeSeparator = 0
	s.prefixLen = len(s.scriptSig)
	s.subScriptSrc = s.scriptPubKey
	s.run()

	if s.invalid || !s.isPayToScriptHash() {
		return ScriptResult{Stack: s.stack, Invalid: s.invalid}
	}

	redeem, err := s.popSerializedScript()
	if err != nil {
		return ScriptResult{Stack: s.stack, Invalid: true}
	}
	s.code = append(append([]byte(nil), s.scriptSig...), redeem...)
	s.pc = 0
	s.lastCodeSeparator = 0
	s.prefixLen = len(s.scriptSig)
	s.subScriptSrc = redeem
	s.stack = s.stack[:0]
	s.run()

	return ScriptResult{Stack: s.stack, Invalid: s.invalid}
}

func (s *Script) run() {
	for s.pc < len(s.code) && !s.invalid {
		s.step()
	}
}

func (s *Script) step() {
	op := s.code[s.pc]
	switch {
	case op >= opPushMin && op <= opPushMax:
		s.opPush()
	case op == opFalse:
		s.opFalse()
	case op == opTrue:
		s.opTrue()
	case op == opDup:
		s.opDup()
	case op == opEqual:
		s.opEqual()
	case op == opEqualVerify:
		s.opEqualVerify()
	case op == opVerify:
		s.opVerify()
	case op == opHash160:
		s.opHash160()
	case op == opCheckSig:
		s.opCheckSig()
	case op == opCheckSigVerify:
		s.opCheckSigVerify()
	case op == opCheckMultiSig:
		s.opCheckMultiSig()
	case op == opCheckMultiSigVerify:
		s.opCheckMultiSigVerify()
	case op == opCodeSeparator:
		s.opCodeSeparator()
	default:
		s.invalid = true
	}
}

func (s *Script) pop() (stackEntry, bool) {
	if len(s.stack) == 0 {
		s.invalid = true
		return stackEntry{}, false
	}
	e := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return e, true
}

func (s *Script) opPush() {
	size := int(s.code[s.pc])
	s.pc++
	if size > len(s.code)-s.pc {
		s.invalid = true
		return
	}
	array := append([]byte(nil), s.code[s.pc:s.pc+size]...)
	s.stack = append(s.stack, arrayEntry(array))
	s.pc += size
}

func (s *Script) opFalse() {
	s.stack = append(s.stack, arrayEntry(nil))
	s.pc++
}

func (s *Script) opTrue() {
	s.stack = append(s.stack, numberEntry(1))
	s.pc++
}

func (s *Script) opDup() {
	if len(s.stack) == 0 {
		s.invalid = true
		return
	}
	s.stack = append(s.stack, s.stack[len(s.stack)-1])
	s.pc++
}

func (s *Script) opHash160() {
	v, ok := s.pop()
	if !ok || v.kind != stackArray {
		s.invalid = true
		return
	}
	h := Hash160(v.array)
	s.stack = append(s.stack, arrayEntry(h[:]))
	s.pc++
}

func (s *Script) opEqual() {
	x1, ok1 := s.pop()
	x2, ok2 := s.pop()
	if !ok1 || !ok2 {
		return
	}
	eq := false
	switch {
	case x1.kind == stackArray && x2.kind == stackArray:
		eq = bytesEqual(x1.array, x2.array)
	case x1.kind == stackBool && x2.kind == stackBool:
		eq = x1.b == x2.b
	}
	s.stack = append(s.stack, boolEntry(eq))
	s.pc++
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// opVerify marks the transaction invalid if the top stack value is falsy: an
// empty array or a false boolean. It does not push or pop beyond that.
func (s *Script) opVerify() {
	v, ok := s.pop()
	s.pc++
	if !ok {
		return
	}
	switch v.kind {
	case stackArray:
		s.invalid = len(v.array) == 0
	case stackBool:
		s.invalid = !v.b
	}
}

// opEqualVerify is op_equal immediately followed by op_verify; each advances
// pc on its own, so the combined opcode rewinds pc by one first.
func (s *Script) opEqualVerify() {
	s.pc--
	s.opEqual()
	s.opVerify()
}

func (s *Script) opCodeSeparator() {
	s.pc++
	off := s.pc - s.prefixLen
	if off < 0 {
		off = 0
	}
	s.lastCodeSeparator = off
}

// checksig runs the standard Bitcoin signature-hash algorithm: strip all
// scriptSigs from a copy of the transaction, splice in only the sub-script
// (subScriptSrc — ScriptPubKey on the base pass, the redeem script on the
// P2SH pass — from the most recent OP_CODESEPARATOR onward) for the input
// being verified, append the signature's trailing hashtype byte as a
// little-endian uint32, double-SHA-256 the result, and verify sig against
// pubKey over that digest.
func (s *Script) checksig(pubKey, sig []byte) bool {
	if len(sig) == 0 {
		return false
	}
	if s.lastCodeSeparator > len(s.subScriptSrc) {
		return false
	}
	subScript := s.subScriptSrc[s.lastCodeSeparator:]

	hashType := uint32(sig[len(sig)-1])
	sigDER := sig[:len(sig)-1]

	txCopy := s.tx
	txCopy.Inputs = append([]TxInput(nil), s.tx.Inputs...)
	for i := range txCopy.Inputs {
		in := txCopy.Inputs[i]
		in.ScriptSig = nil
		if i == s.inputIdx {
			in.ScriptSig = subScript
		}
		txCopy.Inputs[i] = in
	}

	msg := putU32(txCopy.Bytes(), hashType)
	digest := DoubleSHA256(msg)

	parsedSig, err := ecdsa.ParseDERSignature(sigDER)
	if err != nil {
		return false
	}
	pub, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	return parsedSig.Verify(digest[:], pub)
}

func (s *Script) opCheckSig() {
	pubKey, ok1 := s.pop()
	sig, ok2 := s.pop()
	s.pc++
	if !ok1 || !ok2 || pubKey.kind != stackArray || sig.kind != stackArray {
		s.invalid = true
		return
	}
	s.stack = append(s.stack, boolEntry(s.checksig(pubKey.array, sig.array)))
}

func (s *Script) opCheckSigVerify() {
	s.pc--
	s.opCheckSig()
	s.opVerify()
}

// opCheckMultiSig reproduces the legacy off-by-one: after consuming the
// pubkey count, the pubkeys, the signature count and the signatures, it pops
// one additional stack element that every wallet is required to push as a
// dummy — an empty array, or false. Anything else fails the script; this is
// the historical bug's exact shape, not a relaxation of it.
func (s *Script) opCheckMultiSig() {
	s.pc++
	nPub, ok := s.pop()
	if !ok || nPub.kind != stackNumber || nPub.n <= 0 {
		s.invalid = true
		return
	}
	pubkeys := make([][]byte, nPub.n)
	for i := int64(nPub.n) - 1; i >= 0; i-- {
		v, ok := s.pop()
		if !ok || v.kind != stackArray {
			s.invalid = true
			return
		}
		pubkeys[i] = v.array
	}

	nSig, ok := s.pop()
	if !ok || nSig.kind != stackNumber {
		s.invalid = true
		return
	}
	sigs := make([][]byte, nSig.n)
	for i := int64(nSig.n) - 1; i >= 0; i-- {
		v, ok := s.pop()
		if !ok || v.kind != stackArray {
			s.invalid = true
			return
		}
		sigs[i] = v.array
	}

	// The extra stack element the legacy bug consumes: must be empty or
	// false, else the script fails outright.
	dummy, ok := s.pop()
	if !ok {
		return
	}
	switch dummy.kind {
	case stackArray:
		if len(dummy.array) != 0 {
			s.invalid = true
			return
		}
	case stackBool:
		if dummy.b {
			s.invalid = true
			return
		}
	default:
		s.invalid = true
		return
	}

	pubkeyIdx := 0
	for i := int64(0); i < nSig.n; i++ {
		matched := false
		for pubkeyIdx < len(pubkeys) {
			if s.checksig(pubkeys[pubkeyIdx], sigs[i]) {
				pubkeyIdx++
				matched = true
				break
			}
			pubkeyIdx++
		}
		if !matched {
			s.stack = append(s.stack, boolEntry(false))
			return
		}
	}
	s.stack = append(s.stack, boolEntry(true))
}

func (s *Script) opCheckMultiSigVerify() {
	s.pc--
	s.opCheckMultiSig()
	s.opVerify()
}

// isPayToScriptHash reports whether ScriptPubKey matches the BIP-16 template
// (OP_HASH160 <20 bytes> OP_EQUAL) and the block carrying this spend is at or
// after the BIP-16 activation time. Before that time every script, even one
// matching the template, validates under the base rules only.
func (s *Script) isPayToScriptHash() bool {
	if s.blockTime < bip16ActivationTime {
		return false
	}
	p := s.scriptPubKey
	return len(p) == 23 && p[0] == opHash160 && p[1] == 20 && p[22] == opEqual
}

// popSerializedScript strips the final push (the serialized redeem script)
// off the tail of ScriptSig and returns it, leaving the rest of ScriptSig in
// place for the extended-validation re-execution.
func (s *Script) popSerializedScript() ([]byte, error) {
	sig := s.scriptSig
	idx := 0
	size := 0
	for idx < len(sig) {
		op := sig[idx]
		idx++
		if op >= opPushMin && op <= opPushMax {
			size = int(op)
		}
		idx += size
	}
	if idx != len(sig) {
		return nil, ErrScriptInvalid
	}
	start := idx - size
	script := append([]byte(nil), sig[start:]...)
	end := start
	if start > 0 {
		end = start - 1
	}
	s.scriptSig = sig[:end]
	return script, nil
}
