package core

// decodePayload dispatches on the envelope's command name to build the
// concrete, tagged-variant Message it carries. Recognized commands are
// listed in §4.1; anything else is ErrUnknownMessage.
func decodePayload(command string, payload []byte) (Message, error) {
	switch command {
	case "version":
		return VersionFromBytes(payload)
	case "verack":
		return VerAckMsg{}, nil
	case "ping":
		return PingFromBytes(payload)
	case "pong":
		return PongFromBytes(payload)
	case "getaddr":
		return GetAddrMsg{}, nil
	case "addr":
		return AddrFromWire(payload)
	case "getheaders":
		return GetHeadersFromBytes(payload)
	case "getblocks":
		return GetBlocksFromBytes(payload)
	case "headers":
		return HeadersFromBytes(payload)
	case "getdata":
		return GetDataFromBytes(payload)
	case "inv":
		return InvFromBytes(payload)
	case "notfound":
		return NotFoundFromBytes(payload)
	case "block":
		return BlockMsgFromBytes(payload)
	case "feefilter":
		return FeeFilterFromBytes(payload)
	case "sendheaders":
		return SendHeadersMsg{}, nil
	case "alert":
		return AlertFromBytes(payload)
	default:
		return nil, Protocol(ErrUnknownMessage)
	}
}

// Parse is the Wire Codec's stream-oriented entry point: given a byte
// buffer it returns either (message, consumed-bytes) or an error. A
// *PartialErr means fewer bytes than required are buffered; the caller
// should retain them, read more, and retry — it is a continuation, not a
// Protocol failure.
func Parse(b []byte, magic uint32) (Message, int, error) {
	env, consumed, err := ParseEnvelope(b)
	if err != nil {
		return nil, 0, err
	}
	if env.Magic != magic {
		return nil, 0, Protocol(ErrInvalidMagic)
	}
	msg, err := decodePayload(env.Command, env.Payload)
	if err != nil {
		return nil, 0, err
	}
	return msg, consumed, nil
}

// Encode frames msg into a full envelope for the given network magic.
func Encode(magic uint32, msg Message) []byte {
	return Envelope{Magic: magic, Command: msg.Command(), Payload: msg.Bytes()}.Bytes()
}
