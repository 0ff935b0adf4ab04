package core

import (
	"net"
	"reflect"
	"testing"
)

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	enc := Encode(MagicMain, m)
	got, consumed, err := Parse(enc, MagicMain)
	if err != nil {
		t.Fatalf("parse(%s): %v", m.Command(), err)
	}
	if consumed != len(enc) {
		t.Fatalf("parse(%s) consumed %d bytes, want %d", m.Command(), consumed, len(enc))
	}
	return got
}

func TestMessageRoundTripVersion(t *testing.T) {
	addr := Addr{Services: 1, IP: net.ParseIP("127.0.0.1"), Port: 8333}
	want := VersionMsg{
		ProtocolVersion: wireProtocolVersion,
		Services:        1,
		Timestamp:       1700000000,
		Receiver:        addr,
		Sender:          addr,
		Nonce:           42,
		UserAgent:       "/yasbit:0.1/",
		StartHeight:     123,
		Relay:           true,
	}
	got, ok := roundTrip(t, want).(VersionMsg)
	if !ok {
		t.Fatalf("expected VersionMsg, got %T", got)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestMessageRoundTripVerAck(t *testing.T) {
	if _, ok := roundTrip(t, VerAckMsg{}).(VerAckMsg); !ok {
		t.Fatalf("expected VerAckMsg")
	}
}

func TestMessageRoundTripPing(t *testing.T) {
	want := PingMsg{Nonce: 0xdeadbeef}
	got, ok := roundTrip(t, want).(PingMsg)
	if !ok || got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestMessageRoundTripGetHeaders(t *testing.T) {
	h1, _ := Hash32FromDisplay("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f")
	want := GetHeadersMsg{Locator: BlockLocator{
		ProtocolVersion: wireProtocolVersion,
		Hashes:          []Hash32{h1},
		StopHash:        Hash32{},
	}}
	got, ok := roundTrip(t, want).(GetHeadersMsg)
	if !ok {
		t.Fatalf("expected GetHeadersMsg, got %T", got)
	}
	if got.Locator.ProtocolVersion != want.Locator.ProtocolVersion || len(got.Locator.Hashes) != 1 || got.Locator.Hashes[0] != h1 {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestMessageRoundTripHeaders(t *testing.T) {
	blk := GenesisBlock(1, 1231006505, 2083236893, 486604799, 5_000_000_000)
	want := HeadersMsg{Headers: []HeaderRecord{{Header: blk.Header, TxCount: 1}}}
	got, ok := roundTrip(t, want).(HeadersMsg)
	if !ok {
		t.Fatalf("expected HeadersMsg, got %T", got)
	}
	if len(got.Headers) != 1 || got.Headers[0].Header.ID() != blk.Header.ID() || got.Headers[0].TxCount != 1 {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestMessageRoundTripInv(t *testing.T) {
	h1, _ := Hash32FromDisplay("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f")
	want := InvMsg{Items: []InvVect{{Type: InvBlock, Hash: h1}}}
	got, ok := roundTrip(t, want).(InvMsg)
	if !ok {
		t.Fatalf("expected InvMsg, got %T", got)
	}
	if len(got.Items) != 1 || got.Items[0] != want.Items[0] {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestParseUnknownMagicRejected(t *testing.T) {
	enc := Encode(MagicMain, VerAckMsg{})
	_, _, err := Parse(enc, MagicTestnet3)
	if err == nil {
		t.Fatalf("expected error for mismatched magic")
	}
}

func TestParsePartialBuffer(t *testing.T) {
	enc := Encode(MagicMain, PingMsg{Nonce: 7})
	_, _, err := Parse(enc[:len(enc)-1], MagicMain)
	if _, ok := err.(*PartialErr); !ok {
		t.Fatalf("expected *PartialErr for truncated buffer, got %T (%v)", err, err)
	}
}
