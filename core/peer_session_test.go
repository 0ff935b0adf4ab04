package core

import (
	"net"
	"testing"
	"time"
)

func testVersion() VersionMsg {
	return VersionMsg{
		ProtocolVersion: 70015,
		Services:        0,
		Timestamp:       1231006505,
		UserAgent:       "/yasbit-test:0.0/",
		StartHeight:     0,
	}
}

func TestPeerSessionHandshakeEstablishes(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	events := make(chan SessionEvent, 16)
	sess := NewPeerSession(nextPeerID(), "test", server, MagicMain, testVersion(), events, nil)
	go sess.Run()

	// Drive the other half of the handshake directly over the pipe.
	go func() {
		buf := make([]byte, 4096)
		n, err := client.Read(buf)
		if err != nil {
			return
		}
		_, consumed, err := Parse(buf[:n], MagicMain)
		if err != nil || consumed == 0 {
			return
		}
		client.Write(Encode(MagicMain, testVersion()))
		client.Read(buf) // the session's verack
		client.Write(Encode(MagicMain, VerAckMsg{}))
	}()

	select {
	case ev := <-events:
		if _, ok := ev.(EventConnected); !ok {
			t.Fatalf("expected EventConnected, got %T", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handshake did not complete")
	}
}

func TestPeerSessionRepliesPong(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	events := make(chan SessionEvent, 16)
	sess := NewPeerSession(nextPeerID(), "test", server, MagicMain, testVersion(), events, nil)
	go sess.Run()

	go func() {
		buf := make([]byte, 4096)
		client.Read(buf) // our version
		client.Write(Encode(MagicMain, testVersion()))
		client.Read(buf) // the session's verack
		client.Write(Encode(MagicMain, VerAckMsg{}))
	}()

	// Wait for handshake, then send a ping and expect a pong back.
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatalf("handshake did not complete")
	}

	client.Write(Encode(MagicMain, PingMsg{Nonce: 42}))

	buf := make([]byte, 4096)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("read pong: %v", err)
	}
	msg, _, err := Parse(buf[:n], MagicMain)
	if err != nil {
		t.Fatalf("parse reply: %v", err)
	}
	pong, ok := msg.(PongMsg)
	if !ok || pong.Nonce != 42 {
		t.Fatalf("expected PongMsg{42}, got %+v", msg)
	}
}
