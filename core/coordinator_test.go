package core

import (
	"context"
	"net"
	"testing"
	"time"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *memStore) {
	t.Helper()
	store := newMemStore()
	val := NewValidator(store, time.Second, nil, nil, nil)
	cfg := CoordinatorConfig{Magic: MagicMain, Port: 8333}
	c := NewCoordinator(cfg, store, val, nil)
	return c, store
}

func newTestCoordinatorWithCfg(t *testing.T, cfg CoordinatorConfig) (*Coordinator, *memStore) {
	t.Helper()
	store := newMemStore()
	val := NewValidator(store, time.Second, nil, nil, nil)
	cfg.Magic = MagicMain
	cfg.Port = 8333
	c := NewCoordinator(cfg, store, val, nil)
	return c, store
}

// pipeSession wires a PeerSession to one half of a net.Pipe, registers it
// with the Coordinator, and continuously drains whatever the session writes
// back onto a channel, so a handleEvent call that triggers a reply never
// deadlocks against net.Pipe's lack of buffering.
func pipeSession(t *testing.T, c *Coordinator, id PeerID) <-chan Message {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	sess := NewPeerSession(id, "test", server, c.cfg.Magic, c.ourVersion(server), c.events, nil)
	c.registerSession(sess)
	go sess.Run()

	out := make(chan Message, 16)
	go func() {
		buf := make([]byte, 0, 8192)
		tmp := make([]byte, 8192)
		for {
			n, err := client.Read(tmp)
			if err != nil {
				return
			}
			buf = append(buf, tmp[:n]...)
			for {
				msg, consumed, err := Parse(buf, c.cfg.Magic)
				if err != nil || consumed == 0 {
					break
				}
				buf = buf[consumed:]
				select {
				case out <- msg:
				default:
				}
			}
		}
	}()
	return out
}

func readMessage(t *testing.T, msgs <-chan Message) Message {
	t.Helper()
	select {
	case m := <-msgs:
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a message")
		return nil
	}
}

func TestCoordinatorElectsSyncPeerAndRequestsHeaders(t *testing.T) {
	c, _ := newTestCoordinator(t)
	id := nextPeerID()
	msgs := pipeSession(t, c, id)
	readMessage(t, msgs) // our outgoing version handshake message

	ctx := context.Background()
	c.handleEvent(ctx, EventConnected{Peer: id})

	if c.syncPeer != id {
		t.Fatalf("expected %d elected sync peer, got %d", id, c.syncPeer)
	}
	msg := readMessage(t, msgs)
	if msg.Command() != "getheaders" {
		t.Fatalf("expected getheaders, got %s", msg.Command())
	}
}

func TestCoordinatorIgnoresHeadersFromNonSyncPeer(t *testing.T) {
	c, _ := newTestCoordinator(t)
	syncID := nextPeerID()
	otherID := nextPeerID()
	syncMsgs := pipeSession(t, c, syncID)
	pipeSession(t, c, otherID)
	readMessage(t, syncMsgs) // version

	ctx := context.Background()
	c.handleEvent(ctx, EventConnected{Peer: syncID})
	readMessage(t, syncMsgs) // getheaders from election

	hdr := BlockHeader{Version: 1, Time: 1, Bits: 486604799, Nonce: 1}
	c.handleEvent(ctx, EventHeaders{Peer: otherID, Headers: []HeaderRecord{{Header: hdr}}})

	if len(c.pendingHeaders) != 0 {
		t.Fatalf("expected headers from non-sync peer to be ignored, got %d pending", len(c.pendingHeaders))
	}
}

func TestCoordinatorFillsDownloadQueueFromHeaders(t *testing.T) {
	c, _ := newTestCoordinator(t)
	id := nextPeerID()
	msgs := pipeSession(t, c, id)
	readMessage(t, msgs) // version

	ctx := context.Background()
	c.handleEvent(ctx, EventConnected{Peer: id})
	readMessage(t, msgs) // getheaders from election

	headers := make([]HeaderRecord, 3)
	for i := range headers {
		headers[i] = HeaderRecord{Header: BlockHeader{
			Version: 1,
			Time:    uint32(i + 1),
			Bits:    486604799,
			Nonce:   uint32(i),
		}}
	}
	c.handleEvent(ctx, EventHeaders{Peer: id, Headers: headers})

	if len(c.peers[id]) != 3 {
		t.Fatalf("expected 3 blocks in flight for the sole peer, got %d", len(c.peers[id]))
	}
	if len(c.pendingHeaders) != 0 {
		t.Fatalf("expected pending headers drained into inFlight, got %d remaining", len(c.pendingHeaders))
	}

	msg := readMessage(t, msgs)
	getData, ok := msg.(GetDataMsg)
	if !ok {
		t.Fatalf("expected GetDataMsg, got %T", msg)
	}
	if len(getData.Items) != 3 {
		t.Fatalf("expected getdata for 3 hashes, got %d", len(getData.Items))
	}
}

func TestCoordinatorOnBlockClearsInFlight(t *testing.T) {
	c, _ := newTestCoordinator(t)
	hdr := BlockHeader{Version: 1, Time: 1, Bits: 486604799, Nonce: 7}
	blk := Block{Header: hdr}
	c.peers[1] = map[Hash32]struct{}{blk.ID(): {}}
	c.inFlightOwner[blk.ID()] = 1

	c.onBlock(EventBlockReceived{Peer: 1, Block: blk})

	if _, ok := c.inFlightOwner[blk.ID()]; ok {
		t.Fatalf("expected block removed from inFlightOwner once delivered")
	}
	if _, ok := c.peers[1][blk.ID()]; ok {
		t.Fatalf("expected block removed from owning peer's in-flight set once delivered")
	}
}

func TestCoordinatorHandleValidatedAdvancesTipAndRefills(t *testing.T) {
	c, _ := newTestCoordinator(t)
	id := nextPeerID()
	msgs := pipeSession(t, c, id)
	readMessage(t, msgs) // version

	ctx := context.Background()
	c.handleEvent(ctx, EventConnected{Peer: id})
	readMessage(t, msgs) // getheaders from election

	hdr := BlockHeader{Version: 1, Time: 1, Bits: 486604799, Nonce: 1}
	blk := Block{Header: hdr}
	c.pendingHeaders = []Hash32{blk.ID()}
	c.fillDownloadQueue()
	readMessage(t, msgs) // getdata
	// the block arrives, emptying the peer's in-flight set.
	c.handleEvent(ctx, EventBlockReceived{Peer: id, Block: blk})

	c.handleEvent(ctx, eventBlockValidated{Block: blk})

	if c.tip != blk.ID() {
		t.Fatalf("expected tip advanced to validated block")
	}
	// pipeline drained: coordinator should have asked for more headers.
	msg := readMessage(t, msgs)
	if msg.Command() != "getheaders" {
		t.Fatalf("expected getheaders after pipeline drained, got %s", msg.Command())
	}
}

func TestCoordinatorValidatorTimeoutReplacesPeer(t *testing.T) {
	c, _ := newTestCoordinator(t)
	id := nextPeerID()
	msgs := pipeSession(t, c, id)
	readMessage(t, msgs) // version

	ctx := context.Background()
	c.handleEvent(ctx, EventConnected{Peer: id})
	readMessage(t, msgs) // getheaders from election

	hdr := BlockHeader{Version: 1, Time: 1, Bits: 486604799, Nonce: 1}
	blk := Block{Header: hdr}
	c.peers[id] = map[Hash32]struct{}{blk.ID(): {}}
	c.inFlightOwner[blk.ID()] = id

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	c.book.Add(NetAddr{Addr: Addr{IP: net.ParseIP("127.0.0.1"), Port: uint16(ln.Addr().(*net.TCPAddr).Port)}})

	c.handleEvent(ctx, eventValidationTimeout{Hash: blk.ID()})

	if len(c.peers[id]) != 0 {
		t.Fatalf("expected in-flight hashes for the timed-out peer requeued, got %d still in flight", len(c.peers[id]))
	}
	if len(c.inFlightOwner) != 0 {
		t.Fatalf("expected inFlightOwner cleared for the timed-out peer's hashes, got %d entries", len(c.inFlightOwner))
	}
	if len(c.pendingHeaders) != 1 || c.pendingHeaders[0] != blk.ID() {
		t.Fatalf("expected timed-out hash requeued to pendingHeaders, got %v", c.pendingHeaders)
	}
	if c.syncPeer != id {
		t.Fatalf("expected replacement dial to reuse displaced peer id %d, got %d", id, c.syncPeer)
	}

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected replacement dial to connect to the sampled address")
	}
}

// TestCoordinatorFansDownloadOutAcrossNonSyncPeers verifies the work-stealing
// download pipeline: once more than one peer is established, getdata fans
// out across every non-sync peer rather than being sent only to the sync
// peer, and each peer's own in-flight set is capped independently.
func TestCoordinatorFansDownloadOutAcrossNonSyncPeers(t *testing.T) {
	c, _ := newTestCoordinatorWithCfg(t, CoordinatorConfig{MaxDownloadingBlocks: 5})

	syncID := nextPeerID()
	syncMsgs := pipeSession(t, c, syncID)
	readMessage(t, syncMsgs) // version

	ctx := context.Background()
	c.handleEvent(ctx, EventConnected{Peer: syncID})
	readMessage(t, syncMsgs) // getheaders from election

	bID := nextPeerID()
	bMsgs := pipeSession(t, c, bID)
	readMessage(t, bMsgs) // version
	c.handleEvent(ctx, EventConnected{Peer: bID})

	cID := nextPeerID()
	cMsgs := pipeSession(t, c, cID)
	readMessage(t, cMsgs) // version
	c.handleEvent(ctx, EventConnected{Peer: cID})

	headers := make([]HeaderRecord, 8)
	for i := range headers {
		headers[i] = HeaderRecord{Header: BlockHeader{
			Version: 1,
			Time:    uint32(i + 1),
			Bits:    486604799,
			Nonce:   uint32(i),
		}}
	}
	c.handleEvent(ctx, EventHeaders{Peer: syncID, Headers: headers})

	if len(c.peers[syncID]) != 0 {
		t.Fatalf("expected sync peer to receive no download work, got %d in flight", len(c.peers[syncID]))
	}
	if len(c.peers[bID]) != 5 {
		t.Fatalf("expected first non-sync peer capped at 5 in flight, got %d", len(c.peers[bID]))
	}
	if len(c.peers[cID]) != 3 {
		t.Fatalf("expected remaining 3 hashes fanned out to the second non-sync peer, got %d", len(c.peers[cID]))
	}
	if len(c.pendingHeaders) != 0 {
		t.Fatalf("expected all 8 hashes assigned, got %d still pending", len(c.pendingHeaders))
	}

	bGetData, ok := readMessage(t, bMsgs).(GetDataMsg)
	if !ok || len(bGetData.Items) != 5 {
		t.Fatalf("expected a getdata for 5 items on the first non-sync peer, got %#v", bGetData)
	}
	cGetData, ok := readMessage(t, cMsgs).(GetDataMsg)
	if !ok || len(cGetData.Items) != 3 {
		t.Fatalf("expected a getdata for 3 items on the second non-sync peer, got %#v", cGetData)
	}
}

// TestCoordinatorSolePeerServesBothRolesForDownload verifies that with only
// one peer connected, that peer is its own download target even though it
// is also the sync peer (§4.3's "or the sole peer").
func TestCoordinatorSolePeerServesBothRolesForDownload(t *testing.T) {
	c, _ := newTestCoordinator(t)
	id := nextPeerID()
	msgs := pipeSession(t, c, id)
	readMessage(t, msgs) // version

	ctx := context.Background()
	c.handleEvent(ctx, EventConnected{Peer: id})
	readMessage(t, msgs) // getheaders from election

	headers := []HeaderRecord{{Header: BlockHeader{Version: 1, Time: 1, Bits: 486604799, Nonce: 1}}}
	c.handleEvent(ctx, EventHeaders{Peer: id, Headers: headers})

	if len(c.peers[id]) != 1 {
		t.Fatalf("expected the sole peer to also serve as its own download target, got %d in flight", len(c.peers[id]))
	}
}
