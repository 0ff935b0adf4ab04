package core

// Coordinator owns every piece of mutable sync state — known sessions, the
// address book, the download pipeline — behind a single event loop fed by
// one multi-producer channel, so sync-peer election and download
// bookkeeping are never touched by two goroutines at once (§4.3). It is the
// generalization of the teacher's ticker-driven background coordinator:
// where that one polls a ledger on a timer, this one reacts to peer session
// events as they arrive.

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const wireProtocolVersion = 70015

// CoordinatorConfig holds the tunables §4.3 names: how many peers to
// maintain, the per-peer download pipeline cap, and the global pending
// queue's cap.
type CoordinatorConfig struct {
	Magic                uint32
	Port                 int
	DNSSeeds             []string
	PeersNumber          int
	MaxDownloadingBlocks int
	MaxHeaders           int
	DownloadQueueCap     int
	DialTimeout          time.Duration
}

func (c CoordinatorConfig) withDefaults() CoordinatorConfig {
	if c.PeersNumber <= 0 {
		c.PeersNumber = 8
	}
	if c.MaxDownloadingBlocks <= 0 {
		c.MaxDownloadingBlocks = 16
	}
	if c.MaxHeaders <= 0 {
		c.MaxHeaders = 2000
	}
	if c.DownloadQueueCap <= 0 {
		c.DownloadQueueCap = c.MaxHeaders * 25
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	return c
}

// Coordinator drives peer discovery, the handshake fan-out and the header
// / block download pipeline.
type Coordinator struct {
	cfg    CoordinatorConfig
	log    *logrus.Entry
	dialer *Dialer
	book   *AddressBook
	store  StorageAdapter
	val    *Validator

	events chan SessionEvent

	// sessionsMu guards sessions: dial goroutines register new sessions
	// concurrently with the event loop reading/removing them. Everything
	// else below (election, the download pipeline, per-peer in-flight
	// sets) is only ever touched from the event loop goroutine.
	sessionsMu sync.Mutex
	sessions   map[PeerID]*PeerSession

	// established tracks peers that have completed the handshake, the
	// Node-entry population eligible to receive getdata fan-out — a
	// superset of it if sole, or every non-sync member otherwise (§4.3).
	established map[PeerID]bool
	syncPeer    PeerID
	tip         Hash32

	// pendingHeaders is the global download_queue: hashes known from
	// headers but not yet assigned to any peer's in-flight set.
	pendingHeaders []Hash32

	// peers holds each connected peer's own in-flight download set (at
	// most MaxDownloadingBlocks hashes), and inFlightOwner is the reverse
	// index from a hash to whichever peer is carrying it, so a block's
	// arrival or a validator timeout can find and clear the right entry
	// in O(1) instead of scanning every peer's set.
	peers         map[PeerID]map[Hash32]struct{}
	inFlightOwner map[Hash32]PeerID
}

// eventBlockValidated and eventValidationTimeout carry the Validator's
// callbacks onto the Coordinator's own event channel, rather than letting
// the Validator's actor goroutine call back into Coordinator state
// directly: every mutation of sessions/pendingHeaders/peers/syncPeer must
// happen on the single event-loop goroutine (§4.3).
type eventBlockValidated struct{ Block Block }
type eventValidationTimeout struct{ Hash Hash32 }

func (eventBlockValidated) isSessionEvent()    {}
func (eventValidationTimeout) isSessionEvent() {}

// NewCoordinator wires a Coordinator around an already-constructed Validator
// and StorageAdapter. The Validator's onValidated hook is bound here.
func NewCoordinator(cfg CoordinatorConfig, store StorageAdapter, val *Validator, log *logrus.Entry) *Coordinator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	cfg = cfg.withDefaults()
	c := &Coordinator{
		cfg:           cfg,
		log:           log,
		dialer:        NewDialer(cfg.DialTimeout, 30*time.Second),
		book:          NewAddressBook(0),
		store:         store,
		val:           val,
		events:        make(chan SessionEvent, 256),
		sessions:      make(map[PeerID]*PeerSession),
		established:   make(map[PeerID]bool),
		peers:         make(map[PeerID]map[Hash32]struct{}),
		inFlightOwner: make(map[Hash32]PeerID),
	}
	val.onTimeout = func(hash Hash32) {
		select {
		case c.events <- eventValidationTimeout{Hash: hash}:
		default:
			c.log.Warn("coordinator: event channel full, dropping validation timeout")
		}
	}
	val.OnValidated(func(b Block) {
		select {
		case c.events <- eventBlockValidated{Block: b}:
		default:
			c.log.Warn("coordinator: event channel full, dropping validated block")
		}
	})
	return c
}

// Run resolves seeds, dials up to PeersNumber candidates, and then drives
// the single-threaded event loop until ctx is canceled.
func (c *Coordinator) Run(ctx context.Context) {
	if tip, ok, err := c.store.Tip(); err != nil {
		c.log.WithError(err).Warn("coordinator: failed to load persisted tip, resuming from genesis")
	} else if ok {
		c.tip = tip
		c.log.WithField("tip", tip.DisplayString()).Info("coordinator: resumed tip from storage")
	}

	seeds := ResolveSeeds(ctx, c.cfg.DNSSeeds, uint16(c.cfg.Port))
	c.book.AddMany(seeds)
	c.log.WithField("count", len(seeds)).Info("coordinator: resolved dns seeds")

	for _, addr := range c.book.Sample(c.cfg.PeersNumber) {
		c.dial(ctx, nextPeerID(), addr.Addr.HostPort())
	}

	for {
		select {
		case <-ctx.Done():
			c.closeAll()
			return
		case ev := <-c.events:
			c.handleEvent(ctx, ev)
		}
	}
}

func (c *Coordinator) dial(ctx context.Context, id PeerID, hostPort string) {
	go func() {
		dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
		defer cancel()
		conn, err := c.dialer.Dial(dialCtx, hostPort)
		if err != nil {
			c.log.WithError(err).WithField("addr", hostPort).Debug("coordinator: dial failed")
			c.book.Remove(hostPort)
			return
		}
		sess := NewPeerSession(id, hostPort, conn, c.cfg.Magic, c.ourVersion(conn), c.events, c.log)
		c.registerSession(sess)
		sess.Run()
	}()
}

func (c *Coordinator) ourVersion(conn net.Conn) VersionMsg {
	return VersionMsg{
		ProtocolVersion: wireProtocolVersion,
		Timestamp:       uint64(time.Now().Unix()),
		UserAgent:       "/yasbit:0.1/",
		StartHeight:     0,
		Relay:           true,
	}
}

func (c *Coordinator) registerSession(sess *PeerSession) {
	c.sessionsMu.Lock()
	c.sessions[sess.ID()] = sess
	c.sessionsMu.Unlock()
}

func (c *Coordinator) session(id PeerID) (*PeerSession, bool) {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	sess, ok := c.sessions[id]
	return sess, ok
}

func (c *Coordinator) dropSession(id PeerID) {
	c.sessionsMu.Lock()
	delete(c.sessions, id)
	c.sessionsMu.Unlock()
}

func (c *Coordinator) handleEvent(ctx context.Context, ev SessionEvent) {
	switch e := ev.(type) {
	case EventConnected:
		MetricPeersConnected.Inc()
		c.log.WithField("peer", e.Peer).Info("coordinator: peer established")
		c.established[e.Peer] = true
		if c.syncPeer == 0 {
			c.electSyncPeer(e.Peer)
		} else if e.Peer == c.syncPeer {
			// reconnection of the sync peer after a replacement dial.
			c.requestHeaders(e.Peer, c.tip)
		}
		c.fillDownloadQueue()
	case EventAddrs:
		c.book.AddMany(e.Addrs)
	case EventHeaders:
		c.onHeaders(e)
	case EventBlockReceived:
		c.onBlock(e)
	case EventConnectionClosed:
		MetricPeersConnected.Dec()
		wasSync := e.Peer == c.syncPeer
		c.dropPeer(e.Peer)
		c.replacePeer(ctx, e.Peer, wasSync)
	case eventBlockValidated:
		c.handleValidated(e.Block)
	case eventValidationTimeout:
		c.handleValidatorTimeout(ctx, e.Hash)
	}
}

func (c *Coordinator) electSyncPeer(id PeerID) {
	c.syncPeer = id
	c.requestHeaders(id, c.tip)
}

func (c *Coordinator) requestHeaders(peer PeerID, from Hash32) {
	sess, ok := c.session(peer)
	if !ok {
		return
	}
	msg := GetHeadersMsg{Locator: BlockLocator{
		ProtocolVersion: wireProtocolVersion,
		Hashes:          []Hash32{from},
		StopHash:        Hash32{},
	}}
	if err := sess.SendMessage(msg); err != nil {
		c.log.WithError(err).Warn("coordinator: getheaders send failed")
	}
}

func (c *Coordinator) onHeaders(e EventHeaders) {
	if e.Peer != c.syncPeer {
		return
	}
	hashes := make([]Hash32, 0, len(e.Headers))
	for _, h := range e.Headers {
		hashes = append(hashes, h.Header.ID())
	}
	c.pendingHeaders = append(c.pendingHeaders, hashes...)
	c.enforceDownloadQueueCap()
	if len(hashes) > 0 {
		c.val.Wait(hashes)
	}
	c.fillDownloadQueue()

	if len(e.Headers) == 0 {
		// sync peer reports no more headers past our tip; nothing further
		// to request until a new block arrives via inv (out of scope for
		// the steady-state pipeline described here).
		return
	}
	if len(e.Headers) >= int(c.cfg.MaxHeaders) {
		// full batch: immediately ask for the next page.
		c.requestHeaders(c.syncPeer, hashes[len(hashes)-1])
	}
}

// enforceDownloadQueueCap bounds pendingHeaders at cfg.DownloadQueueCap so a
// sync peer's header flood cannot grow it without limit (withDefaults turns
// a cap <= 0 into 25 × MaxHeaders). Overflow is trimmed from the tail — the headers most
// recently learned about — and the number dropped is logged, so requeued
// in-flight work prepended to the front by dropPeer is never the part that
// gets cut.
func (c *Coordinator) enforceDownloadQueueCap() {
	limit := c.cfg.DownloadQueueCap
	if limit <= 0 || len(c.pendingHeaders) <= limit {
		return
	}
	dropped := len(c.pendingHeaders) - limit
	c.log.WithField("dropped", dropped).Warn("coordinator: download queue cap exceeded, dropping newest pending headers")
	c.pendingHeaders = c.pendingHeaders[:limit]
}

// downloadTargets returns the peers the work-stealing download pipeline
// fans getdata out to: the sole connected peer if only one is established,
// otherwise every established peer but the sync peer (§4.3, §5 — "block
// bodies may come from any peer").
func (c *Coordinator) downloadTargets() []PeerID {
	if len(c.established) == 1 {
		for id := range c.established {
			return []PeerID{id}
		}
	}
	targets := make([]PeerID, 0, len(c.established))
	for id := range c.established {
		if id != c.syncPeer {
			targets = append(targets, id)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}

// fillPeerQueue tops id's own in-flight set up to MaxDownloadingBlocks from
// the front of the global queue and sends a single getdata for whatever it
// took.
func (c *Coordinator) fillPeerQueue(id PeerID) {
	sess, ok := c.session(id)
	if !ok {
		return
	}
	inFlight := c.peers[id]
	if inFlight == nil {
		inFlight = make(map[Hash32]struct{})
		c.peers[id] = inFlight
	}
	var batch []Hash32
	for len(inFlight) < c.cfg.MaxDownloadingBlocks && len(c.pendingHeaders) > 0 {
		next := c.pendingHeaders[0]
		c.pendingHeaders = c.pendingHeaders[1:]
		inFlight[next] = struct{}{}
		c.inFlightOwner[next] = id
		batch = append(batch, next)
	}
	if len(batch) == 0 {
		return
	}
	if err := sess.SendMessage(GetDataForBlocks(batch)); err != nil {
		c.log.WithError(err).Warn("coordinator: getdata send failed")
	}
}

// fillDownloadQueue fans pendingHeaders out across every download target in
// turn until the queue drains or every target's in-flight set is full — the
// work-stealing pipeline §4.3 calls out as the Coordinator's defining
// responsibility.
func (c *Coordinator) fillDownloadQueue() {
	for _, id := range c.downloadTargets() {
		if len(c.pendingHeaders) == 0 {
			break
		}
		c.fillPeerQueue(id)
	}
	c.updateDownloadDepthMetric()
}

func (c *Coordinator) totalInFlight() int {
	n := 0
	for _, m := range c.peers {
		n += len(m)
	}
	return n
}

func (c *Coordinator) updateDownloadDepthMetric() {
	MetricDownloadQueueDepth.Set(float64(len(c.pendingHeaders) + c.totalInFlight()))
}

func (c *Coordinator) onBlock(e EventBlockReceived) {
	hash := e.Block.ID()
	if owner, ok := c.inFlightOwner[hash]; ok {
		delete(c.inFlightOwner, hash)
		if m, ok := c.peers[owner]; ok {
			delete(m, hash)
		}
	}
	c.val.Validate(e.Block)
}

func (c *Coordinator) handleValidated(b Block) {
	c.tip = b.ID()
	if err := c.store.SetTip(c.tip); err != nil {
		c.log.WithError(err).Warn("coordinator: failed to persist tip")
	}
	MetricBlocksValidated.Inc()
	c.fillDownloadQueue()
	if len(c.pendingHeaders) == 0 && c.totalInFlight() == 0 && c.syncPeer != 0 {
		c.requestHeaders(c.syncPeer, c.tip)
	}
}

// handleValidatorTimeout is the Validator's onTimeout hook: the owning peer
// (found via inFlightOwner, falling back to the sync peer if the hash
// somehow carries no owner) is dropped and, if a replacement address is
// available, redialed under the same stable PeerID (§4.3).
func (c *Coordinator) handleValidatorTimeout(ctx context.Context, hash Hash32) {
	MetricPeerReplacements.Inc()
	peer, ok := c.inFlightOwner[hash]
	if !ok {
		peer = c.syncPeer
	}
	if peer == 0 {
		return
	}
	wasSync := peer == c.syncPeer
	c.dropPeer(peer)
	c.replacePeer(ctx, peer, wasSync)
}

// dropPeer tears down id's session (if still open) and requeues its entire
// in-flight set to the front of pendingHeaders, so no work is lost across
// the drop (§8.6's no-loss-of-work property): download_queue ∪
// ⋃(peer.in_flight) must remain a superset of every hash still outstanding.
func (c *Coordinator) dropPeer(id PeerID) {
	if sess, ok := c.session(id); ok {
		sess.Kill()
		c.dropSession(id)
	}
	delete(c.established, id)
	if inFlight, ok := c.peers[id]; ok {
		requeue := make([]Hash32, 0, len(inFlight))
		for h := range inFlight {
			delete(c.inFlightOwner, h)
			requeue = append(requeue, h)
		}
		sort.Slice(requeue, func(i, j int) bool { return bytesCompare(requeue[i][:], requeue[j][:]) < 0 })
		c.pendingHeaders = append(requeue, c.pendingHeaders...)
		delete(c.peers, id)
	}
	c.updateDownloadDepthMetric()
}

// replacePeer samples a replacement address and, if one is available,
// redials it reusing id as the stable PeerID. wasSync keeps the Coordinator
// from electing a new sync peer out from under an in-flight replacement
// dial; syncPeer is only cleared if no candidate address exists at all.
func (c *Coordinator) replacePeer(ctx context.Context, id PeerID, wasSync bool) {
	candidates := c.book.Sample(1)
	if len(candidates) == 0 {
		c.log.WithField("peer", id).Warn("coordinator: no replacement address available")
		if wasSync {
			c.syncPeer = 0
		}
		return
	}
	c.dial(ctx, id, candidates[0].Addr.HostPort())
	if wasSync {
		c.syncPeer = id
	}
}

func (c *Coordinator) closeAll() {
	c.sessionsMu.Lock()
	for _, sess := range c.sessions {
		sess.Kill()
	}
	c.sessionsMu.Unlock()
}
