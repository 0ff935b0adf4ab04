package core

// PeerSession drives one TCP connection through the handshake state machine
// and the steady-state read loop, translating wire messages into Events the
// Coordinator consumes off its single multi-producer channel (§4.2).

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type sessionState int

const (
	StateClosed sessionState = iota
	StateVerSent
	StateVerAckReceived
	StateVerReceived
	StateEstablished
)

func (s sessionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateVerSent:
		return "ver_sent"
	case StateVerAckReceived:
		return "verack_received"
	case StateVerReceived:
		return "ver_received"
	case StateEstablished:
		return "established"
	default:
		return "unknown"
	}
}

// PeerID stably identifies a session for the process lifetime, independent
// of its current TCP connection: a replacement dial after a Timeout reuses
// the displaced peer's identifier (§4.3) rather than minting a new one.
type PeerID uint64

var peerIDCounter uint64

func nextPeerID() PeerID { return PeerID(atomic.AddUint64(&peerIDCounter, 1)) }

const (
	sessionReadTimeout = 90 * time.Second
	sessionReadBufSize = 64 * 1024
	sessionMaxBuffered = 8 << 20
)

// SessionEvent is the tagged union of everything a PeerSession reports to
// the Coordinator.
type SessionEvent interface{ isSessionEvent() }

type EventConnected struct {
	Peer    PeerID
	Addr    string
	Version VersionMsg
}
type EventAddrs struct {
	Peer  PeerID
	Addrs []NetAddr
}
type EventHeaders struct {
	Peer    PeerID
	Headers []HeaderRecord
}
type EventBlockReceived struct {
	Peer  PeerID
	Block Block
}
type EventConnectionClosed struct {
	Peer PeerID
	Err  error
}

func (EventConnected) isSessionEvent()       {}
func (EventAddrs) isSessionEvent()           {}
func (EventHeaders) isSessionEvent()         {}
func (EventBlockReceived) isSessionEvent()   {}
func (EventConnectionClosed) isSessionEvent() {}

// PeerSession owns one connection's handshake and read loop.
type PeerSession struct {
	id    PeerID
	addr  string
	conn  net.Conn
	magic uint32
	our   VersionMsg

	events chan<- SessionEvent
	log    *logrus.Entry

	mu         sync.Mutex
	state      sessionState
	gotVersion bool
	gotVerAck  bool

	closeOnce sync.Once
}

// NewPeerSession wraps conn for a freshly dialed or accepted TCP connection.
// id is normally a fresh nextPeerID(), except on replacement dials where the
// Coordinator passes the displaced peer's id back in.
func NewPeerSession(id PeerID, addr string, conn net.Conn, magic uint32, ourVersion VersionMsg, events chan<- SessionEvent, log *logrus.Entry) *PeerSession {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PeerSession{
		id:     id,
		addr:   addr,
		conn:   conn,
		magic:  magic,
		our:    ourVersion,
		events: events,
		log:    log.WithField("peer", id).WithField("addr", addr).WithField("session", uuid.NewString()),
	}
}

// ID returns the session's stable peer identifier.
func (p *PeerSession) ID() PeerID { return p.id }

// Run sends our version message and then loops reading and dispatching
// messages until the connection closes or an unrecoverable error occurs. It
// blocks; callers run it in its own goroutine.
func (p *PeerSession) Run() {
	if err := p.sendMessage(p.our); err != nil {
		p.close(Socket(err))
		return
	}
	p.mu.Lock()
	p.state = StateVerSent
	p.mu.Unlock()

	buf := make([]byte, 0, sessionReadBufSize)
	tmp := make([]byte, sessionReadBufSize)
	for {
		if err := p.conn.SetReadDeadline(time.Now().Add(sessionReadTimeout)); err != nil {
			p.close(Socket(err))
			return
		}
		n, err := p.conn.Read(tmp)
		if err != nil {
			p.close(Socket(err))
			return
		}
		buf = append(buf, tmp[:n]...)

		for {
			msg, consumed, err := Parse(buf, p.magic)
			if err != nil {
				if _, partial := err.(*PartialErr); partial {
					break
				}
				p.log.WithError(err).Warn("peer session: discarding malformed message")
				if len(buf) > 0 {
					buf = buf[1:]
					continue
				}
				break
			}
			buf = buf[consumed:]
			p.handle(msg)
		}

		if len(buf) > sessionMaxBuffered {
			p.close(Protocol(ErrInvalidChecksum))
			return
		}
	}
}

func (p *PeerSession) handle(msg Message) {
	switch m := msg.(type) {
	case VersionMsg:
		p.onVersion(m)
	case VerAckMsg:
		p.onVerAck()
	case PingMsg:
		_ = p.sendMessage(PongMsg{Nonce: m.Nonce})
	case PongMsg:
		// latency tracking is out of scope; accepted and ignored.
	case AddrMsg:
		p.emit(EventAddrs{Peer: p.id, Addrs: m.Addrs})
	case HeadersMsg:
		p.emit(EventHeaders{Peer: p.id, Headers: m.Headers})
	case BlockMsg:
		p.emit(EventBlockReceived{Peer: p.id, Block: m.Block})
	case GetAddrMsg, FeeFilterMsg, SendHeadersMsg, AlertMsg, InvMsg, NotFoundMsg, GetHeadersMsg, GetBlocksMsg, GetDataMsg:
		p.log.WithField("command", msg.Command()).Debug("peer session: message accepted, no action")
	default:
		p.log.WithField("command", msg.Command()).Debug("peer session: unhandled message")
	}
}

func (p *PeerSession) onVersion(v VersionMsg) {
	p.mu.Lock()
	p.gotVersion = true
	establishedNow := p.maybeEstablishLocked()
	p.mu.Unlock()

	if err := p.sendMessage(VerAckMsg{}); err != nil {
		p.close(Socket(err))
		return
	}
	if establishedNow {
		p.emit(EventConnected{Peer: p.id, Addr: p.addr, Version: v})
	}
}

func (p *PeerSession) onVerAck() {
	p.mu.Lock()
	p.gotVerAck = true
	establishedNow := p.maybeEstablishLocked()
	p.mu.Unlock()
	if establishedNow {
		p.emit(EventConnected{Peer: p.id, Addr: p.addr})
	}
}

// maybeEstablishLocked transitions VER_SENT -> {VERACK_RECEIVED,VER_RECEIVED}
// -> ESTABLISHED once both halves of the handshake have completed. Caller
// must hold p.mu. Returns true exactly once, the transition into
// ESTABLISHED.
func (p *PeerSession) maybeEstablishLocked() bool {
	if p.state == StateEstablished {
		return false
	}
	switch {
	case p.gotVersion && p.gotVerAck:
		p.state = StateEstablished
		return true
	case p.gotVersion:
		p.state = StateVerReceived
	case p.gotVerAck:
		p.state = StateVerAckReceived
	}
	return false
}

func (p *PeerSession) emit(ev SessionEvent) {
	select {
	case p.events <- ev:
	default:
		p.log.Warn("peer session: event channel full, dropping event")
	}
}

func (p *PeerSession) sendMessage(msg Message) error {
	_, err := p.conn.Write(Encode(p.magic, msg))
	return err
}

// SendMessage lets the Coordinator push a message (getheaders, getdata, ...)
// to this peer.
func (p *PeerSession) SendMessage(msg Message) error { return p.sendMessage(msg) }

// Kill forcibly closes the underlying connection, unblocking Run's read.
func (p *PeerSession) Kill() { _ = p.conn.Close() }

func (p *PeerSession) close(err error) {
	p.closeOnce.Do(func() {
		_ = p.conn.Close()
		p.mu.Lock()
		p.state = StateClosed
		p.mu.Unlock()
		p.emit(EventConnectionClosed{Peer: p.id, Err: err})
	})
}
