package core

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Addr is the 26-byte address record embedded in version payloads: services
// bitfield, IPv6 address (IPv4 embedded as ::ffff:a.b.c.d), and a big-endian
// port — the lone big-endian field in the whole wire protocol.
type Addr struct {
	Services uint64
	IP       net.IP // always 16 bytes, v4-in-v6 when the peer is IPv4
	Port     uint16
}

// NetAddr is Addr prefixed with a u32 last-seen timestamp, as carried in
// getaddr/addr payloads (30 bytes) — "known active" entries in the
// Coordinator's global state.
type NetAddr struct {
	Time uint32
	Addr Addr
}

func (a Addr) Bytes() []byte {
	b := make([]byte, 26)
	binary.LittleEndian.PutUint64(b[0:8], a.Services)
	ip16 := a.IP.To16()
	if ip16 == nil {
		ip16 = net.IPv4zero.To16()
	}
	copy(b[8:24], ip16)
	binary.BigEndian.PutUint16(b[24:26], a.Port)
	return b
}

func AddrFromBytes(b []byte) (Addr, int, error) {
	if len(b) < 26 {
		return Addr{}, 0, &PartialErr{Needed: 26 - len(b)}
	}
	a := Addr{
		Services: binary.LittleEndian.Uint64(b[0:8]),
		IP:       append(net.IP(nil), b[8:24]...),
		Port:     binary.BigEndian.Uint16(b[24:26]),
	}
	return a, 26, nil
}

func (n NetAddr) Bytes() []byte {
	b := make([]byte, 4, 30)
	binary.LittleEndian.PutUint32(b, n.Time)
	return append(b, n.Addr.Bytes()...)
}

func NetAddrFromBytes(b []byte) (NetAddr, int, error) {
	if len(b) < 4 {
		return NetAddr{}, 0, &PartialErr{Needed: 4 - len(b)}
	}
	time := binary.LittleEndian.Uint32(b[0:4])
	a, n, err := AddrFromBytes(b[4:])
	if err != nil {
		return NetAddr{}, 0, err
	}
	return NetAddr{Time: time, Addr: a}, 4 + n, nil
}

// HostPort renders the address as a dialable "host:port" string.
func (a Addr) HostPort() string {
	return fmt.Sprintf("%s:%d", a.IP.String(), a.Port)
}
