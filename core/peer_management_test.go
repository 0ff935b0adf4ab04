package core

import (
	"net"
	"testing"
)

func TestAddressBookAddAndSample(t *testing.T) {
	book := NewAddressBook(4)
	for i := 0; i < 3; i++ {
		book.Add(NetAddr{Time: uint32(i), Addr: Addr{IP: net.IPv4(127, 0, 0, byte(i + 1)), Port: 8333}})
	}
	if book.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", book.Len())
	}
	sample := book.Sample(2)
	if len(sample) != 2 {
		t.Fatalf("expected 2 sampled entries, got %d", len(sample))
	}
}

func TestAddressBookEvictsOldest(t *testing.T) {
	book := NewAddressBook(2)
	book.Add(NetAddr{Addr: Addr{IP: net.IPv4(10, 0, 0, 1), Port: 8333}})
	book.Add(NetAddr{Addr: Addr{IP: net.IPv4(10, 0, 0, 2), Port: 8333}})
	book.Add(NetAddr{Addr: Addr{IP: net.IPv4(10, 0, 0, 3), Port: 8333}})
	if book.Len() != 2 {
		t.Fatalf("expected bounded to 2 entries, got %d", book.Len())
	}
}

func TestAddressBookRemove(t *testing.T) {
	book := NewAddressBook(4)
	a := NetAddr{Addr: Addr{IP: net.IPv4(10, 0, 0, 1), Port: 8333}}
	book.Add(a)
	book.Remove(a.Addr.HostPort())
	if book.Len() != 0 {
		t.Fatalf("expected entry removed")
	}
}
