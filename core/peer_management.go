package core

// AddressBook tracks the "known active" peer addresses the Coordinator has
// learned about, either from a DNS seed or from an addr message a peer sent.
// It is bounded: once full, the least-recently-seen address is evicted to
// make room for a new one, the same bounded-recency discipline as the
// block-read cache in storage.go.

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultAddressBookSize = 4096

// AddressBook is safe for concurrent use.
type AddressBook struct {
	mu    sync.Mutex
	cache *lru.Cache[string, NetAddr]
}

// NewAddressBook builds an AddressBook bounded to size entries (0 uses
// defaultAddressBookSize).
func NewAddressBook(size int) *AddressBook {
	if size <= 0 {
		size = defaultAddressBookSize
	}
	cache, _ := lru.New[string, NetAddr](size)
	return &AddressBook{cache: cache}
}

// Add records or refreshes an address, keyed by its dialable host:port.
func (b *AddressBook) Add(a NetAddr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Add(a.Addr.HostPort(), a)
}

// AddMany records a batch of addresses, the shape an addr message or a DNS
// seed lookup produces.
func (b *AddressBook) AddMany(addrs []NetAddr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range addrs {
		b.cache.Add(a.Addr.HostPort(), a)
	}
}

// Remove drops an address, used when a dial to it fails outright.
func (b *AddressBook) Remove(hostPort string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Remove(hostPort)
}

// Sample returns up to n known addresses, most-recently-seen first, the
// candidates the Coordinator's peer-replacement logic dials in order.
func (b *AddressBook) Sample(n int) []NetAddr {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := b.cache.Keys()
	if n > len(keys) {
		n = len(keys)
	}
	out := make([]NetAddr, 0, n)
	for i := len(keys) - 1; i >= 0 && len(out) < n; i-- {
		if a, ok := b.cache.Peek(keys[i]); ok {
			out = append(out, a)
		}
	}
	return out
}

// Len reports how many addresses are currently known.
func (b *AddressBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cache.Len()
}
