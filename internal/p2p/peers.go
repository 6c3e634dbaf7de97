package p2p

import (
	"log"
	"sync"

	"github.com/nodeforge/bitledger/internal/codec"
)

// Peers is the process-wide set of known peer addresses (textual
// host:port), seeded with the hard-coded center node.
type Peers struct {
	mu   sync.RWMutex
	addr map[string]struct{}
}

// NewPeers returns a peer registry seeded with the center node.
func NewPeers() *Peers {
	p := &Peers{addr: make(map[string]struct{})}
	p.addr[CenterNode] = struct{}{}
	return p
}

// Fingerprint returns a short SHA3-256-derived identifier for addr, printed
// next to the full address in log lines.
func Fingerprint(addr string) string {
	return codec.HexLower(codec.SHA3256([]byte(addr)))[:8]
}

// Add records addr as a known peer.
func (p *Peers) Add(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, known := p.addr[addr]; !known {
		log.Printf("p2p: new peer %s (%s)", addr, Fingerprint(addr))
	}
	p.addr[addr] = struct{}{}
}

// Contains reports whether addr is already known.
func (p *Peers) Contains(addr string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.addr[addr]
	return ok
}

// List returns every known peer address, order unspecified.
func (p *Peers) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.addr))
	for a := range p.addr {
		out = append(out, a)
	}
	return out
}

// Evict drops addr from the known set, used when an outbound send fails to
// connect.
func (p *Peers) Evict(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.addr, addr)
}
