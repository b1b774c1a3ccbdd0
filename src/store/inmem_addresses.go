package store

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mosaicnetworks/murmur/src/peers"
	"github.com/mosaicnetworks/murmur/src/wire"
)

// AddressFreshness is how long an advertised address is considered worth
// dialing.
const AddressFreshness = 3 * time.Hour

// InmemAddressRegistry implements AddressRegistry in memory. When it knows no
// fresh address for a stream it falls back to the bootstrap nodes.
type InmemAddressRegistry struct {
	mu        sync.RWMutex
	known     map[string]wire.NetworkAddress
	bootstrap []*peers.Peer
	now       func() time.Time
}

// NewInmemAddressRegistry ...
func NewInmemAddressRegistry(bootstrap []*peers.Peer) *InmemAddressRegistry {
	return &InmemAddressRegistry{
		known:     make(map[string]wire.NetworkAddress),
		bootstrap: bootstrap,
		now:       time.Now,
	}
}

func addressKey(a wire.NetworkAddress) string {
	return fmt.Sprintf("%d/%s", a.Stream, a.String())
}

// GetKnownAddresses implements AddressRegistry.
func (r *InmemAddressRegistry) GetKnownAddresses(limit int, streams ...uint64) []wire.NetworkAddress {
	now := r.now()
	oldest := now.Add(-AddressFreshness).Unix()

	r.mu.RLock()
	res := []wire.NetworkAddress{}
	found := make(map[uint64]bool)
	for _, a := range r.known {
		if a.Time < oldest || !containsStream(streams, uint64(a.Stream)) {
			continue
		}
		res = append(res, a)
		found[uint64(a.Stream)] = true
	}
	r.mu.RUnlock()

	for _, stream := range streams {
		if found[stream] {
			continue
		}
		for _, p := range r.bootstrap {
			if !p.ServesStream(stream) {
				continue
			}
			a, err := p.NetworkAddress(stream, now.Unix())
			if err != nil {
				continue
			}
			res = append(res, a)
		}
	}

	rand.Shuffle(len(res), func(i, j int) { res[i], res[j] = res[j], res[i] })
	if limit >= 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}

// OfferAddresses implements AddressRegistry. Timestamps from the future are
// clamped to now and an address only replaces an older record of itself.
func (r *InmemAddressRegistry) OfferAddresses(addresses []wire.NetworkAddress) {
	now := r.now().Unix()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range addresses {
		r.offer(a, now)
	}
}

func (r *InmemAddressRegistry) offer(a wire.NetworkAddress, now int64) bool {
	if !a.IsRoutable() {
		return false
	}
	if a.Time > now {
		a.Time = now
	}
	key := addressKey(a)
	if prev, ok := r.known[key]; ok && prev.Time >= a.Time {
		return false
	}
	r.known[key] = a
	return true
}

// Clear implements AddressRegistry.
func (r *InmemAddressRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known = make(map[string]wire.NetworkAddress)
}

// KnownCount returns the number of learned addresses.
func (r *InmemAddressRegistry) KnownCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.known)
}
