package peers

import (
	"github.com/mosaicnetworks/murmur/src/wire"
)

// Peer is a stable node the operator trusts to be reachable.
type Peer struct {
	NetAddr string
	Streams []uint64 `json:",omitempty"`
	Moniker string   `json:",omitempty"`
}

// NewPeer ...
func NewPeer(netAddr string, streams ...uint64) *Peer {
	return &Peer{
		NetAddr: netAddr,
		Streams: streams,
	}
}

// ServesStream reports whether p serves stream. A peer listing no streams
// serves stream 1.
func (p *Peer) ServesStream(stream uint64) bool {
	if len(p.Streams) == 0 {
		return stream == 1
	}
	for _, s := range p.Streams {
		if s == stream {
			return true
		}
	}
	return false
}

// NetworkAddress resolves p into the address advertised for stream.
func (p *Peer) NetworkAddress(stream uint64, now int64) (wire.NetworkAddress, error) {
	return wire.NewNetworkAddress(p.NetAddr, uint32(stream), wire.NodeNetwork, now)
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, peer string) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.NetAddr != peer {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
