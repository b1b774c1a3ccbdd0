package peers

// PeerStore provides access to the list of bootstrap nodes.
type PeerStore interface {
	Peers() ([]*Peer, error)
	SetPeers([]*Peer) error
}
