package store

import (
	"github.com/mosaicnetworks/murmur/src/peers"
)

// InmemStore implements Store with the in-memory collaborators. Nothing
// survives a restart, so it is meant for tests and throwaway nodes.
type InmemStore struct {
	*InmemInventory
	*InmemAddressRegistry
	*InmemProofOfWorkQueue
	*InmemMessageRepository
}

// NewInmemStore ...
func NewInmemStore(bootstrap []*peers.Peer) *InmemStore {
	return &InmemStore{
		InmemInventory:         NewInmemInventory(),
		InmemAddressRegistry:   NewInmemAddressRegistry(bootstrap),
		InmemProofOfWorkQueue:  NewInmemProofOfWorkQueue(),
		InmemMessageRepository: NewInmemMessageRepository(),
	}
}

// Close implements Store.
func (s *InmemStore) Close() error {
	return nil
}
