package store

import (
	"github.com/mosaicnetworks/murmur/src/wire"
)

// Inventory holds the objects this node knows about.
type Inventory interface {
	// GetInventory returns the vectors of all unexpired objects in streams.
	GetInventory(streams ...uint64) []wire.InventoryVector
	// GetMissing returns the offered vectors this inventory does not hold.
	GetMissing(offered []wire.InventoryVector, streams ...uint64) []wire.InventoryVector
	// GetObject returns an object by vector.
	GetObject(iv wire.InventoryVector) (*wire.Object, error)
	// StoreObject inserts an object. Storing a known object is a no-op.
	StoreObject(obj *wire.Object) error
	// Contains reports whether the object is already held.
	Contains(obj *wire.Object) bool
	// Cleanup drops objects that expired a while ago.
	Cleanup()
}

// AddressRegistry collects node addresses learned from the network.
type AddressRegistry interface {
	// GetKnownAddresses returns up to limit recently seen addresses serving
	// streams, in random order.
	GetKnownAddresses(limit int, streams ...uint64) []wire.NetworkAddress
	// OfferAddresses records addresses advertised by a peer.
	OfferAddresses(addresses []wire.NetworkAddress)
	// Clear forgets every learned address.
	Clear()
}

// ProofOfWorkQueue persists pending nonce searches so they survive a
// restart. Items are keyed by the initial hash of their object.
type ProofOfWorkQueue interface {
	Put(item *WorkItem) error
	Get(initialHash []byte) (*WorkItem, error)
	Remove(initialHash []byte) error
	ListPending() [][]byte
}

// MessageRepository stores outgoing messages so their state can follow the
// proof of work of the objects carrying them.
type MessageRepository interface {
	GetMessage(initialHash []byte) (*Message, error)
	SaveMessage(m *Message) error
}

// Store bundles every collaborator a node needs.
type Store interface {
	Inventory
	AddressRegistry
	ProofOfWorkQueue
	MessageRepository
	Close() error
}
