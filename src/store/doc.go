// Package store holds the collaborators the node and the proof of work
// service persist through: the object Inventory, the AddressRegistry of known
// nodes, the ProofOfWorkQueue of pending nonce searches and the
// MessageRepository of outgoing messages.
//
// Two families of implementations are provided. The Inmem ones keep
// everything in memory and are used for tests and ephemeral nodes. The
// BadgerStore persists everything in a single Badger database and keeps an
// in-memory index of the inventory so that lookups made from the node's
// reactor never touch the disk.
package store
