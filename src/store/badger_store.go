package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/peers"
	"github.com/mosaicnetworks/murmur/src/wire"
	"github.com/sirupsen/logrus"
)

const (
	objectPrefix  = "obj"
	addressPrefix = "addr"
	powPrefix     = "pow"
	messagePrefix = "msg"
)

type indexEntry struct {
	stream  uint64
	expires int64
}

// BadgerStore implements Store on top of a Badger database. The inventory
// index and the address registry are mirrored in memory; objects, work items
// and messages are read from disk on demand.
type BadgerStore struct {
	db   *badger.DB
	path string

	indexLock sync.RWMutex
	index     map[wire.InventoryVector]indexEntry

	addresses *InmemAddressRegistry

	now    func() time.Time
	logger *logrus.Entry
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path.
func NewBadgerStore(path string, bootstrap []*peers.Peer, logger *logrus.Entry) (*BadgerStore, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true).
		WithLogger(logger.WithFields(logrus.Fields{"ns": "badger"}))

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		db:        handle,
		path:      path,
		index:     make(map[wire.InventoryVector]indexEntry),
		addresses: NewInmemAddressRegistry(bootstrap),
		now:       time.Now,
		logger:    logger,
	}

	if err := store.loadIndex(); err != nil {
		handle.Close()
		return nil, err
	}
	if err := store.loadAddresses(); err != nil {
		handle.Close()
		return nil, err
	}

	return store, nil
}

//==============================================================================
//Keys

func objectKey(iv wire.InventoryVector) []byte {
	return []byte(fmt.Sprintf("%s_%s", objectPrefix, iv))
}

func addrKey(a wire.NetworkAddress) []byte {
	return []byte(fmt.Sprintf("%s_%s", addressPrefix, addressKey(a)))
}

func powKey(initialHash []byte) []byte {
	return []byte(fmt.Sprintf("%s_%s", powPrefix, hashKey(initialHash)))
}

func messageKey(initialHash []byte) []byte {
	return []byte(fmt.Sprintf("%s_%s", messagePrefix, hashKey(initialHash)))
}

func prefixOf(name string) []byte {
	return []byte(name + "_")
}

//==============================================================================
//Inventory

// GetInventory implements Inventory.
func (s *BadgerStore) GetInventory(streams ...uint64) []wire.InventoryVector {
	now := s.now().Unix()

	s.indexLock.RLock()
	defer s.indexLock.RUnlock()

	res := []wire.InventoryVector{}
	for iv, e := range s.index {
		if e.expires > now && containsStream(streams, e.stream) {
			res = append(res, iv)
		}
	}
	return res
}

// GetMissing implements Inventory.
func (s *BadgerStore) GetMissing(offered []wire.InventoryVector, streams ...uint64) []wire.InventoryVector {
	s.indexLock.RLock()
	defer s.indexLock.RUnlock()

	res := []wire.InventoryVector{}
	for _, iv := range offered {
		if _, ok := s.index[iv]; !ok {
			res = append(res, iv)
		}
	}
	return res
}

// GetObject implements Inventory.
func (s *BadgerStore) GetObject(iv wire.InventoryVector) (*wire.Object, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(objectKey(iv))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, mapError(err, "Inventory", iv.String())
	}
	return wire.DecodeObject(data)
}

// StoreObject implements Inventory.
func (s *BadgerStore) StoreObject(obj *wire.Object) error {
	iv, ok := obj.InventoryVector()
	if !ok {
		return cm.NewStoreErr("Inventory", cm.Empty, "nonce")
	}

	s.indexLock.RLock()
	_, known := s.index[iv]
	s.indexLock.RUnlock()
	if known {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(objectKey(iv), obj.Bytes())
	})
	if err != nil {
		return err
	}

	s.indexLock.Lock()
	s.index[iv] = indexEntry{stream: obj.Stream, expires: obj.ExpiresTime}
	s.indexLock.Unlock()
	return nil
}

// Contains implements Inventory.
func (s *BadgerStore) Contains(obj *wire.Object) bool {
	iv, ok := obj.InventoryVector()
	if !ok {
		return false
	}

	s.indexLock.RLock()
	defer s.indexLock.RUnlock()
	_, ok = s.index[iv]
	return ok
}

// Cleanup implements Inventory.
func (s *BadgerStore) Cleanup() {
	limit := s.now().Add(-CleanupGrace).Unix()

	var stale []wire.InventoryVector
	s.indexLock.Lock()
	for iv, e := range s.index {
		if e.expires < limit {
			stale = append(stale, iv)
			delete(s.index, iv)
		}
	}
	s.indexLock.Unlock()

	if len(stale) == 0 {
		return
	}

	err := s.deleteKeys(func(add func([]byte)) {
		for _, iv := range stale {
			add(objectKey(iv))
		}
	})
	if err != nil {
		s.logger.WithError(err).Error("Inventory cleanup")
		return
	}
	s.logger.WithField("objects", len(stale)).Debug("Inventory cleanup")
}

func (s *BadgerStore) loadIndex() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := prefixOf(objectPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(data []byte) error {
				obj, err := wire.DecodeObject(data)
				if err != nil {
					return err
				}
				iv, _ := obj.InventoryVector()
				s.index[iv] = indexEntry{stream: obj.Stream, expires: obj.ExpiresTime}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

//==============================================================================
//AddressRegistry

// GetKnownAddresses implements AddressRegistry.
func (s *BadgerStore) GetKnownAddresses(limit int, streams ...uint64) []wire.NetworkAddress {
	return s.addresses.GetKnownAddresses(limit, streams...)
}

// OfferAddresses implements AddressRegistry. Accepted addresses are written
// through to the database.
func (s *BadgerStore) OfferAddresses(addresses []wire.NetworkAddress) {
	now := s.now().Unix()

	s.addresses.mu.Lock()
	var accepted []wire.NetworkAddress
	for _, a := range addresses {
		if s.addresses.offer(a, now) {
			accepted = append(accepted, s.addresses.known[addressKey(a)])
		}
	}
	s.addresses.mu.Unlock()

	if len(accepted) == 0 {
		return
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, a := range accepted {
			val, err := marshalAddress(a)
			if err != nil {
				return err
			}
			if err := txn.Set(addrKey(a), val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Error("Persisting addresses")
	}
}

// Clear implements AddressRegistry.
func (s *BadgerStore) Clear() {
	s.addresses.Clear()
	if err := s.dropPrefix(addressPrefix); err != nil {
		s.logger.WithError(err).Error("Clearing addresses")
	}
}

func (s *BadgerStore) loadAddresses() error {
	var loaded []wire.NetworkAddress
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := prefixOf(addressPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(data []byte) error {
				a, err := unmarshalAddress(data)
				if err != nil {
					return err
				}
				loaded = append(loaded, a)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.addresses.OfferAddresses(loaded)
	return nil
}

//==============================================================================
//ProofOfWorkQueue

// Put implements ProofOfWorkQueue.
func (s *BadgerStore) Put(item *WorkItem) error {
	val, err := marshalWorkItem(item)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(powKey(item.Object.InitialHash()), val)
	})
}

// Get implements ProofOfWorkQueue.
func (s *BadgerStore) Get(initialHash []byte) (*WorkItem, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(powKey(initialHash))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, mapError(err, "ProofOfWorkQueue", hashKey(initialHash))
	}
	return unmarshalWorkItem(data)
}

// Remove implements ProofOfWorkQueue.
func (s *BadgerStore) Remove(initialHash []byte) error {
	key := powKey(initialHash)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	return mapError(err, "ProofOfWorkQueue", hashKey(initialHash))
}

// ListPending implements ProofOfWorkQueue.
func (s *BadgerStore) ListPending() [][]byte {
	res := [][]byte{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := prefixOf(powPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(data []byte) error {
				item, err := unmarshalWorkItem(data)
				if err != nil {
					return err
				}
				res = append(res, item.Object.InitialHash())
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Error("Listing pending proof of work")
	}
	return res
}

//==============================================================================
//MessageRepository

// GetMessage implements MessageRepository.
func (s *BadgerStore) GetMessage(initialHash []byte) (*Message, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageKey(initialHash))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, mapError(err, "MessageRepository", hashKey(initialHash))
	}
	m := new(Message)
	if err := unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveMessage implements MessageRepository.
func (s *BadgerStore) SaveMessage(m *Message) error {
	if len(m.InitialHash) == 0 {
		return cm.NewStoreErr("MessageRepository", cm.Empty, "initial hash")
	}
	val, err := marshal(m)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(m.InitialHash), val)
	})
}

//==============================================================================

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath returns the filepath of the underlying database.
func (s *BadgerStore) StorePath() string {
	return s.path
}

func (s *BadgerStore) dropPrefix(name string) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := prefixOf(name)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.deleteKeys(func(add func([]byte)) {
		for _, k := range keys {
			add(k)
		}
	})
}

// deleteKeys deletes the keys produced by gen, committing in as many
// transactions as Badger requires.
func (s *BadgerStore) deleteKeys(gen func(add func([]byte))) error {
	tx := s.db.NewTransaction(true)
	var err error
	gen(func(key []byte) {
		if err != nil {
			return
		}
		err = tx.Delete(key)
		if err == badger.ErrTxnTooBig {
			if err = tx.Commit(); err != nil {
				return
			}
			tx = s.db.NewTransaction(true)
			err = tx.Delete(key)
		}
	})
	if err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

func isDBKeyNotFound(err error) bool {
	return err.Error() == badger.ErrKeyNotFound.Error()
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
