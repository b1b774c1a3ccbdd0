package store

import (
	"sync"
	"time"

	cm "github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/wire"
)

// CleanupGrace is how long an expired object is kept before Cleanup drops
// it, so that peers with a skewed clock are not asked for it again at once.
const CleanupGrace = 5 * time.Minute

// InmemInventory implements Inventory with a map.
type InmemInventory struct {
	mu      sync.RWMutex
	objects map[wire.InventoryVector]*wire.Object
	now     func() time.Time
}

// NewInmemInventory ...
func NewInmemInventory() *InmemInventory {
	return &InmemInventory{
		objects: make(map[wire.InventoryVector]*wire.Object),
		now:     time.Now,
	}
}

// GetInventory implements Inventory.
func (s *InmemInventory) GetInventory(streams ...uint64) []wire.InventoryVector {
	now := s.now().Unix()

	s.mu.RLock()
	defer s.mu.RUnlock()

	res := []wire.InventoryVector{}
	for iv, obj := range s.objects {
		if obj.ExpiresTime > now && containsStream(streams, obj.Stream) {
			res = append(res, iv)
		}
	}
	return res
}

// GetMissing implements Inventory.
func (s *InmemInventory) GetMissing(offered []wire.InventoryVector, streams ...uint64) []wire.InventoryVector {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := []wire.InventoryVector{}
	for _, iv := range offered {
		if _, ok := s.objects[iv]; !ok {
			res = append(res, iv)
		}
	}
	return res
}

// GetObject implements Inventory.
func (s *InmemInventory) GetObject(iv wire.InventoryVector) (*wire.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[iv]
	if !ok {
		return nil, cm.NewStoreErr("Inventory", cm.KeyNotFound, iv.String())
	}
	return obj, nil
}

// StoreObject implements Inventory.
func (s *InmemInventory) StoreObject(obj *wire.Object) error {
	iv, ok := obj.InventoryVector()
	if !ok {
		return cm.NewStoreErr("Inventory", cm.Empty, "nonce")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[iv]; !ok {
		s.objects[iv] = obj
	}
	return nil
}

// Contains implements Inventory.
func (s *InmemInventory) Contains(obj *wire.Object) bool {
	iv, ok := obj.InventoryVector()
	if !ok {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok = s.objects[iv]
	return ok
}

// Cleanup implements Inventory.
func (s *InmemInventory) Cleanup() {
	s.cleanup()
}

// cleanup removes stale objects and returns their vectors.
func (s *InmemInventory) cleanup() []wire.InventoryVector {
	limit := s.now().Add(-CleanupGrace).Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []wire.InventoryVector
	for iv, obj := range s.objects {
		if obj.ExpiresTime < limit {
			delete(s.objects, iv)
			removed = append(removed, iv)
		}
	}
	return removed
}

// Len returns the number of objects held.
func (s *InmemInventory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func containsStream(streams []uint64, stream uint64) bool {
	if len(streams) == 0 {
		return true
	}
	for _, s := range streams {
		if s == stream {
			return true
		}
	}
	return false
}
