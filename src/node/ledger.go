package node

import (
	"sync"
	"time"

	"github.com/mosaicnetworks/murmur/src/wire"
)

type ledgerEntry struct {
	requested time.Time
	delayed   bool
}

// Ledger records the vectors requested from any peer, so that an object
// advertised by several peers is only asked for once. It is shared by every
// connection of a node and safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	entries map[wire.InventoryVector]*ledgerEntry
}

// NewLedger ...
func NewLedger() *Ledger {
	return &Ledger{
		entries: make(map[wire.InventoryVector]*ledgerEntry),
	}
}

// TryAcquire records ivs as requested at now and returns those that were not
// already recorded, in order.
func (l *Ledger) TryAcquire(ivs []wire.InventoryVector, now time.Time) []wire.InventoryVector {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := make([]wire.InventoryVector, 0, len(ivs))
	for _, iv := range ivs {
		if _, ok := l.entries[iv]; ok {
			continue
		}
		l.entries[iv] = &ledgerEntry{requested: now}
		res = append(res, iv)
	}
	return res
}

// Contains ...
func (l *Ledger) Contains(iv wire.InventoryVector) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[iv]
	return ok
}

// Remove forgets iv. It reports whether iv was recorded.
func (l *Ledger) Remove(iv wire.InventoryVector) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[iv]
	delete(l.entries, iv)
	return ok
}

// Sweep drops the entries returned by the previous Sweep that are still
// outstanding, then returns the entries requested more than timeout ago and
// marks them for the next pass. Callers re-request retry.
func (l *Ledger) Sweep(now time.Time, timeout time.Duration) (retry, dropped []wire.InventoryVector) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for iv, e := range l.entries {
		switch {
		case e.delayed:
			delete(l.entries, iv)
			dropped = append(dropped, iv)
		case now.Sub(e.requested) > timeout:
			e.delayed = true
			retry = append(retry, iv)
		}
	}
	return retry, dropped
}

// Len returns the number of outstanding requests.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
