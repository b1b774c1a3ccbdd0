package node

import (
	"github.com/mosaicnetworks/murmur/src/wire"
)

// distribute requests ivs, which must already be in the ledger, from the
// active connections. Connections are visited round robin starting at next;
// each vector goes to the first one that knows it and has not requested it
// yet. Requests are flushed every wire.MaxInvEntries vectors. Vectors no
// connection can serve are forgotten. It returns the position to resume from
// on the next call.
func distribute(conns []*Connection, ivs []wire.InventoryVector, next int, ledger *Ledger) int {
	active := make([]*Connection, 0, len(conns))
	for _, c := range conns {
		if c.State() == Active {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		for _, iv := range ivs {
			forget(conns, iv, ledger)
		}
		return 0
	}
	next %= len(active)

	batches := make([][]wire.InventoryVector, len(active))
	for _, iv := range ivs {
		assigned := false
		for k := 0; k < len(active); k++ {
			i := (next + k) % len(active)
			c := active[i]
			if !c.Knows(iv) || c.Requested(iv) {
				continue
			}

			batches[i] = append(batches[i], iv)
			if len(batches[i]) == wire.MaxInvEntries {
				c.request(batches[i])
				batches[i] = nil
			}
			next = (i + 1) % len(active)
			assigned = true
			break
		}
		if !assigned {
			forget(conns, iv, ledger)
		}
	}

	for i, c := range active {
		c.request(batches[i])
	}
	return next
}

// forget gives up on iv: it leaves the ledger and every connection stops
// waiting for it.
func forget(conns []*Connection, iv wire.InventoryVector, ledger *Ledger) {
	ledger.Remove(iv)
	for _, c := range conns {
		c.requested.Remove(iv)
	}
}
