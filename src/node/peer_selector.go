package node

import (
	"math/rand"

	"github.com/mosaicnetworks/murmur/src/wire"
)

// OfferFanout is the number of peers a new object is offered to.
const OfferFanout = 8

// selectOfferTargets picks up to OfferFanout random active connections,
// other than from, that do not know iv.
func selectOfferTargets(conns []*Connection, iv wire.InventoryVector, from *Connection) []*Connection {
	selectable := make([]*Connection, 0, len(conns))
	for _, c := range conns {
		if c == from || c.State() != Active || c.Knows(iv) {
			continue
		}
		selectable = append(selectable, c)
	}

	rand.Shuffle(len(selectable), func(i, j int) {
		selectable[i], selectable[j] = selectable[j], selectable[i]
	})
	if len(selectable) > OfferFanout {
		selectable = selectable[:OfferFanout]
	}
	return selectable
}
