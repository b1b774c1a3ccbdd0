package node

import (
	"net"
	"strconv"

	"github.com/sirupsen/logrus"
)

func (n *Node) maintenanceLoop() {
	for {
		select {
		case <-n.controlTimer.tickCh:
			n.maintain()
			n.controlTimer.Reset(n.conf.MaintenanceInterval)
		case <-n.ctx.Done():
			return
		}
	}
}

// maintain reaps idle connections, dials new ones when below the connection
// limit, retries stale requests and cleans the inventory up.
func (n *Node) maintain() {
	now := n.env.now()

	n.call(func() {
		for _, p := range n.peers {
			if p.conn.expired(now) {
				p.conn.logger.WithField("state", p.conn.State().String()).Debug("Connection expired")
				n.drop(p, ErrExpired)
			}
		}
		n.connectMore()
		n.census()
	})

	if now.Sub(n.lastSweep) >= n.conf.RequestTimeout {
		n.lastSweep = now
		retry, dropped := n.ledger.Sweep(now, n.conf.RequestTimeout)
		if len(retry) > 0 || len(dropped) > 0 {
			n.logger.WithFields(logrus.Fields{
				"retry":   len(retry),
				"dropped": len(dropped),
			}).Debug("Swept request ledger")

			n.call(func() {
				conns := n.connections()
				for _, iv := range dropped {
					forget(conns, iv, n.ledger)
				}
				n.next = distribute(conns, retry, n.next, n.ledger)
			})
		}
	}

	if now.Sub(n.lastCleanup) >= n.conf.CleanupInterval {
		n.lastCleanup = now
		n.logger.Debug("Cleaning up inventory")
		n.env.inventory.Cleanup()
	}

	n.metrics.PendingRequests.Set(float64(n.ledger.Len()))
}

// connectMore dials known addresses until enough outgoing connections are
// open or opening. It must run on the reactor.
func (n *Node) connectMore() {
	connected := make(map[string]bool)
	outgoing := len(n.dialing)
	for _, p := range n.peers {
		c := p.conn
		connected[c.remote] = true
		if a := c.advertisedAddress(); a != "" {
			connected[a] = true
		}
		if c.state == Disconnected {
			continue
		}
		if c.mode == Client {
			outgoing++
		}
	}

	need := n.conf.ConnectionLimit - outgoing
	if need <= 0 {
		return
	}

	self := n.layer.AdvertiseAddr()
	for _, a := range n.env.addresses.GetKnownAddresses(outboundCandidates, n.env.identity.Streams...) {
		if need == 0 {
			break
		}
		addr := a.String()
		if addr == self || connected[addr] || n.dialing[addr] {
			continue
		}
		n.logger.WithField("peer", addr).Debug("Connecting")
		n.dial(addr, Client)
		connected[addr] = true
		need--
	}
}

// advertisedAddress returns the address the peer listens on, as told in its
// version message.
func (c *Connection) advertisedAddress() string {
	if c.peer == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(c.remote)
	if err != nil {
		return ""
	}
	return net.JoinHostPort(host, strconv.Itoa(int(c.peer.AddrFrom.Port)))
}

// census updates the connection gauges. It must run on the reactor.
func (n *Node) census() {
	n.metrics.Connections.Reset()
	for _, p := range n.peers {
		dir := "outgoing"
		if p.conn.mode == Server {
			dir = "incoming"
		}
		n.metrics.Connections.WithLabelValues(p.conn.state.String(), dir).Inc()
	}
}
