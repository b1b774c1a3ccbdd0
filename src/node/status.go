package node

import (
	"strconv"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
)

// StreamStatus counts the active connections serving one stream.
type StreamStatus struct {
	Incoming int `json:"incoming"`
	Outgoing int `json:"outgoing"`
}

// Status is a snapshot of a node's connections.
type Status struct {
	State            string                   `json:"state"`
	UserAgent        string                   `json:"user_agent"`
	Connections      map[uint64]*StreamStatus `json:"connections"`
	Connecting       int                      `json:"connecting"`
	KnownConnections int                      `json:"known_connections"`
	PendingRequests  int                      `json:"pending_requests"`
	// ClockOffset is the median difference between the clocks of active
	// peers and ours.
	ClockOffset time.Duration `json:"clock_offset"`
}

// Status returns a snapshot of the node.
func (n *Node) Status() Status {
	s := Status{
		State:       n.getState().String(),
		UserAgent:   n.env.identity.UserAgent,
		Connections: make(map[uint64]*StreamStatus),
	}
	for _, stream := range n.env.identity.Streams {
		s.Connections[stream] = &StreamStatus{}
	}

	n.call(func() {
		var offsets []int64
		for _, p := range n.peers {
			c := p.conn
			s.KnownConnections++
			if c.state != Active {
				s.Connecting++
				continue
			}
			offsets = append(offsets, c.clockOffset)
			for _, stream := range c.streams {
				ss, ok := s.Connections[stream]
				if !ok {
					continue
				}
				if c.mode == Server {
					ss.Incoming++
				} else {
					ss.Outgoing++
				}
			}
		}
		s.ClockOffset = time.Duration(common.Median(offsets)) * time.Second
	})
	s.PendingRequests = n.ledger.Len()

	return s
}

// ActiveConnections returns the number of active connections.
func (n *Node) ActiveConnections() int {
	count := 0
	n.call(func() {
		for _, p := range n.peers {
			if p.conn.state == Active {
				count++
			}
		}
	})
	return count
}

// GetStats returns the status as strings, for display.
func (n *Node) GetStats() map[string]string {
	status := n.Status()

	incoming, outgoing := 0, 0
	for _, ss := range status.Connections {
		incoming += ss.Incoming
		outgoing += ss.Outgoing
	}

	return map[string]string{
		"state":             status.State,
		"user_agent":        status.UserAgent,
		"incoming":          strconv.Itoa(incoming),
		"outgoing":          strconv.Itoa(outgoing),
		"connecting":        strconv.Itoa(status.Connecting),
		"known_connections": strconv.Itoa(status.KnownConnections),
		"pending_requests":  strconv.Itoa(status.PendingRequests),
		"clock_offset":      status.ClockOffset.String(),
	}
}
