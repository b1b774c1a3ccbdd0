package net

import (
	"net"
	"time"
)

// Dialer opens outgoing connections.
type Dialer interface {
	// Dial is used to create a new outgoing connection
	Dial(address string, timeout time.Duration) (net.Conn, error)
}

// StreamLayer provides the low level stream abstraction used by nodes to
// accept and open connections.
type StreamLayer interface {
	net.Listener
	Dialer

	// AdvertiseAddr returns the publicly-reachable address of the stream
	AdvertiseAddr() string
}

// TCPDialer dials plain TCP without listening.
type TCPDialer struct{}

// Dial implements Dialer.
func (TCPDialer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", address, timeout)
}
