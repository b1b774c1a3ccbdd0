package net

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

var (
	// ErrListenerClosed is returned by Accept after Close.
	ErrListenerClosed = errors.New("listener closed")
	// ErrUnreachable is returned when dialing an address nobody listens on.
	ErrUnreachable = errors.New("address unreachable")
)

type inmemAddr string

func (a inmemAddr) Network() string { return "inmem" }
func (a inmemAddr) String() string  { return string(a) }

// inmemConn reports the in-memory addresses of both ends instead of the
// placeholders net.Pipe uses.
type inmemConn struct {
	net.Conn
	local  inmemAddr
	remote inmemAddr
}

func (c *inmemConn) LocalAddr() net.Addr  { return c.local }
func (c *inmemConn) RemoteAddr() net.Addr { return c.remote }

// InmemNetwork connects InmemStreamLayers by address.
type InmemNetwork struct {
	sync.RWMutex
	layers map[string]*InmemStreamLayer
}

// NewInmemNetwork ...
func NewInmemNetwork() *InmemNetwork {
	return &InmemNetwork{
		layers: make(map[string]*InmemStreamLayer),
	}
}

// NewStreamLayer registers a layer listening on addr. Addresses should be
// host:port strings so that peers can parse them like TCP addresses.
func (n *InmemNetwork) NewStreamLayer(addr string) (*InmemStreamLayer, error) {
	n.Lock()
	defer n.Unlock()

	if _, ok := n.layers[addr]; ok {
		return nil, fmt.Errorf("address %s already in use", addr)
	}

	layer := &InmemStreamLayer{
		network:  n,
		addr:     addr,
		acceptCh: make(chan net.Conn, 16),
		closeCh:  make(chan struct{}),
	}
	n.layers[addr] = layer
	return layer, nil
}

func (n *InmemNetwork) lookup(addr string) (*InmemStreamLayer, bool) {
	n.RLock()
	defer n.RUnlock()
	l, ok := n.layers[addr]
	return l, ok
}

func (n *InmemNetwork) remove(addr string) {
	n.Lock()
	defer n.Unlock()
	delete(n.layers, addr)
}

// InmemStreamLayer implements StreamLayer with net.Pipe.
type InmemStreamLayer struct {
	network  *InmemNetwork
	addr     string
	acceptCh chan net.Conn

	closeOnce sync.Once
	closeCh   chan struct{}

	dialSeq   int
	dialSeqMu sync.Mutex
}

// Dial implements the StreamLayer interface. The dialing side is given a
// distinct local port per connection so that peers can tell connections
// apart, like they would with TCP.
func (l *InmemStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	target, ok := l.network.lookup(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, address)
	}

	local := l.nextLocalAddr()
	client, server := net.Pipe()

	var timer <-chan time.Time
	if timeout > 0 {
		timer = time.After(timeout)
	}

	select {
	case target.acceptCh <- &inmemConn{Conn: server, local: inmemAddr(address), remote: local}:
	case <-target.closeCh:
		client.Close()
		server.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, address)
	case <-timer:
		client.Close()
		server.Close()
		return nil, fmt.Errorf("dial %s: timeout", address)
	}

	return &inmemConn{Conn: client, local: local, remote: inmemAddr(address)}, nil
}

func (l *InmemStreamLayer) nextLocalAddr() inmemAddr {
	l.dialSeqMu.Lock()
	defer l.dialSeqMu.Unlock()
	l.dialSeq++

	host, _, err := net.SplitHostPort(l.addr)
	if err != nil {
		host = l.addr
	}
	return inmemAddr(net.JoinHostPort(host, fmt.Sprintf("%d", 40000+l.dialSeq)))
}

// Accept implements the net.Listener interface.
func (l *InmemStreamLayer) Accept() (net.Conn, error) {
	select {
	case c := <-l.acceptCh:
		return c, nil
	case <-l.closeCh:
		return nil, ErrListenerClosed
	}
}

// Close implements the net.Listener interface.
func (l *InmemStreamLayer) Close() error {
	l.closeOnce.Do(func() {
		close(l.closeCh)
		l.network.remove(l.addr)
	})
	return nil
}

// Addr implements the net.Listener interface.
func (l *InmemStreamLayer) Addr() net.Addr {
	return inmemAddr(l.addr)
}

// AdvertiseAddr implements the StreamLayer interface.
func (l *InmemStreamLayer) AdvertiseAddr() string {
	return l.addr
}
