package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	mnet "github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/mosaicnetworks/murmur/src/wire"
)

// outboundCandidates is how many addresses the maintenance loop asks for when
// it needs more connections.
const outboundCandidates = 100

var (
	// ErrShutdown is returned by calls made on a stopped node.
	ErrShutdown = errors.New("node is shut down")
	// ErrExpired is the reason given for connections reaped while idle.
	ErrExpired = errors.New("connection expired")
)

type eventKind int

const (
	evAccepted eventKind = iota
	evDialed
	evDialFailed
	evRead
	evWritten
	evClosed
)

// event is how socket goroutines report to the reactor.
type event struct {
	kind    eventKind
	id      uint64
	sock    net.Conn
	addr    string
	mode    Mode
	promise *SyncPromise
	buf     []byte
	data    []byte
	err     error
}

// peer is the reactor's view of one socket.
type peer struct {
	conn     *Connection
	sock     net.Conn
	writeCh  chan []byte
	queue    [][]byte
	inflight int
	promise  *SyncPromise
}

// idle reports whether every queued frame has been written.
func (p *peer) idle() bool {
	return len(p.queue) == 0 && p.inflight == 0 && !p.conn.HasOutput()
}

// Node accepts and dials connections and disseminates objects between them.
// All connection state is owned by a single reactor goroutine; socket
// goroutines, the maintenance loop and the public methods hand work to it.
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	env     *env
	ledger  *Ledger
	metrics *Metrics

	layer mnet.StreamLayer
	pool  *mnet.BufferPool

	// reactor owned
	peers   map[uint64]*peer
	dialing map[string]bool
	nextID  uint64
	next    int

	events chan event
	tasks  chan func()

	ctx    context.Context
	cancel context.CancelFunc

	controlTimer *ControlTimer
	lastSweep    time.Time
	lastCleanup  time.Time
}

// NewNode creates a node. listener, custom and metrics may be nil.
func NewNode(conf *Config,
	identity *Identity,
	inventory store.Inventory,
	addresses store.AddressRegistry,
	layer mnet.StreamLayer,
	listener ObjectListener,
	custom CustomCommandHandler,
	metrics *Metrics,
) *Node {

	if listener == nil {
		listener = NopListener{}
	}
	if custom == nil {
		custom = UnsupportedCustomHandler{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ledger := NewLedger()

	n := &Node{
		conf:         conf,
		logger:       logrus.NewEntry(conf.Logger).WithField("this", layer.AdvertiseAddr()),
		ledger:       ledger,
		metrics:      metrics,
		layer:        layer,
		pool:         mnet.NewDefaultBufferPool(conf.MaxConnections),
		peers:        make(map[uint64]*peer),
		dialing:      make(map[string]bool),
		events:       make(chan event, 256),
		tasks:        make(chan func(), 64),
		ctx:          ctx,
		cancel:       cancel,
		controlTimer: NewRandomControlTimer(),
	}

	n.env = &env{
		conf:      conf,
		identity:  identity,
		inventory: inventory,
		addresses: addresses,
		ledger:    ledger,
		listener:  listener,
		custom:    custom,
		metrics:   metrics,
		now:       time.Now,
		offer:     n.offer,
		settle:    n.settle,
	}

	return n
}

// Identity returns what the node presents to its peers.
func (n *Node) Identity() *Identity {
	return n.env.identity
}

// RunAsync starts the node and returns.
func (n *Node) RunAsync() {
	if n.getState() != Idle {
		return
	}
	n.setState(Running)

	n.logger.WithFields(logrus.Fields{
		"streams":    n.env.identity.Streams,
		"user_agent": n.env.identity.UserAgent,
	}).Info("Starting node")

	now := n.env.now()
	n.lastSweep = now
	n.lastCleanup = now

	n.goRoutine(n.loop)
	n.goRoutine(n.acceptLoop)
	n.goRoutine(func() { n.controlTimer.Run(0) })
	n.goRoutine(n.maintenanceLoop)
	n.controlTimer.Reset(time.Millisecond)
}

// Shutdown stops the node and waits for its goroutines. The collaborators
// are left open.
func (n *Node) Shutdown() {
	if n.getState() == Shutdown {
		return
	}
	n.logger.Debug("Shutdown")
	n.setState(Shutdown)

	n.cancel()
	n.controlTimer.Shutdown()
	n.layer.Close()
	n.pool.Close()

	n.waitRoutines()
}

// post hands an event to the reactor.
func (n *Node) post(ev event) {
	select {
	case n.events <- ev:
	case <-n.ctx.Done():
		if ev.sock != nil {
			ev.sock.Close()
		}
	}
}

// call runs f on the reactor and waits for it. It returns false if the node
// is not running or stops first.
func (n *Node) call(f func()) bool {
	if n.getState() != Running {
		return false
	}
	done := make(chan struct{})
	task := func() {
		f()
		close(done)
	}
	select {
	case n.tasks <- task:
	case <-n.ctx.Done():
		return false
	}
	select {
	case <-done:
		return true
	case <-n.ctx.Done():
		return false
	}
}

// loop is the reactor.
func (n *Node) loop() {
	tick := n.conf.SyncIdle / 2
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case ev := <-n.events:
			n.handleEvent(ev)
		case f := <-n.tasks:
			f()
		case <-ticker.C:
		case <-n.ctx.Done():
			for _, p := range n.peers {
				n.drop(p, ErrShutdown)
			}
			return
		}
		n.pump()
	}
}

func (n *Node) handleEvent(ev event) {
	switch ev.kind {
	case evAccepted:
		if len(n.peers) >= n.conf.MaxConnections {
			n.logger.WithField("peer", ev.sock.RemoteAddr().String()).Debug("Too many connections, refusing")
			ev.sock.Close()
			return
		}
		n.register(ev.sock, Server, nil)
	case evDialed:
		delete(n.dialing, ev.addr)
		n.register(ev.sock, ev.mode, ev.promise)
	case evDialFailed:
		delete(n.dialing, ev.addr)
	case evRead:
		p, ok := n.peers[ev.id]
		if ok {
			p.conn.Receive(ev.data)
		}
		n.pool.Put(ev.buf)
	case evWritten:
		p, ok := n.peers[ev.id]
		if !ok {
			return
		}
		p.inflight--
		if ev.err != nil {
			p.conn.logger.WithError(ev.err).Debug("Write failed")
			n.drop(p, ev.err)
		}
	case evClosed:
		p, ok := n.peers[ev.id]
		if !ok {
			return
		}
		p.conn.logger.WithError(ev.err).Debug("Connection closed")
		n.drop(p, ev.err)
	}
}

// register wraps a connected socket and starts its goroutines.
func (n *Node) register(sock net.Conn, mode Mode, promise *SyncPromise) *peer {
	n.nextID++
	id := n.nextID

	p := &peer{
		conn:    newConnection(id, mode, sock.RemoteAddr().String(), n.env, n.logger),
		sock:    sock,
		writeCh: make(chan []byte, 16),
		promise: promise,
	}
	n.peers[id] = p

	p.conn.logger.Debug("Connection opened")

	writeCh := p.writeCh
	n.goRoutine(func() { n.readLoop(id, sock) })
	n.goRoutine(func() { n.writeLoop(id, sock, writeCh) })

	p.conn.Start()
	return p
}

// pump moves queued frames to the writers and closes finished connections.
func (n *Node) pump() {
	now := n.env.now()
	for _, p := range n.peers {
		p.queue = append(p.queue, p.conn.TakeOutbox()...)
		for len(p.queue) > 0 {
			select {
			case p.writeCh <- p.queue[0]:
				p.queue[0] = nil
				p.queue = p.queue[1:]
				p.inflight++
				continue
			default:
			}
			break
		}

		switch {
		case p.conn.State() == Disconnected:
			n.drop(p, p.conn.Err())
		case p.conn.closeWhenFlushed && p.idle():
			n.drop(p, nil)
		case p.idle() && p.conn.synced(now):
			p.conn.logger.Info("Synchronization complete")
			n.drop(p, nil)
		}
	}
}

// drop closes the socket of p and forgets it.
func (n *Node) drop(p *peer, reason error) {
	if _, ok := n.peers[p.conn.id]; !ok {
		return
	}
	delete(n.peers, p.conn.id)

	p.conn.Disconnect()
	p.sock.Close()
	close(p.writeCh)
	p.queue = nil

	if p.promise != nil {
		p.promise.Respond(reason)
	}
}

func (n *Node) readLoop(id uint64, sock net.Conn) {
	for {
		buf, err := n.pool.Get(n.ctx, mnet.SmallBuffer)
		if err != nil {
			sock.Close()
			return
		}
		r, err := sock.Read(buf)
		if r > 0 {
			n.post(event{kind: evRead, id: id, buf: buf, data: buf[:r]})
		} else {
			n.pool.Put(buf)
		}
		if err != nil {
			n.post(event{kind: evClosed, id: id, err: err})
			return
		}
	}
}

func (n *Node) writeLoop(id uint64, sock net.Conn, writeCh <-chan []byte) {
	for frame := range writeCh {
		_, err := sock.Write(frame)
		n.post(event{kind: evWritten, id: id, err: err})
		if err != nil {
			return
		}
	}
}

func (n *Node) acceptLoop() {
	for {
		sock, err := n.layer.Accept()
		if err != nil {
			if n.ctx.Err() != nil || errors.Is(err, mnet.ErrListenerClosed) {
				return
			}
			n.logger.WithError(err).Warn("Accept failed")
			continue
		}
		n.post(event{kind: evAccepted, sock: sock})
	}
}

// dial connects to addr in the background. It must run on the reactor.
func (n *Node) dial(addr string, mode Mode) {
	n.dialing[addr] = true
	started := n.goFunc(func() {
		sock, err := n.layer.Dial(addr, n.conf.DialTimeout)
		if err != nil {
			n.logger.WithError(err).WithField("peer", addr).Debug("Dial failed")
			n.post(event{kind: evDialFailed, addr: addr})
			return
		}
		n.post(event{kind: evDialed, addr: addr, sock: sock, mode: mode})
	})
	if !started {
		delete(n.dialing, addr)
	}
}

// connections returns the connections ordered by id. It must run on the
// reactor.
func (n *Node) connections() []*Connection {
	res := make([]*Connection, 0, len(n.peers))
	for _, p := range n.peers {
		res = append(res, p.conn)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].id < res[j].id })
	return res
}

// offer relays iv to a random subset of the active connections other than
// from. It must run on the reactor.
func (n *Node) offer(iv wire.InventoryVector, from *Connection) {
	targets := selectOfferTargets(n.connections(), iv, from)
	for _, c := range targets {
		c.Offer(iv)
	}
	n.logger.WithFields(logrus.Fields{
		"iv":    iv.String(),
		"peers": len(targets),
	}).Debug("Offered object")
}

// settle stops every connection waiting for iv once one of them delivered
// it. It must run on the reactor.
func (n *Node) settle(iv wire.InventoryVector) {
	for _, p := range n.peers {
		p.conn.requested.Remove(iv)
	}
}

// Offer advertises a locally produced object to the network.
func (n *Node) Offer(iv wire.InventoryVector) {
	n.call(func() { n.offer(iv, nil) })
}

// Request asks the connected peers for the objects in ivs that are neither
// held nor already requested.
func (n *Node) Request(ivs []wire.InventoryVector) {
	missing := n.env.inventory.GetMissing(ivs, n.env.identity.Streams...)
	fresh := n.ledger.TryAcquire(missing, n.env.now())
	if len(fresh) == 0 {
		return
	}
	if !n.call(func() { n.next = distribute(n.connections(), fresh, n.next, n.ledger) }) {
		for _, iv := range fresh {
			n.ledger.Remove(iv)
		}
	}
}

// SynchronizeOnce connects to addr, exchanges inventories and objects, and
// returns once neither side has anything left to send. It gives up when ctx
// is done or timeout elapses, whichever comes first.
func (n *Node) SynchronizeOnce(ctx context.Context, addr string, timeout time.Duration) error {
	if n.getState() != Running {
		return ErrShutdown
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sock, err := n.layer.Dial(addr, n.conf.DialTimeout)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}

	promise := NewSyncPromise()
	var id uint64
	if !n.call(func() { id = n.register(sock, Sync, promise).conn.id }) {
		sock.Close()
		return ErrShutdown
	}

	select {
	case err := <-promise.RespCh:
		return err
	case <-ctx.Done():
		n.call(func() {
			if p, ok := n.peers[id]; ok {
				n.drop(p, ctx.Err())
			}
		})
		return ctx.Err()
	case <-n.ctx.Done():
		return ErrShutdown
	}
}

// SendCustom sends req to addr outside the gossip protocol and returns the
// response.
func (n *Node) SendCustom(addr string, req *wire.Custom) (*wire.Custom, error) {
	return mnet.SendCustom(n.layer, addr, n.conf.DialTimeout, req)
}
