package node

import (
	"errors"
	"fmt"
	"net"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/murmur/src/pow"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/mosaicnetworks/murmur/src/wire"
)

// MaxClockSkew is the largest difference tolerated between our clock and the
// timestamp of a peer's version message.
const MaxClockSkew = time.Hour

var (
	// ErrSelfConnection is returned when a peer presents our own nonce.
	ErrSelfConnection = errors.New("connected to self")
	// ErrIncompatibleVersion is returned for peers speaking an older
	// protocol.
	ErrIncompatibleVersion = errors.New("incompatible protocol version")
	// ErrIllegalMessage is returned for messages the connection state does
	// not allow.
	ErrIllegalMessage = errors.New("illegal message")
	// ErrNoCommonStream is returned when the peer serves none of our
	// streams.
	ErrNoCommonStream = errors.New("no common stream")
	// ErrClockSkew is returned when the peer's clock is too far from ours.
	ErrClockSkew = errors.New("clock skew too large")
)

// Mode tells how a connection came to be.
type Mode int

const (
	// Server connections were accepted.
	Server Mode = iota
	// Client connections were dialed by the maintenance loop.
	Client
	// Sync connections were dialed for a one shot synchronization.
	Sync
)

// String ...
func (m Mode) String() string {
	switch m {
	case Server:
		return "Server"
	case Client:
		return "Client"
	case Sync:
		return "Sync"
	default:
		return "Unknown"
	}
}

// ConnectionState ...
type ConnectionState int

const (
	// Connecting connections are in the handshake.
	Connecting ConnectionState = iota
	// Active connections gossip.
	Active
	// Disconnected is terminal.
	Disconnected
)

// String ...
func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Active:
		return "Active"
	case Disconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// env is what the connections of a node share.
type env struct {
	conf      *Config
	identity  *Identity
	inventory store.Inventory
	addresses store.AddressRegistry
	ledger    *Ledger
	listener  ObjectListener
	custom    CustomCommandHandler
	metrics   *Metrics
	now       func() time.Time

	// offer relays a newly stored object to the peers other than from.
	offer func(iv wire.InventoryVector, from *Connection)
	// settle tells the other connections that iv was delivered.
	settle func(iv wire.InventoryVector)
}

// Connection is the protocol state of one peer. It does no I/O: bytes read
// from the socket are passed to Receive and encoded frames to write are
// collected with TakeOutbox. A Connection is not safe for concurrent use.
type Connection struct {
	id     uint64
	mode   Mode
	state  ConnectionState
	remote string

	env    *env
	logger *logrus.Entry

	reader *wire.Reader
	outbox [][]byte

	versionSent    bool
	verackSent     bool
	verackReceived bool
	peer           *wire.Version
	streams        []uint64
	clockOffset    int64

	known     *knownCache
	requested mapset.Set[wire.InventoryVector]

	created      time.Time
	lastActivity time.Time

	closeWhenFlushed bool
	err              error
}

func newConnection(id uint64, mode Mode, remote string, e *env, logger *logrus.Entry) *Connection {
	now := e.now()
	return &Connection{
		id:     id,
		mode:   mode,
		state:  Connecting,
		remote: remote,
		env:    e,
		logger: logger.WithFields(logrus.Fields{
			"peer": remote,
			"mode": mode.String(),
		}),
		reader:       wire.NewReader(),
		known:        newKnownCache(e.conf.KnownCacheSize, e.conf.KnownTTL),
		requested:    mapset.NewThreadUnsafeSet[wire.InventoryVector](),
		created:      now,
		lastActivity: now,
	}
}

// ID ...
func (c *Connection) ID() uint64 { return c.id }

// Mode ...
func (c *Connection) Mode() Mode { return c.mode }

// State ...
func (c *Connection) State() ConnectionState { return c.state }

// Remote returns the socket address of the peer.
func (c *Connection) Remote() string { return c.remote }

// Streams returns the negotiated streams. It is empty before the handshake.
func (c *Connection) Streams() []uint64 { return c.streams }

// Err returns the reason of the disconnection, if any.
func (c *Connection) Err() error { return c.err }

// Start opens the handshake of outgoing connections.
func (c *Connection) Start() {
	if c.mode == Server || c.versionSent {
		return
	}
	c.sendVersion()
}

// Receive feeds bytes read from the socket. A returned error means the
// connection is now Disconnected.
func (c *Connection) Receive(chunk []byte) error {
	if c.state == Disconnected {
		return nil
	}
	c.lastActivity = c.env.now()

	if err := c.reader.Update(chunk); err != nil {
		c.fail(err)
		return err
	}
	for _, m := range c.reader.Messages() {
		if err := c.Handle(m); err != nil {
			c.fail(err)
			return err
		}
		if c.state == Disconnected {
			break
		}
	}
	return nil
}

// Handle processes one decoded message.
func (c *Connection) Handle(m wire.MessagePayload) error {
	switch c.state {
	case Connecting:
		return c.handleHandshake(m)
	case Active:
		return c.handleGossip(m)
	default:
		return nil
	}
}

func (c *Connection) handleHandshake(m wire.MessagePayload) error {
	switch msg := m.(type) {
	case *wire.Version:
		return c.handleVersion(msg)
	case *wire.VerAck:
		if !c.versionSent || c.verackReceived {
			return fmt.Errorf("%w: unexpected verack", ErrIllegalMessage)
		}
		c.verackReceived = true
		c.maybeActivate()
		return nil
	case *wire.Custom:
		if c.mode != Server || c.versionSent || c.peer != nil {
			return fmt.Errorf("%w: custom after handshake start", ErrIllegalMessage)
		}
		c.handleCustom(msg)
		return nil
	case *wire.Unknown:
		return fmt.Errorf("%w: %s", wire.ErrUnknownCommand, msg.Name)
	default:
		return fmt.Errorf("%w: %s while connecting", ErrIllegalMessage, m.Command())
	}
}

func (c *Connection) handleVersion(v *wire.Version) error {
	if c.peer != nil {
		return fmt.Errorf("%w: duplicate version", ErrIllegalMessage)
	}
	if v.Nonce == c.env.identity.Nonce {
		return ErrSelfConnection
	}
	if v.Version < wire.ProtocolVersion {
		return fmt.Errorf("%w: %d", ErrIncompatibleVersion, v.Version)
	}
	streams := commonStreams(c.env.identity.Streams, v.Streams)
	if len(streams) == 0 {
		return fmt.Errorf("%w: peer serves %v", ErrNoCommonStream, v.Streams)
	}
	offset := v.Timestamp - c.env.now().Unix()
	if offset > int64(MaxClockSkew/time.Second) || -offset > int64(MaxClockSkew/time.Second) {
		return fmt.Errorf("%w: %ds", ErrClockSkew, offset)
	}

	c.peer = v
	c.streams = streams
	c.clockOffset = offset

	c.logger.WithFields(logrus.Fields{
		"user_agent": v.UserAgent,
		"version":    v.Version,
		"streams":    streams,
	}).Debug("Received version")

	c.send(&wire.VerAck{})
	c.verackSent = true
	if c.mode == Server {
		c.sendVersion()
	}
	c.maybeActivate()
	return nil
}

func (c *Connection) sendVersion() {
	c.send(c.env.identity.versionMessage(c.remote, c.env.now()))
	c.versionSent = true
}

func (c *Connection) handleCustom(req *wire.Custom) {
	handler := c.env.custom
	if handler == nil {
		handler = UnsupportedCustomHandler{}
	}
	c.logger.WithField("command", req.Name).Debug("Custom request")
	if resp := handler.Handle(req); resp != nil {
		c.send(resp)
	}
	c.closeWhenFlushed = true
}

func (c *Connection) maybeActivate() {
	if c.state != Connecting || !c.verackSent || !c.verackReceived {
		return
	}
	c.state = Active
	now := c.env.now()

	c.logger.WithField("streams", c.streams).Info("Connection active")

	if c.mode != Sync {
		if host, _, err := net.SplitHostPort(c.remote); err == nil {
			if ip := net.ParseIP(host); ip != nil {
				c.env.addresses.OfferAddresses([]wire.NetworkAddress{{
					Time:     now.Unix(),
					Stream:   uint32(c.streams[0]),
					Services: c.peer.Services,
					IP:       ip.To16(),
					Port:     c.peer.AddrFrom.Port,
				}})
			}
		}
	}

	// one addr message, as full as it can be
	if addrs := c.env.addresses.GetKnownAddresses(wire.MaxAddrEntries, c.streams...); len(addrs) > 0 {
		c.send(&wire.Addr{Addresses: addrs})
	}

	ivs := c.env.inventory.GetInventory(c.streams...)
	c.known.add(now, ivs...)
	for _, chunk := range wire.ChunkVectors(ivs, wire.MaxInvEntries) {
		c.send(&wire.Inv{Vectors: chunk})
	}
}

func (c *Connection) handleGossip(m wire.MessagePayload) error {
	switch msg := m.(type) {
	case *wire.Inv:
		c.handleInv(msg.Vectors)
	case *wire.GetData:
		c.handleGetData(msg.Vectors)
	case *wire.Object:
		c.handleObject(msg)
	case *wire.Addr:
		c.env.addresses.OfferAddresses(msg.Addresses)
	case *wire.Unknown:
		return fmt.Errorf("%w: %s", wire.ErrUnknownCommand, msg.Name)
	default:
		return fmt.Errorf("%w: %s while active", ErrIllegalMessage, m.Command())
	}
	return nil
}

func (c *Connection) handleInv(ivs []wire.InventoryVector) {
	now := c.env.now()
	c.known.add(now, ivs...)

	missing := c.env.inventory.GetMissing(ivs, c.streams...)
	fresh := c.env.ledger.TryAcquire(missing, now)

	c.logger.WithFields(logrus.Fields{
		"offered": len(ivs),
		"missing": len(missing),
		"request": len(fresh),
	}).Debug("Received inventory")

	for _, chunk := range wire.ChunkVectors(fresh, wire.MaxInvEntries) {
		c.request(chunk)
	}
}

// request sends a getdata for ivs, which must fit in one message.
func (c *Connection) request(ivs []wire.InventoryVector) {
	if len(ivs) == 0 {
		return
	}
	for _, iv := range ivs {
		c.requested.Add(iv)
	}
	c.env.metrics.Requested.Add(float64(len(ivs)))
	c.send(&wire.GetData{Vectors: ivs})
}

func (c *Connection) handleGetData(ivs []wire.InventoryVector) {
	now := c.env.now()
	for _, iv := range ivs {
		obj, err := c.env.inventory.GetObject(iv)
		if err != nil {
			continue
		}
		c.send(obj)
		c.known.add(now, iv)
	}
}

func (c *Connection) handleObject(obj *wire.Object) {
	iv, _ := obj.InventoryVector()
	now := c.env.now()

	c.requested.Remove(iv)
	c.known.add(now, iv)
	defer func() {
		if !c.env.ledger.Remove(iv) {
			c.logger.WithField("iv", iv.String()).Debug("Received unrequested object")
		}
		if c.env.settle != nil {
			c.env.settle(iv)
		}
	}()

	logger := c.logger.WithFields(logrus.Fields{
		"iv":   iv.String(),
		"type": obj.Type(),
	})

	if c.env.inventory.Contains(obj) {
		logger.Debug("Received duplicate object")
		return
	}
	if !containsStream(c.streams, obj.Stream) {
		logger.WithField("stream", obj.Stream).Debug("Received object from foreign stream")
		c.env.metrics.Rejected.WithLabelValues("stream").Inc()
		return
	}
	if err := c.env.listener.Receive(obj); err != nil {
		logger.WithError(err).Info("Object rejected by listener")
		c.env.metrics.Rejected.WithLabelValues("listener").Inc()
		return
	}
	if err := pow.Check(obj, pow.NetworkNonceTrialsPerByte, pow.NetworkExtraBytes, now); err != nil {
		logger.WithError(err).Info("Discarding object")
		c.env.metrics.Rejected.WithLabelValues("pow").Inc()
		return
	}
	if err := c.env.inventory.StoreObject(obj); err != nil {
		logger.WithError(err).Warn("Failed to store object")
		return
	}

	c.env.metrics.Received.Inc()
	logger.Debug("Received object")
	if c.env.offer != nil {
		c.env.offer(iv, c)
	}
}

// Knows reports whether the peer advertised iv or was sent it recently.
func (c *Connection) Knows(iv wire.InventoryVector) bool {
	return c.known.contains(iv, c.env.now())
}

// Requested reports whether iv was requested on this connection and has not
// arrived yet.
func (c *Connection) Requested(iv wire.InventoryVector) bool {
	return c.requested.Contains(iv)
}

// PendingRequests returns the number of objects requested on this connection
// and not yet received.
func (c *Connection) PendingRequests() int {
	return c.requested.Cardinality()
}

// Offer advertises iv unless the connection is not active or the peer
// already knows it. It reports whether an inv was queued.
func (c *Connection) Offer(iv wire.InventoryVector) bool {
	if c.state != Active || c.Knows(iv) {
		return false
	}
	c.send(&wire.Inv{Vectors: []wire.InventoryVector{iv}})
	c.known.add(c.env.now(), iv)
	return true
}

func (c *Connection) send(m wire.MessagePayload) {
	if c.state == Disconnected {
		return
	}
	c.outbox = append(c.outbox, wire.EncodeMessage(m))
}

// TakeOutbox returns the frames queued since the last call.
func (c *Connection) TakeOutbox() [][]byte {
	out := c.outbox
	c.outbox = nil
	return out
}

// HasOutput reports whether frames are waiting to be taken.
func (c *Connection) HasOutput() bool {
	return len(c.outbox) > 0
}

// Disconnect moves the connection to its terminal state. Requests still
// outstanding on it are left in the ledger for the maintenance loop to
// retry elsewhere.
func (c *Connection) Disconnect() {
	if c.state == Disconnected {
		return
	}
	c.state = Disconnected
	c.outbox = nil
	c.reader = wire.NewReader()
	c.known.purge()
	c.requested.Clear()
}

func (c *Connection) fail(err error) {
	if c.state == Disconnected {
		return
	}
	c.err = err
	c.env.metrics.ProtocolErrors.Inc()
	c.logger.WithError(err).Warn("Protocol violation")
	c.Disconnect()
}

// expired reports whether the connection has been idle for too long in its
// current state.
func (c *Connection) expired(now time.Time) bool {
	idle := now.Sub(c.lastActivity)
	switch c.state {
	case Connecting:
		return idle > c.env.conf.HandshakeTimeout
	case Active:
		return idle > c.env.conf.IdleTimeout
	default:
		return false
	}
}

// synced reports whether a Sync connection has nothing left to exchange.
func (c *Connection) synced(now time.Time) bool {
	return c.mode == Sync &&
		c.state == Active &&
		c.requested.Cardinality() == 0 &&
		len(c.outbox) == 0 &&
		now.Sub(c.lastActivity) >= c.env.conf.SyncIdle
}
