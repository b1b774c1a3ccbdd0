package murmur

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/mosaicnetworks/murmur/src/crypto"
	"github.com/mosaicnetworks/murmur/src/crypto/keys"
	mnet "github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/peers"
	"github.com/mosaicnetworks/murmur/src/pow"
	"github.com/mosaicnetworks/murmur/src/service"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/mosaicnetworks/murmur/src/version"
	"github.com/mosaicnetworks/murmur/src/wire"
)

// Murmur is a struct containing the key parts of a Murmur node.
type Murmur struct {
	// Config is the configuration of the node.
	Config *config.Config

	// Node is the object that runs the peer to peer protocol.
	Node *node.Node

	// Layer carries the connections of the node. Init creates a TCP layer
	// unless one is already set.
	Layer mnet.StreamLayer

	// Store holds objects, addresses, pending proof of work and outgoing
	// messages.
	Store store.Store

	// PeerStore provides the bootstrap nodes. Init reads peers.json in the
	// data directory unless one is already set.
	PeerStore peers.PeerStore

	// Peers is the list of bootstrap nodes, without this node.
	Peers []*peers.Peer

	// Crypto is used to sign and encrypt outgoing messages.
	Crypto crypto.Cryptography

	// Key is the private key used to sign outgoing messages.
	Key *btcec.PrivateKey

	// PoW computes nonces and publishes the finished objects.
	PoW *pow.Service

	// Service is the HTTP API. It is nil when the service is disabled.
	Service *service.Service

	// Registry collects the Prometheus metrics of every component.
	Registry *prometheus.Registry

	// Listener, if set before Init, is told about every new object.
	Listener node.ObjectListener

	// CustomHandler, if set before Init, answers custom requests.
	CustomHandler node.CustomCommandHandler

	logger *logrus.Entry

	doneOnce sync.Once
	done     chan struct{}
}

// NewMurmur is a factory method to produce a Murmur instance.
func NewMurmur(c *config.Config) *Murmur {
	engine := &Murmur{
		Config: c,
		Crypto: crypto.NewSecp256k1(),
		logger: c.Logger(),
		done:   make(chan struct{}),
	}

	return engine
}

// Init initialises the Murmur object. It reads the bootstrap peers, opens the
// store, loads or creates the key, and builds the node and its services.
func (m *Murmur) Init() error {
	m.logger.Debug("config.Init()")

	m.Registry = prometheus.NewRegistry()

	if err := m.initPeers(); err != nil {
		m.logger.Debug("config.initPeers() failed")
		return err
	}

	if err := m.initStore(); err != nil {
		m.logger.Debug("config.initStore() failed")
		return err
	}

	if err := m.initKey(); err != nil {
		m.logger.Debug("config.initKey() failed")
		return err
	}

	if err := m.initLayer(); err != nil {
		m.logger.Debug("config.initLayer() failed")
		return err
	}

	if err := m.initNode(); err != nil {
		m.logger.Debug("config.initNode() failed")
		return err
	}

	if err := m.initPoW(); err != nil {
		m.logger.Debug("config.initPoW() failed")
		return err
	}

	if err := m.initService(); err != nil {
		m.logger.Debug("config.initService() failed")
		return err
	}

	return nil
}

func (m *Murmur) initPeers() error {
	if m.PeerStore == nil {
		m.PeerStore = peers.NewJSONPeers(m.Config.DataDir)
	}

	bootstrap, err := m.PeerStore.Peers()
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.WithField("path", m.Config.PeersFile()).Debug("No bootstrap peers file")
			return nil
		}
		return fmt.Errorf("reading bootstrap peers: %w", err)
	}

	self := m.Config.AdvertiseAddr
	if self == "" {
		self = m.Config.BindAddr
	}
	_, m.Peers = peers.ExcludePeer(bootstrap, self)

	m.logger.WithField("peers", len(m.Peers)).Debug("Loaded bootstrap peers")

	return nil
}

func (m *Murmur) initStore() error {
	if m.Store != nil {
		return nil
	}

	if !m.Config.Store {
		m.Store = store.NewInmemStore(m.Peers)
		m.logger.Debug("created new in-mem store")
		return nil
	}

	m.logger.WithField("path", m.Config.DatabaseDir).Debug("Attempting to load or create database")

	s, err := store.NewBadgerStore(m.Config.DatabaseDir, m.Peers, m.logger)
	if err != nil {
		return err
	}
	m.Store = s

	return nil
}

func (m *Murmur) initKey() error {
	if m.Key != nil {
		return nil
	}

	key, err := keys.NewSimpleKeyfile(m.Config.Keyfile()).ReadOrCreateKey()
	if err != nil {
		return err
	}
	m.Key = key

	m.logger.WithField("public_key", keys.PublicKeyHex(key.PubKey())).Debug("Loaded key")

	return nil
}

func (m *Murmur) initLayer() error {
	if m.Layer != nil {
		return nil
	}

	layer, err := mnet.NewTCPStreamLayer(m.Config.BindAddr, m.Config.AdvertiseAddr)
	if err != nil {
		return err
	}
	m.Layer = layer

	return nil
}

func (m *Murmur) initNode() error {
	conf := m.Config.NodeConfig()
	conf.UserAgent = version.UserAgent(m.Config.UserAgent)

	identity := node.NewIdentity(
		m.Crypto.RandomNonce(),
		conf.UserAgent,
		conf.Streams,
		m.Layer.AdvertiseAddr(),
	)

	m.Node = node.NewNode(
		conf,
		identity,
		m.Store,
		m.Store,
		m.Layer,
		m.Listener,
		m.CustomHandler,
		node.NewMetrics(m.Registry),
	)

	return nil
}

func (m *Murmur) initPoW() error {
	workers := m.Config.PowWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	m.PoW = pow.NewService(
		pow.NewMultiCoreEngine(workers),
		m.Store,
		m.Store,
		m.Store,
		m.Crypto,
		m.Node,
		pow.NewMetrics(m.Registry),
		m.logger.WithField("component", "pow"),
	)

	return nil
}

func (m *Murmur) initService() error {
	if !m.Config.NoService && m.Config.ServiceAddr != "" {
		m.Service = service.NewService(
			m.Config.ServiceAddr,
			m.Node,
			m.Store,
			m.Registry,
			m.logger.WithField("component", "service"),
		)
	}
	return nil
}

// RunAsync starts the node, the HTTP service and the resumption of the
// proof of work left over by a previous run, and returns.
func (m *Murmur) RunAsync() {
	if m.Service != nil {
		go m.Service.Serve()
	}

	m.Node.RunAsync()
	m.PoW.DoMissingProofOfWork(m.Config.PowResumeDelay)
}

// Run is like RunAsync but blocks until Shutdown is called.
func (m *Murmur) Run() {
	m.RunAsync()
	<-m.done
}

// Shutdown stops the proof of work, the node and closes the store.
func (m *Murmur) Shutdown() {
	m.doneOnce.Do(func() {
		m.logger.Debug("Shutting down")

		m.PoW.Close()
		m.Node.Shutdown()

		if err := m.Store.Close(); err != nil {
			m.logger.WithError(err).Error("Closing store")
		}

		close(m.done)
	})
}

// Publish computes the proof of work of obj at the network difficulty, then
// stores it and offers it to the network.
func (m *Murmur) Publish(obj *wire.Object) error {
	return m.PoW.DoProofOfWork(obj, pow.NetworkNonceTrialsPerByte, pow.NetworkExtraBytes)
}

// SendMessage queues a direct message. content is the encoded message body,
// recipientKey the recipient's public encryption key, or nil to send in
// clear. The recipient's difficulty is raised to the network minimum when
// below it. The message is signed with the node key and carries an
// acknowledgement the recipient publishes once it has read it.
func (m *Murmur) SendMessage(content []byte,
	recipientKey []byte,
	nonceTrialsPerByte uint64,
	extraBytes uint64,
	ttl time.Duration) (*store.Message, error) {

	stream := uint64(1)
	if len(m.Config.Streams) > 0 {
		stream = m.Config.Streams[0]
	}
	expiration := time.Now().Add(ttl).Unix()

	msg := &store.Message{
		Stream:             stream,
		Content:            content,
		SigningKey:         keys.DumpPrivateKey(m.Key),
		RecipientKey:       recipientKey,
		NonceTrialsPerByte: nonceTrialsPerByte,
		ExtraBytes:         extraBytes,
	}

	ack := pow.NewAckObject(m.Crypto, stream, expiration)
	if err := m.PoW.DoProofOfWorkWithAck(ack,
		pow.NetworkNonceTrialsPerByte,
		pow.NetworkExtraBytes,
		expiration,
		msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// Sync connects to addr, exchanges inventories and objects with it, and
// returns once both sides are up to date or timeout elapsed.
func (m *Murmur) Sync(ctx context.Context, addr string, timeout time.Duration) error {
	return m.Node.SynchronizeOnce(ctx, addr, timeout)
}
