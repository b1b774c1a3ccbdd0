package node

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/pow"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/mosaicnetworks/murmur/src/wire"
)

var (
	testObjectsMu sync.Mutex
	testObjects   = make(map[string]*wire.Object)
)

// testObject returns an object carrying a valid proof of work. Objects are
// cached by content since the search takes a while.
func testObject(t *testing.T, content string) *wire.Object {
	testObjectsMu.Lock()
	defer testObjectsMu.Unlock()

	if obj, ok := testObjects[content]; ok {
		return obj
	}

	now := time.Now()
	obj := wire.NewObject(now.Add(2*time.Hour).Unix(), 1, 1, &wire.Msg{Encrypted: []byte(content)})
	target := pow.ObjectTarget(obj, pow.NetworkNonceTrialsPerByte, pow.NetworkExtraBytes, now)
	nonce, err := pow.NewMultiCoreEngine(0).Calculate(context.Background(), obj.InitialHash(), target)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := obj.SetNonce(nonce); err != nil {
		t.Fatalf("err: %v", err)
	}
	testObjects[content] = obj
	return obj
}

func testVectors(n int) []wire.InventoryVector {
	ivs := make([]wire.InventoryVector, n)
	for i := range ivs {
		ivs[i][0] = byte(i >> 24)
		ivs[i][1] = byte(i >> 16)
		ivs[i][2] = byte(i >> 8)
		ivs[i][3] = byte(i)
		ivs[i][31] = 0xAA
	}
	return ivs
}

type testEnv struct {
	*env
	store  *store.InmemStore
	logger *logrus.Entry
}

func newTestEnv(t *testing.T, nonce uint64, port int, streams ...uint64) *testEnv {
	s := store.NewInmemStore(nil)
	conf := TestConfig(t)
	if len(streams) == 0 {
		streams = []uint64{1}
	}
	conf.Streams = streams

	return &testEnv{
		env: &env{
			conf:      conf,
			identity:  NewIdentity(nonce, "/test/", streams, fmt.Sprintf("127.0.0.1:%d", port)),
			inventory: s,
			addresses: s,
			ledger:    NewLedger(),
			listener:  NopListener{},
			custom:    UnsupportedCustomHandler{},
			metrics:   NewMetrics(nil),
			now:       time.Now,
		},
		store:  s,
		logger: common.NewTestEntry(t, common.TestLogLevel),
	}
}

var connSeq uint64

func (e *testEnv) connection(mode Mode, remote string) *Connection {
	connSeq++
	return newConnection(connSeq, mode, remote, e.env, e.logger)
}

// exchange delivers the frames queued on each side to the other until both
// are quiet.
func exchange(t *testing.T, a, b *Connection) {
	for i := 0; i < 100; i++ {
		outA := a.TakeOutbox()
		outB := b.TakeOutbox()
		if len(outA) == 0 && len(outB) == 0 {
			return
		}
		for _, f := range outA {
			b.Receive(f)
		}
		for _, f := range outB {
			a.Receive(f)
		}
	}
	t.Fatalf("connections did not settle")
}

// connectPair runs the handshake between a client on ce and a server on se.
func connectPair(t *testing.T, ce, se *testEnv) (client, server *Connection) {
	client = ce.connection(Client, fmt.Sprintf("127.0.0.1:%d", se.identity.advertise.Port))
	server = se.connection(Server, fmt.Sprintf("127.0.0.1:%d", 40000+connSeq))
	client.Start()
	exchange(t, client, server)
	return client, server
}

// decodeOutbox takes and decodes the frames queued on c.
func decodeOutbox(t *testing.T, c *Connection) []wire.MessagePayload {
	var res []wire.MessagePayload
	for _, f := range c.TakeOutbox() {
		m, err := wire.DecodeMessage(f)
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		res = append(res, m)
	}
	return res
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
