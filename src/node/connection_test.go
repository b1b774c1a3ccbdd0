package node

import (
	"errors"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/wire"
)

func TestHandshake(t *testing.T) {
	ce := newTestEnv(t, 1, 10001)
	se := newTestEnv(t, 2, 10002)

	client, server := connectPair(t, ce, se)

	if client.State() != Active {
		t.Fatalf("client should be Active, got %v (%v)", client.State(), client.Err())
	}
	if server.State() != Active {
		t.Fatalf("server should be Active, got %v (%v)", server.State(), server.Err())
	}
	if !reflect.DeepEqual(client.Streams(), []uint64{1}) {
		t.Fatalf("unexpected streams %v", client.Streams())
	}

	// the server learned where the client listens
	found := false
	for _, a := range se.store.GetKnownAddresses(10, 1) {
		if a.Port == 10001 {
			found = true
		}
	}
	if !found {
		t.Fatalf("server should know the client's listening address")
	}
}

func TestHandshakeMessageOrder(t *testing.T) {
	ce := newTestEnv(t, 1, 10001)
	se := newTestEnv(t, 2, 10002)

	client := ce.connection(Client, "127.0.0.1:10002")
	server := se.connection(Server, "127.0.0.1:40001")

	client.Start()
	msgs := decodeOutbox(t, client)
	if len(msgs) != 1 || msgs[0].Command() != wire.CmdVersion {
		t.Fatalf("client should open with a version, got %v", msgs)
	}

	if err := server.Handle(msgs[0]); err != nil {
		t.Fatalf("err: %v", err)
	}
	msgs = decodeOutbox(t, server)
	if len(msgs) != 2 || msgs[0].Command() != wire.CmdVerAck || msgs[1].Command() != wire.CmdVersion {
		t.Fatalf("server should answer verack then version, got %v", msgs)
	}
	if server.State() != Connecting {
		t.Fatalf("server should wait for the client's verack")
	}

	for _, m := range msgs {
		if err := client.Handle(m); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
	if client.State() != Active {
		t.Fatalf("client should be Active")
	}

	msgs = decodeOutbox(t, client)
	if len(msgs) == 0 || msgs[0].Command() != wire.CmdVerAck {
		t.Fatalf("client should acknowledge, got %v", msgs)
	}
	if err := server.Handle(msgs[0]); err != nil {
		t.Fatalf("err: %v", err)
	}
	if server.State() != Active {
		t.Fatalf("server should be Active")
	}
}

func TestHandshakeSelfConnection(t *testing.T) {
	ce := newTestEnv(t, 42, 10001)
	se := newTestEnv(t, 42, 10002)

	client, server := connectPair(t, ce, se)

	if server.State() != Disconnected {
		t.Fatalf("server should be Disconnected, got %v", server.State())
	}
	if !errors.Is(server.Err(), ErrSelfConnection) {
		t.Fatalf("expected ErrSelfConnection, got %v", server.Err())
	}
	if client.State() == Active {
		t.Fatalf("client should not become Active")
	}
}

func TestHandshakeRejections(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name    string
		version *wire.Version
		err     error
	}{
		{
			name:    "old protocol",
			version: &wire.Version{Version: 2, Timestamp: now.Unix(), Nonce: 7, Streams: []uint64{1}},
			err:     ErrIncompatibleVersion,
		},
		{
			name:    "no common stream",
			version: &wire.Version{Version: 3, Timestamp: now.Unix(), Nonce: 7, Streams: []uint64{2, 3}},
			err:     ErrNoCommonStream,
		},
		{
			name:    "clock skew",
			version: &wire.Version{Version: 3, Timestamp: now.Add(2 * time.Hour).Unix(), Nonce: 7, Streams: []uint64{1}},
			err:     ErrClockSkew,
		},
	}

	for _, tc := range cases {
		se := newTestEnv(t, 2, 10002)
		server := se.connection(Server, "127.0.0.1:40001")
		if err := server.Receive(wire.EncodeMessage(tc.version)); !errors.Is(err, tc.err) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
		if server.State() != Disconnected {
			t.Fatalf("%s: connection should be Disconnected", tc.name)
		}
		if server.HasOutput() {
			t.Fatalf("%s: nothing should be sent", tc.name)
		}
	}
}

func TestIllegalMessages(t *testing.T) {
	se := newTestEnv(t, 2, 10002)
	server := se.connection(Server, "127.0.0.1:40001")
	inv := &wire.Inv{Vectors: testVectors(1)}
	if err := server.Receive(wire.EncodeMessage(inv)); !errors.Is(err, ErrIllegalMessage) {
		t.Fatalf("inv while connecting: expected ErrIllegalMessage, got %v", err)
	}

	ce := newTestEnv(t, 1, 10001)
	se = newTestEnv(t, 2, 10002)
	client, _ := connectPair(t, ce, se)
	v := ce.identity.versionMessage("127.0.0.1:10002", time.Now())
	v.Nonce = 99
	if err := client.Receive(wire.EncodeMessage(v)); !errors.Is(err, ErrIllegalMessage) {
		t.Fatalf("version while active: expected ErrIllegalMessage, got %v", err)
	}

	ce = newTestEnv(t, 1, 10001)
	se = newTestEnv(t, 2, 10002)
	client, _ = connectPair(t, ce, se)
	unknown := &wire.Unknown{Name: "ping"}
	if err := client.Receive(wire.EncodeMessage(unknown)); !errors.Is(err, wire.ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestCorruptFrameDisconnects(t *testing.T) {
	ce := newTestEnv(t, 1, 10001)
	se := newTestEnv(t, 2, 10002)
	client, _ := connectPair(t, ce, se)

	frame := wire.EncodeMessage(&wire.Inv{Vectors: testVectors(2)})
	frame[len(frame)-1] ^= 0xFF
	if err := client.Receive(frame); !errors.Is(err, wire.ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
	if client.State() != Disconnected {
		t.Fatalf("connection should be Disconnected")
	}
}

func TestCustomRequest(t *testing.T) {
	se := newTestEnv(t, 2, 10002)
	se.custom = echoHandler{}
	server := se.connection(Server, "127.0.0.1:40001")

	if err := server.Receive(wire.EncodeMessage(&wire.Custom{Name: "echo", Data: []byte("hi")})); err != nil {
		t.Fatalf("err: %v", err)
	}
	msgs := decodeOutbox(t, server)
	if len(msgs) != 1 {
		t.Fatalf("expected one response, got %d", len(msgs))
	}
	resp := msgs[0].(*wire.Custom)
	if resp.Name != "echo" || string(resp.Data) != "hi" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !server.closeWhenFlushed {
		t.Fatalf("connection should close once the response is written")
	}
}

func TestObjectExchangeOnActivation(t *testing.T) {
	obj := testObject(t, "activation")

	ce := newTestEnv(t, 1, 10001)
	se := newTestEnv(t, 2, 10002)
	if err := se.store.StoreObject(obj); err != nil {
		t.Fatalf("err: %v", err)
	}

	client, server := connectPair(t, ce, se)
	iv, _ := obj.InventoryVector()

	if !ce.store.Contains(obj) {
		t.Fatalf("client should have fetched the object")
	}
	if ce.ledger.Len() != 0 {
		t.Fatalf("ledger should be empty, has %d", ce.ledger.Len())
	}
	if client.PendingRequests() != 0 {
		t.Fatalf("no request should be pending")
	}
	if !client.Knows(iv) || !server.Knows(iv) {
		t.Fatalf("both sides should know the vector")
	}
	if client.Offer(iv) {
		t.Fatalf("offering to a peer that knows the vector should be a no-op")
	}
}

func TestActivationAddrMessage(t *testing.T) {
	ce := newTestEnv(t, 1, 10001)
	se := newTestEnv(t, 2, 10002)

	now := time.Now().Unix()
	var addrs []wire.NetworkAddress
	for i := 0; i < 1500; i++ {
		addrs = append(addrs, wire.NetworkAddress{
			Time:     now,
			Stream:   1,
			Services: 1,
			IP:       net.IPv4(10, 1, byte(i>>8), byte(i)).To16(),
			Port:     8444,
		})
	}
	se.store.OfferAddresses(addrs)

	client := ce.connection(Client, "127.0.0.1:10002")
	server := se.connection(Server, "127.0.0.1:40999")
	client.Start()

	var sent []*wire.Addr
	for i := 0; i < 10; i++ {
		for _, f := range client.TakeOutbox() {
			server.Receive(f)
		}
		for _, f := range server.TakeOutbox() {
			m, err := wire.DecodeMessage(f)
			if err != nil {
				t.Fatalf("err: %v", err)
			}
			if a, ok := m.(*wire.Addr); ok {
				sent = append(sent, a)
			}
			client.Receive(f)
		}
	}

	if server.State() != Active {
		t.Fatalf("server should be active, is %s", server.State())
	}
	if len(sent) != 1 {
		t.Fatalf("expected one addr message, got %d", len(sent))
	}
	if len(sent[0].Addresses) != wire.MaxAddrEntries {
		t.Fatalf("expected %d addresses, got %d", wire.MaxAddrEntries, len(sent[0].Addresses))
	}
}

func TestInsufficientProofOfWork(t *testing.T) {
	ce := newTestEnv(t, 1, 10001)
	se := newTestEnv(t, 2, 10002)
	client, _ := connectPair(t, ce, se)

	obj := wire.NewObject(time.Now().Add(time.Hour).Unix(), 1, 1, &wire.Msg{Encrypted: []byte("cheap")})
	obj.SetNonce(make([]byte, wire.NonceSize))
	iv, _ := obj.InventoryVector()

	client.Handle(&wire.Inv{Vectors: []wire.InventoryVector{iv}})
	if !ce.ledger.Contains(iv) {
		t.Fatalf("vector should be requested")
	}
	client.TakeOutbox()

	decoded, err := wire.DecodeObject(obj.Bytes())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := client.Handle(decoded); err != nil {
		t.Fatalf("insufficient work should not fault the connection: %v", err)
	}
	if client.State() != Active {
		t.Fatalf("connection should stay Active")
	}
	if ce.store.Contains(decoded) {
		t.Fatalf("object should not be stored")
	}
	if ce.ledger.Contains(iv) {
		t.Fatalf("ledger should not retain the vector")
	}
}

type echoHandler struct{}

func (echoHandler) Handle(req *wire.Custom) *wire.Custom {
	return req
}
