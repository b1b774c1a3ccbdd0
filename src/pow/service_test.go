package pow

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/crypto"
	"github.com/mosaicnetworks/murmur/src/crypto/keys"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/mosaicnetworks/murmur/src/wire"
)

// easyEngine ignores the requested target so that pipeline tests do not
// spend seconds hashing.
type easyEngine struct{}

func (easyEngine) Calculate(ctx context.Context, initialHash []byte, _ uint64) ([]byte, error) {
	return SimpleEngine{}.Calculate(ctx, initialHash, 1<<60)
}

// blockingEngine never finds anything.
type blockingEngine struct {
	started chan struct{}
}

func (e blockingEngine) Calculate(ctx context.Context, _ []byte, _ uint64) ([]byte, error) {
	e.started <- struct{}{}
	<-ctx.Done()
	return nil, ctx.Err()
}

type testOfferer struct {
	offered chan wire.InventoryVector
}

func newTestOfferer() *testOfferer {
	return &testOfferer{offered: make(chan wire.InventoryVector, 16)}
}

func (o *testOfferer) Offer(iv wire.InventoryVector) {
	o.offered <- iv
}

func (o *testOfferer) wait(t *testing.T) wire.InventoryVector {
	select {
	case iv := <-o.offered:
		return iv
	case <-time.After(10 * time.Second):
		t.Fatalf("timeout waiting for offer")
	}
	return wire.InventoryVector{}
}

func newTestService(t *testing.T, engine Engine, s *store.InmemStore, o Offerer) *Service {
	return NewService(engine, s, s, s, crypto.NewSecp256k1(), o,
		nil, common.NewTestEntry(t, common.TestLogLevel))
}

func waitIdle(t *testing.T, svc *Service) {
	deadline := time.Now().Add(10 * time.Second)
	for svc.Running() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for proof of work")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDoProofOfWork(t *testing.T) {
	s := store.NewInmemStore(nil)
	offerer := newTestOfferer()
	svc := newTestService(t, easyEngine{}, s, offerer)
	defer svc.Close()

	obj := wire.NewObject(time.Now().Add(time.Hour).Unix(), 1, 4,
		&wire.GetPubkey{Tag: bytes.Repeat([]byte{7}, 32)})
	if err := svc.DoProofOfWork(obj, 0, 0); err != nil {
		t.Fatalf("err: %v", err)
	}

	iv := offerer.wait(t)
	waitIdle(t, svc)

	stored, err := s.GetObject(iv)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !stored.HasNonce() {
		t.Fatalf("stored object should carry its nonce")
	}
	if len(s.ListPending()) != 0 {
		t.Fatalf("queue should be empty")
	}
}

func TestDoProofOfWorkWithAck(t *testing.T) {
	s := store.NewInmemStore(nil)
	offerer := newTestOfferer()
	svc := newTestService(t, easyEngine{}, s, offerer)
	defer svc.Close()

	c := crypto.NewSecp256k1()
	signing, err := keys.GenerateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	encryption, err := keys.GenerateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	expires := time.Now().Add(2 * time.Hour).Unix()
	msg := &store.Message{
		Stream:             1,
		Content:            []byte("the medium is the message"),
		SigningKey:         keys.DumpPrivateKey(signing),
		RecipientKey:       keys.FromPublicKey(encryption.PubKey()),
		NonceTrialsPerByte: 2000,
		ExtraBytes:         1000,
	}
	ack := NewAckObject(c, 1, expires)

	if err := svc.DoProofOfWorkWithAck(ack, 0, 0, expires, msg); err != nil {
		t.Fatalf("err: %v", err)
	}

	iv := offerer.wait(t)
	waitIdle(t, svc)

	obj, err := s.GetObject(iv)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if obj.Type() != wire.MsgType || obj.ExpiresTime != expires {
		t.Fatalf("unexpected object %+v", obj)
	}

	saved, err := s.GetMessage(obj.InitialHash())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if saved.Status != store.Sent {
		t.Fatalf("expected status Sent, got %v", saved.Status)
	}
	if !bytes.Equal(saved.InventoryVector, iv[:]) {
		t.Fatalf("message should record its inventory vector")
	}

	plaintext, err := c.Decrypt(obj.Payload.(*wire.Msg).Encrypted, keys.DumpPrivateKey(encryption))
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	d := wire.NewDecoder(plaintext)
	content := d.Bytes(len(msg.Content))
	ackBytes := d.VarBytes()
	sig := d.VarBytes()
	if err := d.Finish(); err != nil {
		t.Fatalf("err: %v", err)
	}
	if !bytes.Equal(content, msg.Content) {
		t.Fatalf("content mismatch")
	}

	ackMsg, err := wire.DecodeMessage(ackBytes)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	ackObj, ok := ackMsg.(*wire.Object)
	if !ok || !ackObj.HasNonce() {
		t.Fatalf("message should embed the finished ack, got %#v", ackMsg)
	}

	header := wire.NewObject(obj.ExpiresTime, obj.Stream, 1, &wire.Msg{}).PayloadBytesWithoutNonce()
	body := plaintext[:len(plaintext)-len(sig)-wire.VarIntSize(uint64(len(sig)))]
	signed := append(header, body...)
	if !c.IsSignatureValid(signed, sig, keys.FromPublicKey(signing.PubKey())) {
		t.Fatalf("signature should cover header and body")
	}

	if len(s.ListPending()) != 0 {
		t.Fatalf("both stages should have left the queue")
	}
}

func TestDoMissingProofOfWork(t *testing.T) {
	s := store.NewInmemStore(nil)

	obj := wire.NewObject(time.Now().Add(time.Hour).Unix(), 1, 1, &wire.Msg{Encrypted: []byte("left over")})
	if err := s.Put(&store.WorkItem{
		Object:             obj,
		NonceTrialsPerByte: NetworkNonceTrialsPerByte,
		ExtraBytes:         NetworkExtraBytes,
	}); err != nil {
		t.Fatalf("err: %v", err)
	}

	offerer := newTestOfferer()
	svc := newTestService(t, easyEngine{}, s, offerer)
	defer svc.Close()

	svc.DoMissingProofOfWork(20 * time.Millisecond)

	iv := offerer.wait(t)
	waitIdle(t, svc)
	if _, err := s.GetObject(iv); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(s.ListPending()) != 0 {
		t.Fatalf("queue should be empty")
	}
}

func TestCloseKeepsPendingWork(t *testing.T) {
	s := store.NewInmemStore(nil)
	engine := blockingEngine{started: make(chan struct{}, 1)}
	svc := newTestService(t, engine, s, newTestOfferer())

	obj := wire.NewObject(time.Now().Add(time.Hour).Unix(), 1, 1, &wire.Msg{Encrypted: []byte("never")})
	if err := svc.DoProofOfWork(obj, 0, 0); err != nil {
		t.Fatalf("err: %v", err)
	}
	// Submitting twice must not start a second search.
	if err := svc.DoProofOfWork(obj, 0, 0); err != nil {
		t.Fatalf("err: %v", err)
	}

	<-engine.started
	if svc.Running() != 1 {
		t.Fatalf("expected 1 running search, got %d", svc.Running())
	}

	svc.Close()

	if svc.Running() != 0 {
		t.Fatalf("Close should wait for searches")
	}
	if len(s.ListPending()) != 1 {
		t.Fatalf("cancelled work should stay queued")
	}
}
