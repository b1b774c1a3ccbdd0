package store

import (
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/peers"
	"github.com/mosaicnetworks/murmur/src/wire"
	"github.com/sirupsen/logrus"
)

func initBadgerStore(t *testing.T) (*BadgerStore, string) {
	dir, err := ioutil.TempDir("", "murmur_badger")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	store, err := NewBadgerStore(dir, nil, logrus.NewEntry(common.NewTestLogger(t)))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("err: %v", err)
	}
	return store, dir
}

func TestBadgerInventory(t *testing.T) {
	store, dir := initBadgerStore(t)
	defer os.RemoveAll(dir)
	defer store.Close()

	testInventory(t, store, func(now time.Time) {
		store.now = func() time.Time { return now }
	})
}

func TestBadgerProofOfWorkQueue(t *testing.T) {
	store, dir := initBadgerStore(t)
	defer os.RemoveAll(dir)
	defer store.Close()

	testProofOfWorkQueue(t, store)
}

func TestBadgerMessageRepository(t *testing.T) {
	store, dir := initBadgerStore(t)
	defer os.RemoveAll(dir)
	defer store.Close()

	testMessageRepository(t, store)
}

func TestBadgerReload(t *testing.T) {
	store, dir := initBadgerStore(t)
	defer os.RemoveAll(dir)

	now := time.Now()
	obj := testObject(t, 1, now.Add(time.Hour), "persisted")
	if err := store.StoreObject(obj); err != nil {
		t.Fatalf("err: %v", err)
	}
	store.OfferAddresses([]wire.NetworkAddress{testAddr(t, "10.0.0.1:8444", 1, now)})
	item := testWorkItem(t, "pending", false)
	if err := store.Put(item); err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("err: %v", err)
	}

	store, err := NewBadgerStore(dir, []*peers.Peer{peers.NewPeer("10.1.1.1:8444")}, logrus.NewEntry(common.NewTestLogger(t)))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer store.Close()

	if !store.Contains(obj) {
		t.Fatalf("inventory index should be reloaded")
	}
	got, err := store.GetObject(ivOf(obj))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if string(got.Payload.(*wire.Msg).Encrypted) != "persisted" {
		t.Fatalf("object mismatch")
	}

	addrs := store.GetKnownAddresses(10, 1)
	if len(addrs) != 1 || addrs[0].String() != "10.0.0.1:8444" {
		t.Fatalf("addresses should be reloaded, got %v", addrs)
	}

	if len(store.ListPending()) != 1 {
		t.Fatalf("pending work should be reloaded")
	}

	store.Clear()
	addrs = store.GetKnownAddresses(10, 1)
	if len(addrs) != 1 || addrs[0].String() != "10.1.1.1:8444" {
		t.Fatalf("expected the bootstrap node after Clear, got %v", addrs)
	}
}
