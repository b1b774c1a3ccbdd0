package wire

import (
	"bytes"
	"crypto/sha512"
	"errors"
	"net"
	"reflect"
	"testing"
)

func testAddress(t *testing.T, hostport string, stream uint32, time int64) NetworkAddress {
	a, err := NewNetworkAddress(hostport, stream, NodeNetwork, time)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return a
}

func testObject(t *testing.T, payload Payload, version uint64) *Object {
	o := NewObject(1600000000, 1, version, payload)
	if err := o.SetNonce([]byte{0, 0, 0, 0, 0, 0, 0x12, 0x34}); err != nil {
		t.Fatalf("err: %v", err)
	}
	// cache the vector so decoded copies compare equal
	o.InventoryVector()
	return o
}

func filled(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func testMessages(t *testing.T) []MessagePayload {
	return []MessagePayload{
		&Version{
			Version:   ProtocolVersion,
			Services:  NodeNetwork,
			Timestamp: 1600000000,
			AddrRecv:  testAddress(t, "10.0.0.2:8444", 0, 0),
			AddrFrom:  testAddress(t, "[2001:db8::1]:8444", 0, 0),
			Nonce:     0xdeadbeefcafe,
			UserAgent: "/murmur:0.1.0/",
			Streams:   []uint64{1, 2},
		},
		&VerAck{},
		&Addr{Addresses: []NetworkAddress{
			testAddress(t, "10.0.0.3:8444", 1, 1600000000),
			testAddress(t, "192.168.1.1:8445", 2, 1600000100),
		}},
		&Inv{Vectors: []InventoryVector{{1, 2, 3}, {4, 5, 6}}},
		&GetData{Vectors: []InventoryVector{{7, 8, 9}}},
		testObject(t, &Msg{Encrypted: filled(100, 0xab)}, 1),
		testObject(t, &GetPubkey{Ripe: filled(ripeSize, 1)}, 3),
		testObject(t, &GetPubkey{Tag: filled(tagSize, 2)}, 4),
		testObject(t, &Pubkey{
			Behavior:      1,
			SigningKey:    filled(keySize, 3),
			EncryptionKey: filled(keySize, 4),
		}, 2),
		testObject(t, &Pubkey{
			Behavior:           1,
			SigningKey:         filled(keySize, 3),
			EncryptionKey:      filled(keySize, 4),
			NonceTrialsPerByte: 1000,
			ExtraBytes:         1000,
			Signature:          filled(71, 5),
		}, 3),
		testObject(t, &Pubkey{Tag: filled(tagSize, 6), Encrypted: filled(50, 7)}, 4),
		testObject(t, &Broadcast{Encrypted: filled(60, 8)}, 4),
		testObject(t, &Broadcast{Tag: filled(tagSize, 9), Encrypted: filled(60, 10)}, 5),
		testObject(t, &Generic{ObjType: 42, Data: filled(12, 11)}, 1),
		&Custom{Name: "getstatus", Data: []byte(`{"verbose":true}`)},
	}
}

func TestMessageRoundTrip(t *testing.T) {
	for _, m := range testMessages(t) {
		frame := EncodeMessage(m)
		got, err := DecodeMessage(frame)
		if err != nil {
			t.Fatalf("%s: err: %v", m.Command(), err)
		}
		if !reflect.DeepEqual(got, m) {
			t.Fatalf("%s: round trip mismatch:\n%#v\n%#v", m.Command(), got, m)
		}
	}
}

func TestFrameLayout(t *testing.T) {
	frame := EncodeMessage(&VerAck{})
	if len(frame) != magicSize+headerSize {
		t.Fatalf("verack frame should be %d bytes, got %d", magicSize+headerSize, len(frame))
	}
	if !bytes.Equal(frame[:4], []byte{0xE9, 0xBE, 0xB4, 0xD9}) {
		t.Fatalf("bad magic: %x", frame[:4])
	}
	if !bytes.Equal(frame[4:16], append([]byte("verack"), 0, 0, 0, 0, 0, 0)) {
		t.Fatalf("bad command field: %q", frame[4:16])
	}
	sum := sha512.Sum512(nil)
	if !bytes.Equal(frame[20:24], sum[:4]) {
		t.Fatalf("bad checksum: %x", frame[20:24])
	}
}

func TestUnknownCommand(t *testing.T) {
	frame := EncodeMessage(&Unknown{Name: "ping", Data: []byte{1}})
	got, err := DecodeMessage(frame)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	u, ok := got.(*Unknown)
	if !ok || u.Name != "ping" {
		t.Fatalf("expected Unknown ping, got %#v", got)
	}
}

func TestCommandPadding(t *testing.T) {
	frame := EncodeMessage(&Inv{Vectors: []InventoryVector{{1}}})
	frame[4+len(CmdInv)+1] = 'x'
	if _, err := DecodeMessage(frame); !errors.Is(err, ErrCommandPadding) {
		t.Fatalf("expected ErrCommandPadding, got %v", err)
	}
}

func TestMalformedBodyIsGeneric(t *testing.T) {
	o := testObject(t, &Generic{ObjType: PubkeyType, Data: filled(10, 1)}, 3)
	got, err := DecodeObject(o.Bytes())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	g, ok := got.Payload.(*Generic)
	if !ok {
		t.Fatalf("expected Generic payload, got %T", got.Payload)
	}
	if g.ObjType != PubkeyType {
		t.Fatalf("expected type %d, got %d", PubkeyType, g.ObjType)
	}
	if !bytes.Equal(got.Bytes(), o.Bytes()) {
		t.Fatalf("generic object does not re-encode identically")
	}
}

func TestObjectInventoryVector(t *testing.T) {
	o := NewObject(1600000000, 1, 1, &Msg{Encrypted: []byte("hello")})
	if _, ok := o.InventoryVector(); ok {
		t.Fatalf("vector should be undefined without a nonce")
	}
	nonce := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := o.SetNonce(nonce); err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := o.SetNonce(nonce); !errors.Is(err, ErrNonceSet) {
		t.Fatalf("expected ErrNonceSet, got %v", err)
	}

	first := sha512.Sum512(o.Bytes())
	second := sha512.Sum512(first[:])
	iv, ok := o.InventoryVector()
	if !ok {
		t.Fatalf("vector should be defined")
	}
	if !bytes.Equal(iv[:], second[:32]) {
		t.Fatalf("vector mismatch: %s", iv)
	}

	if !bytes.Equal(o.Bytes()[NonceSize:], o.PayloadBytesWithoutNonce()) {
		t.Fatalf("payload without nonce mismatch")
	}
}

func TestChunkVectors(t *testing.T) {
	ivs := make([]InventoryVector, 120000)
	chunks := ChunkVectors(ivs, MaxInvEntries)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	sizes := []int{50000, 50000, 20000}
	for i, c := range chunks {
		if len(c) != sizes[i] {
			t.Fatalf("chunk %d: expected %d vectors, got %d", i, sizes[i], len(c))
		}
	}
	if ChunkVectors(nil, MaxInvEntries) != nil {
		t.Fatalf("expected no chunks for empty input")
	}
}

func TestNetworkAddressRoutable(t *testing.T) {
	a := NetworkAddress{IP: net.IPv4zero, Port: 8444}
	if a.IsRoutable() {
		t.Fatalf("unspecified address should not be routable")
	}
	b := testAddress(t, "10.0.0.1:8444", 1, 0)
	if !b.IsRoutable() {
		t.Fatalf("%s should be routable", b)
	}
}
