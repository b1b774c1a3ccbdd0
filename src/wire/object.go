package wire

import (
	"bytes"
	"crypto/sha512"
	"errors"
)

// NonceSize is the length of an object's proof of work nonce.
const NonceSize = 8

// ErrNonceSet is returned when a nonce is attached to an object twice.
var ErrNonceSet = errors.New("object nonce already set")

// Object is the unit of dissemination. Its inventory vector is only defined
// once Nonce is set.
type Object struct {
	Nonce       []byte
	ExpiresTime int64
	Version     uint64
	Stream      uint64
	Payload     Payload

	iv    InventoryVector
	hasIV bool
}

// NewObject returns an object without a nonce.
func NewObject(expires int64, stream uint64, version uint64, payload Payload) *Object {
	return &Object{
		ExpiresTime: expires,
		Version:     version,
		Stream:      stream,
		Payload:     payload,
	}
}

// Command implements MessagePayload.
func (*Object) Command() string { return CmdObject }

// Type returns the numeric object type carried on the wire.
func (o *Object) Type() ObjectType {
	return o.Payload.Type()
}

// Encode implements MessagePayload. A missing nonce is written as zeros.
func (o *Object) Encode(w *bytes.Buffer) {
	var nonce [NonceSize]byte
	copy(nonce[:], o.Nonce)
	w.Write(nonce[:])
	o.encodeWithoutNonce(w)
}

func (o *Object) encodeWithoutNonce(w *bytes.Buffer) {
	writeUint64(w, uint64(o.ExpiresTime))
	writeUint32(w, uint32(o.Payload.Type()))
	WriteVarInt(w, o.Version)
	WriteVarInt(w, o.Stream)
	o.Payload.encode(w, o.Version)
}

// Bytes returns the full serialized object.
func (o *Object) Bytes() []byte {
	var b bytes.Buffer
	o.Encode(&b)
	return b.Bytes()
}

// PayloadBytesWithoutNonce returns everything the nonce commits to.
func (o *Object) PayloadBytesWithoutNonce() []byte {
	var b bytes.Buffer
	o.encodeWithoutNonce(&b)
	return b.Bytes()
}

// InitialHash returns the SHA-512 digest of PayloadBytesWithoutNonce. It is
// the value proof of work is computed against and identifies the object
// before it has a nonce.
func (o *Object) InitialHash() []byte {
	sum := sha512.Sum512(o.PayloadBytesWithoutNonce())
	return sum[:]
}

// HasNonce reports whether proof of work has been attached.
func (o *Object) HasNonce() bool {
	return len(o.Nonce) == NonceSize
}

// SetNonce attaches the proof of work nonce. It fails if one is already set.
func (o *Object) SetNonce(nonce []byte) error {
	if o.HasNonce() {
		return ErrNonceSet
	}
	if len(nonce) != NonceSize {
		return errors.New("nonce must be 8 bytes")
	}
	o.Nonce = append([]byte(nil), nonce...)
	o.hasIV = false
	return nil
}

// InventoryVector returns the object's identity. ok is false while no nonce
// is set. The value is computed once.
func (o *Object) InventoryVector() (iv InventoryVector, ok bool) {
	if !o.HasNonce() {
		return iv, false
	}
	if !o.hasIV {
		o.iv = objectVector(o.Bytes())
		o.hasIV = true
	}
	return o.iv, true
}

func objectVector(data []byte) InventoryVector {
	first := sha512.Sum512(data)
	second := sha512.Sum512(first[:])
	var iv InventoryVector
	copy(iv[:], second[:InventoryVectorSize])
	return iv
}

// DecodeObject parses a serialized object. Bodies that do not match a known
// type and version decode as Generic.
func DecodeObject(data []byte) (*Object, error) {
	d := NewDecoder(data)
	o := &Object{
		Nonce:       d.Bytes(NonceSize),
		ExpiresTime: d.Int64(),
	}
	objType := ObjectType(d.Uint32())
	o.Version = d.VarInt()
	o.Stream = d.VarInt()
	body := d.Rest()
	if err := d.Err(); err != nil {
		return nil, err
	}
	o.Payload = decodeObjectPayload(objType, o.Version, body)
	o.iv = objectVector(data)
	o.hasIV = true
	return o, nil
}

// DecodeObjectWithoutNonce parses the output of PayloadBytesWithoutNonce.
// The returned object has no nonce.
func DecodeObjectWithoutNonce(data []byte) (*Object, error) {
	full := make([]byte, NonceSize+len(data))
	copy(full[NonceSize:], data)
	o, err := DecodeObject(full)
	if err != nil {
		return nil, err
	}
	o.Nonce = nil
	o.hasIV = false
	return o, nil
}
