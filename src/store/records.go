package store

import (
	"bytes"

	"github.com/mosaicnetworks/murmur/src/wire"
	"github.com/ugorji/go/codec"
)

// workItemRecord is the stored form of a WorkItem. The object has no nonce
// yet and is kept as its wire encoding.
type workItemRecord struct {
	Object             []byte
	NonceTrialsPerByte uint64
	ExtraBytes         uint64
	ExpirationTime     int64
	Message            *Message
}

// addressRecord is the stored form of a NetworkAddress.
type addressRecord struct {
	Time     int64
	Stream   uint32
	Services uint64
	IP       []byte
	Port     uint16
}

func marshal(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	mh := new(codec.MsgpackHandle)
	mh.WriteExt = true
	enc := codec.NewEncoder(b, mh)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func unmarshal(data []byte, v interface{}) error {
	b := bytes.NewBuffer(data)
	mh := new(codec.MsgpackHandle)
	mh.WriteExt = true
	dec := codec.NewDecoder(b, mh)

	return dec.Decode(v)
}

func marshalWorkItem(item *WorkItem) ([]byte, error) {
	return marshal(&workItemRecord{
		Object:             item.Object.PayloadBytesWithoutNonce(),
		NonceTrialsPerByte: item.NonceTrialsPerByte,
		ExtraBytes:         item.ExtraBytes,
		ExpirationTime:     item.ExpirationTime,
		Message:            item.Message,
	})
}

func unmarshalWorkItem(data []byte) (*WorkItem, error) {
	var r workItemRecord
	if err := unmarshal(data, &r); err != nil {
		return nil, err
	}
	obj, err := wire.DecodeObjectWithoutNonce(r.Object)
	if err != nil {
		return nil, err
	}
	return &WorkItem{
		Object:             obj,
		NonceTrialsPerByte: r.NonceTrialsPerByte,
		ExtraBytes:         r.ExtraBytes,
		ExpirationTime:     r.ExpirationTime,
		Message:            r.Message,
	}, nil
}

func marshalAddress(a wire.NetworkAddress) ([]byte, error) {
	return marshal(&addressRecord{
		Time:     a.Time,
		Stream:   a.Stream,
		Services: a.Services,
		IP:       []byte(a.IP.To16()),
		Port:     a.Port,
	})
}

func unmarshalAddress(data []byte) (wire.NetworkAddress, error) {
	var r addressRecord
	if err := unmarshal(data, &r); err != nil {
		return wire.NetworkAddress{}, err
	}
	return wire.NetworkAddress{
		Time:     r.Time,
		Stream:   r.Stream,
		Services: r.Services,
		IP:       r.IP,
		Port:     r.Port,
	}, nil
}
