package wire

import "bytes"

// ObjectType is the numeric type of an object.
type ObjectType uint32

// Known object types.
const (
	GetPubkeyType ObjectType = 0
	PubkeyType    ObjectType = 1
	MsgType       ObjectType = 2
	BroadcastType ObjectType = 3
)

const (
	ripeSize = 20
	tagSize  = 32
	keySize  = 64
)

// Payload is the type specific body of an Object. The set of implementations
// is closed: GetPubkey, Pubkey, Msg, Broadcast and Generic.
type Payload interface {
	Type() ObjectType
	encode(w *bytes.Buffer, version uint64)
}

// GetPubkey asks the owner of an address to publish its public key. Versions
// below 4 identify the address by Ripe, later versions by Tag.
type GetPubkey struct {
	Ripe []byte
	Tag  []byte
}

// Type implements Payload.
func (*GetPubkey) Type() ObjectType { return GetPubkeyType }

func (p *GetPubkey) encode(w *bytes.Buffer, version uint64) {
	if version < 4 {
		w.Write(p.Ripe)
		return
	}
	w.Write(p.Tag)
}

// Pubkey publishes an address' keys. Version 2 carries the bare keys, version
// 3 adds difficulty and a signature, version 4 is encrypted under a tag.
type Pubkey struct {
	Behavior           uint32
	SigningKey         []byte
	EncryptionKey      []byte
	NonceTrialsPerByte uint64
	ExtraBytes         uint64
	Signature          []byte

	Tag       []byte
	Encrypted []byte
}

// Type implements Payload.
func (*Pubkey) Type() ObjectType { return PubkeyType }

func (p *Pubkey) encode(w *bytes.Buffer, version uint64) {
	if version >= 4 {
		w.Write(p.Tag)
		w.Write(p.Encrypted)
		return
	}
	writeUint32(w, p.Behavior)
	w.Write(p.SigningKey)
	w.Write(p.EncryptionKey)
	if version == 3 {
		WriteVarInt(w, p.NonceTrialsPerByte)
		WriteVarInt(w, p.ExtraBytes)
		WriteVarBytes(w, p.Signature)
	}
}

// Msg is a direct message. Its content is opaque at this layer.
type Msg struct {
	Encrypted []byte
}

// Type implements Payload.
func (*Msg) Type() ObjectType { return MsgType }

func (p *Msg) encode(w *bytes.Buffer, _ uint64) {
	w.Write(p.Encrypted)
}

// Broadcast is a message to all subscribers of an address. Version 5 prefixes
// the encrypted body with a tag.
type Broadcast struct {
	Tag       []byte
	Encrypted []byte
}

// Type implements Payload.
func (*Broadcast) Type() ObjectType { return BroadcastType }

func (p *Broadcast) encode(w *bytes.Buffer, version uint64) {
	if version >= 5 {
		w.Write(p.Tag)
	}
	w.Write(p.Encrypted)
}

// Generic holds a body this node does not interpret.
type Generic struct {
	ObjType ObjectType
	Data    []byte
}

// Type implements Payload.
func (p *Generic) Type() ObjectType { return p.ObjType }

func (p *Generic) encode(w *bytes.Buffer, _ uint64) {
	w.Write(p.Data)
}

func decodeObjectPayload(t ObjectType, version uint64, body []byte) Payload {
	var p Payload
	switch t {
	case GetPubkeyType:
		p = decodeGetPubkey(version, body)
	case PubkeyType:
		p = decodePubkey(version, body)
	case MsgType:
		if version == 1 {
			p = &Msg{Encrypted: body}
		}
	case BroadcastType:
		p = decodeBroadcast(version, body)
	}
	if p == nil {
		return &Generic{ObjType: t, Data: body}
	}
	return p
}

func decodeGetPubkey(version uint64, body []byte) Payload {
	switch {
	case (version == 2 || version == 3) && len(body) == ripeSize:
		return &GetPubkey{Ripe: body}
	case version == 4 && len(body) == tagSize:
		return &GetPubkey{Tag: body}
	}
	return nil
}

func decodePubkey(version uint64, body []byte) Payload {
	switch version {
	case 2, 3:
		d := NewDecoder(body)
		p := &Pubkey{
			Behavior:      d.Uint32(),
			SigningKey:    d.Bytes(keySize),
			EncryptionKey: d.Bytes(keySize),
		}
		if version == 3 {
			p.NonceTrialsPerByte = d.VarInt()
			p.ExtraBytes = d.VarInt()
			p.Signature = d.VarBytes()
		}
		if d.Finish() != nil {
			return nil
		}
		return p
	case 4:
		if len(body) < tagSize {
			return nil
		}
		return &Pubkey{Tag: body[:tagSize:tagSize], Encrypted: nilIfEmpty(body[tagSize:])}
	}
	return nil
}

func decodeBroadcast(version uint64, body []byte) Payload {
	switch version {
	case 4:
		return &Broadcast{Encrypted: body}
	case 5:
		if len(body) < tagSize {
			return nil
		}
		return &Broadcast{Tag: body[:tagSize:tagSize], Encrypted: nilIfEmpty(body[tagSize:])}
	}
	return nil
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
