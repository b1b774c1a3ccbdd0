package wire

import "bytes"

// ProtocolVersion is the protocol version spoken by this implementation. Peers
// announcing a lower version are refused.
const ProtocolVersion uint32 = 3

// MaxStreams bounds the stream list of a Version message.
const MaxStreams = 160000

// Version is the handshake offer.
type Version struct {
	Version   uint32
	Services  uint64
	Timestamp int64
	AddrRecv  NetworkAddress
	AddrFrom  NetworkAddress
	// Nonce is random per process and lets a node detect connections to
	// itself.
	Nonce     uint64
	UserAgent string
	Streams   []uint64
}

// Command implements MessagePayload.
func (*Version) Command() string { return CmdVersion }

// Encode implements MessagePayload.
func (m *Version) Encode(w *bytes.Buffer) {
	writeUint32(w, m.Version)
	writeUint64(w, m.Services)
	writeUint64(w, uint64(m.Timestamp))
	m.AddrRecv.encodeShort(w)
	m.AddrFrom.encodeShort(w)
	writeUint64(w, m.Nonce)
	WriteVarString(w, m.UserAgent)
	WriteVarIntList(w, m.Streams)
}

func decodeVersion(data []byte) (*Version, error) {
	d := NewDecoder(data)
	m := &Version{
		Version:   d.Uint32(),
		Services:  d.Uint64(),
		Timestamp: d.Int64(),
		AddrRecv:  decodeShortAddress(d),
		AddrFrom:  decodeShortAddress(d),
		Nonce:     d.Uint64(),
		UserAgent: d.VarString(),
		Streams:   d.VarIntList(MaxStreams),
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return m, nil
}
