package wire

import (
	"bytes"
	"net"
	"strconv"
)

// NodeNetwork is the service bit advertised by full nodes.
const NodeNetwork uint64 = 1

const (
	shortAddressSize = 8 + 16 + 2
	fullAddressSize  = 8 + 4 + shortAddressSize
)

// NetworkAddress identifies a node. Time and Stream are only carried by the
// long form used in addr messages.
type NetworkAddress struct {
	Time     int64
	Stream   uint32
	Services uint64
	IP       net.IP
	Port     uint16
}

// NewNetworkAddress builds an address from a host:port string.
func NewNetworkAddress(hostport string, stream uint32, services uint64, time int64) (NetworkAddress, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return NetworkAddress{}, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return NetworkAddress{}, err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return NetworkAddress{}, err
		}
		ip = ips[0]
	}
	return NetworkAddress{
		Time:     time,
		Stream:   stream,
		Services: services,
		IP:       ip.To16(),
		Port:     uint16(port),
	}, nil
}

// String returns the host:port form of the address.
func (a NetworkAddress) String() string {
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(int(a.Port)))
}

// IsRoutable reports whether the address is worth dialing.
func (a NetworkAddress) IsRoutable() bool {
	return len(a.IP) != 0 && !a.IP.IsUnspecified() && a.Port != 0
}

func writeIP(w *bytes.Buffer, ip net.IP) {
	var b [16]byte
	if ip16 := ip.To16(); ip16 != nil {
		copy(b[:], ip16)
	}
	w.Write(b[:])
}

func (a NetworkAddress) encodeShort(w *bytes.Buffer) {
	writeUint64(w, a.Services)
	writeIP(w, a.IP)
	writeUint16(w, a.Port)
}

func (a NetworkAddress) encodeFull(w *bytes.Buffer) {
	writeUint64(w, uint64(a.Time))
	writeUint32(w, a.Stream)
	a.encodeShort(w)
}

func decodeShortAddress(d *Decoder) NetworkAddress {
	var a NetworkAddress
	a.Services = d.Uint64()
	a.IP = net.IP(d.Bytes(16))
	a.Port = d.Uint16()
	return a
}

func decodeFullAddress(d *Decoder) NetworkAddress {
	time := d.Int64()
	stream := d.Uint32()
	a := decodeShortAddress(d)
	a.Time = time
	a.Stream = stream
	return a
}

// Addr advertises known node addresses.
type Addr struct {
	Addresses []NetworkAddress
}

// Command implements MessagePayload.
func (*Addr) Command() string { return CmdAddr }

// Encode implements MessagePayload.
func (m *Addr) Encode(w *bytes.Buffer) {
	WriteVarInt(w, uint64(len(m.Addresses)))
	for _, a := range m.Addresses {
		a.encodeFull(w)
	}
}

func decodeAddr(data []byte) (*Addr, error) {
	d := NewDecoder(data)
	n := d.ListLen(MaxAddrEntries, fullAddressSize)
	m := &Addr{Addresses: make([]NetworkAddress, 0, n)}
	for i := 0; i < n; i++ {
		m.Addresses = append(m.Addresses, decodeFullAddress(d))
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return m, nil
}
