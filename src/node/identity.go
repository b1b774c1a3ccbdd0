package node

import (
	"net"
	"strconv"
	"time"

	"github.com/mosaicnetworks/murmur/src/wire"
)

// Identity is what a node tells its peers about itself during the handshake.
type Identity struct {
	// Nonce is random per process. Receiving it back means we dialed
	// ourselves.
	Nonce     uint64
	UserAgent string
	Streams   []uint64
	Services  uint64

	advertise wire.NetworkAddress
}

// NewIdentity ...
func NewIdentity(nonce uint64, userAgent string, streams []uint64, advertise string) *Identity {
	if len(streams) == 0 {
		streams = []uint64{1}
	}
	return &Identity{
		Nonce:     nonce,
		UserAgent: userAgent,
		Streams:   streams,
		Services:  wire.NodeNetwork,
		advertise: socketAddress(advertise),
	}
}

// versionMessage builds the handshake offer sent to remote.
func (id *Identity) versionMessage(remote string, now time.Time) *wire.Version {
	recv := socketAddress(remote)
	recv.Services = wire.NodeNetwork
	from := id.advertise
	from.Services = id.Services

	return &wire.Version{
		Version:   wire.ProtocolVersion,
		Services:  id.Services,
		Timestamp: now.Unix(),
		AddrRecv:  recv,
		AddrFrom:  from,
		Nonce:     id.Nonce,
		UserAgent: id.UserAgent,
		Streams:   id.Streams,
	}
}

// socketAddress parses a host:port without resolving names. Unparsable
// parts are left zero.
func socketAddress(hostport string) wire.NetworkAddress {
	var a wire.NetworkAddress
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return a
	}
	if ip := net.ParseIP(host); ip != nil {
		a.IP = ip.To16()
	}
	if p, err := strconv.ParseUint(port, 10, 16); err == nil {
		a.Port = uint16(p)
	}
	return a
}

// commonStreams returns the streams of ours that theirs also lists, in our
// order.
func commonStreams(ours, theirs []uint64) []uint64 {
	var res []uint64
	for _, s := range ours {
		for _, t := range theirs {
			if s == t {
				res = append(res, s)
				break
			}
		}
	}
	return res
}

func containsStream(streams []uint64, stream uint64) bool {
	for _, s := range streams {
		if s == stream {
			return true
		}
	}
	return false
}
