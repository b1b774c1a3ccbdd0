// Package wire implements the binary encoding of the messages exchanged by
// murmur nodes.
//
// Every message travels in a frame:
//
//	magic(4) | command(12, NUL padded) | length(4) | checksum(4) | payload
//
// All multi-byte integers are big-endian. The checksum is the first four bytes
// of the SHA-512 digest of the payload and the payload may not exceed
// MaxPayloadLength bytes.
//
// The package exposes three layers:
//
// - Primitives: variable-length integers, length-prefixed strings and byte
// slices, and the Decoder used to read them back.
//
// - Message payloads: Version, VerAck, Addr, Inv, GetData, Object and Custom.
// Each knows its command name and how to encode itself. Objects carry a
// polymorphic Payload (GetPubkey, Pubkey, Msg, Broadcast, Generic); object
// types or versions this package does not understand decode as Generic.
//
// - Framing: EncodeMessage produces a complete frame and Reader turns an
// arbitrarily fragmented byte stream back into decoded payloads.
package wire
