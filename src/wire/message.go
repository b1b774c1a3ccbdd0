package wire

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic is the constant that opens every frame.
const Magic uint32 = 0xE9BEB4D9

const (
	// MaxPayloadLength is the largest payload a frame may declare.
	MaxPayloadLength = 1600003

	// MaxInvEntries is the maximum number of vectors in an inv or getdata
	// message.
	MaxInvEntries = 50000

	// MaxAddrEntries is the maximum number of addresses in an addr message.
	MaxAddrEntries = 1000

	commandSize  = 12
	checksumSize = 4
	// headerSize counts the frame bytes following the magic.
	headerSize = commandSize + 4 + checksumSize
	magicSize  = 4
)

// Command names.
const (
	CmdVersion = "version"
	CmdVerAck  = "verack"
	CmdAddr    = "addr"
	CmdInv     = "inv"
	CmdGetData = "getdata"
	CmdObject  = "object"
	CmdCustom  = "custom"
)

var (
	// ErrChecksum is returned when a payload does not match its checksum.
	ErrChecksum = errors.New("payload checksum mismatch")
	// ErrPayloadTooLarge is returned for frames declaring more than
	// MaxPayloadLength bytes.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrCommandPadding is returned when a command name has non-zero bytes
	// after its first NUL.
	ErrCommandPadding = errors.New("malformed command padding")
	// ErrBadMagic is returned when no magic sequence is found within a
	// frame's worth of bytes.
	ErrBadMagic = errors.New("magic not found")
	// ErrUnknownCommand is returned by consumers refusing an Unknown
	// message.
	ErrUnknownCommand = errors.New("unknown command")
)

// MessagePayload is the body of a frame.
type MessagePayload interface {
	// Command returns the command name sent in the frame header.
	Command() string
	// Encode appends the payload bytes to w.
	Encode(w *bytes.Buffer)
}

// Checksum returns the first four bytes of the SHA-512 digest of payload.
func Checksum(payload []byte) [checksumSize]byte {
	var out [checksumSize]byte
	sum := sha512.Sum512(payload)
	copy(out[:], sum[:checksumSize])
	return out
}

// EncodeMessage returns the complete frame for p.
func EncodeMessage(p MessagePayload) []byte {
	var body bytes.Buffer
	p.Encode(&body)
	payload := body.Bytes()

	frame := make([]byte, magicSize+headerSize, magicSize+headerSize+len(payload))
	binary.BigEndian.PutUint32(frame[0:], Magic)
	copy(frame[magicSize:magicSize+commandSize], p.Command())
	binary.BigEndian.PutUint32(frame[magicSize+commandSize:], uint32(len(payload)))
	sum := Checksum(payload)
	copy(frame[magicSize+commandSize+4:], sum[:])
	return append(frame, payload...)
}

// WriteMessage encodes p and writes the frame to w.
func WriteMessage(w io.Writer, p MessagePayload) error {
	_, err := w.Write(EncodeMessage(p))
	return err
}

// parseCommand extracts the command name from the NUL padded field.
func parseCommand(field []byte) (string, error) {
	end := bytes.IndexByte(field, 0)
	if end < 0 {
		return string(field), nil
	}
	for _, b := range field[end:] {
		if b != 0 {
			return "", ErrCommandPadding
		}
	}
	return string(field[:end]), nil
}

// DecodePayload decodes the payload of a frame carrying command.
func DecodePayload(command string, data []byte) (MessagePayload, error) {
	var (
		p   MessagePayload
		err error
	)
	switch command {
	case CmdVersion:
		p, err = decodeVersion(data)
	case CmdVerAck:
		if len(data) != 0 {
			return nil, fmt.Errorf("verack: %w", ErrTrailingBytes)
		}
		p = &VerAck{}
	case CmdAddr:
		p, err = decodeAddr(data)
	case CmdInv:
		var ivs []InventoryVector
		ivs, err = decodeVectors(data)
		p = &Inv{Vectors: ivs}
	case CmdGetData:
		var ivs []InventoryVector
		ivs, err = decodeVectors(data)
		p = &GetData{Vectors: ivs}
	case CmdObject:
		p, err = DecodeObject(data)
	case CmdCustom:
		p, err = decodeCustom(data)
	default:
		p = &Unknown{Name: command, Data: append([]byte(nil), data...)}
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", command, err)
	}
	return p, nil
}

// DecodeMessage decodes one complete frame held in data.
func DecodeMessage(data []byte) (MessagePayload, error) {
	r := NewReader()
	if err := r.Update(data); err != nil {
		return nil, err
	}
	msgs := r.Messages()
	if len(msgs) != 1 {
		return nil, fmt.Errorf("expected one message, got %d", len(msgs))
	}
	return msgs[0], nil
}

// VerAck acknowledges a Version.
type VerAck struct{}

// Command implements MessagePayload.
func (*VerAck) Command() string { return CmdVerAck }

// Encode implements MessagePayload.
func (*VerAck) Encode(*bytes.Buffer) {}

// Unknown holds a frame whose command is not part of the vocabulary.
type Unknown struct {
	Name string
	Data []byte
}

// Command implements MessagePayload.
func (u *Unknown) Command() string { return u.Name }

// Encode implements MessagePayload.
func (u *Unknown) Encode(w *bytes.Buffer) { w.Write(u.Data) }
