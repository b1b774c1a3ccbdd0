package wire

import (
	"encoding/binary"
	"fmt"
)

type readerState int

const (
	seekMagic readerState = iota
	readHeader
	readPayload
)

// maxGarbage is how many bytes may be skipped while looking for magic before
// the stream is declared broken.
const maxGarbage = magicSize + headerSize + MaxPayloadLength

var magicBytes = [magicSize]byte{0xE9, 0xBE, 0xB4, 0xD9}

// Reader turns a byte stream delivered in arbitrary chunks into messages.
// It is not safe for concurrent use; one Reader serves one connection.
type Reader struct {
	state readerState

	matched int
	skipped int

	header    [headerSize]byte
	headerLen int

	command  string
	length   int
	checksum [checksumSize]byte
	payload  []byte

	messages []MessagePayload
}

// NewReader returns a Reader waiting for the first magic sequence.
func NewReader() *Reader {
	return &Reader{}
}

// Update consumes chunk. Complete messages become available through
// Messages. Framing errors reset the reader to magic search and processing of
// the rest of the chunk continues; the first such error is returned.
func (r *Reader) Update(chunk []byte) error {
	var first error
	fail := func(err error) {
		if first == nil {
			first = err
		}
		r.reset()
	}

	for len(chunk) > 0 {
		switch r.state {
		case seekMagic:
			n := r.seek(chunk)
			chunk = chunk[n:]
			if r.skipped > maxGarbage {
				r.skipped = 0
				fail(ErrBadMagic)
			}

		case readHeader:
			n := copy(r.header[r.headerLen:], chunk)
			r.headerLen += n
			chunk = chunk[n:]
			if r.headerLen < headerSize {
				continue
			}
			if err := r.parseHeader(); err != nil {
				fail(err)
				continue
			}
			if r.length == 0 {
				if err := r.emit(); err != nil {
					fail(err)
				}
				continue
			}
			r.state = readPayload

		case readPayload:
			need := r.length - len(r.payload)
			if need > len(chunk) {
				need = len(chunk)
			}
			r.payload = append(r.payload, chunk[:need]...)
			chunk = chunk[need:]
			if len(r.payload) < r.length {
				continue
			}
			if err := r.emit(); err != nil {
				fail(err)
			}
		}
	}
	return first
}

// Messages returns the decoded messages in arrival order and clears the
// queue.
func (r *Reader) Messages() []MessagePayload {
	out := r.messages
	r.messages = nil
	return out
}

// seek advances through chunk looking for the magic sequence and returns the
// number of bytes consumed.
func (r *Reader) seek(chunk []byte) int {
	for i, b := range chunk {
		if b == magicBytes[r.matched] {
			r.matched++
			if r.matched == magicSize {
				r.matched = 0
				r.skipped = 0
				r.state = readHeader
				return i + 1
			}
			continue
		}
		// The breaking byte may itself open a new match.
		r.skipped += r.matched
		if b == magicBytes[0] {
			r.matched = 1
		} else {
			r.matched = 0
			r.skipped++
		}
	}
	return len(chunk)
}

func (r *Reader) parseHeader() error {
	cmd, err := parseCommand(r.header[:commandSize])
	if err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(r.header[commandSize:])
	if length > MaxPayloadLength {
		return fmt.Errorf("%w: %d", ErrPayloadTooLarge, length)
	}
	r.command = cmd
	r.length = int(length)
	copy(r.checksum[:], r.header[commandSize+4:])
	r.payload = make([]byte, 0, r.length)
	return nil
}

func (r *Reader) emit() error {
	payload := r.payload
	command := r.command
	sum := r.checksum
	r.reset()

	if Checksum(payload) != sum {
		return fmt.Errorf("%s: %w", command, ErrChecksum)
	}
	msg, err := DecodePayload(command, payload)
	if err != nil {
		return err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *Reader) reset() {
	r.state = seekMagic
	r.matched = 0
	r.headerLen = 0
	r.command = ""
	r.length = 0
	r.payload = nil
}
