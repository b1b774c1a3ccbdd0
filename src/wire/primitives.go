package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrListTooLong is returned when a decoded list announces more elements
	// than the protocol allows.
	ErrListTooLong = errors.New("list exceeds protocol limit")
	// ErrTrailingBytes is returned when a payload holds data past its last
	// field.
	ErrTrailingBytes = errors.New("unexpected trailing bytes")
)

// WriteVarInt writes v using the 1/3/5/9 byte tagged encoding.
func WriteVarInt(w *bytes.Buffer, v uint64) {
	var b [9]byte
	switch {
	case v < 0xfd:
		w.WriteByte(byte(v))
	case v <= 0xffff:
		b[0] = 0xfd
		binary.BigEndian.PutUint16(b[1:], uint16(v))
		w.Write(b[:3])
	case v <= 0xffffffff:
		b[0] = 0xfe
		binary.BigEndian.PutUint32(b[1:], uint32(v))
		w.Write(b[:5])
	default:
		b[0] = 0xff
		binary.BigEndian.PutUint64(b[1:], v)
		w.Write(b[:9])
	}
}

// VarIntSize returns the number of bytes WriteVarInt uses for v.
func VarIntSize(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// WriteVarString writes a var_int length followed by the raw string bytes.
func WriteVarString(w *bytes.Buffer, s string) {
	WriteVarInt(w, uint64(len(s)))
	w.WriteString(s)
}

// WriteVarBytes writes a var_int length followed by b.
func WriteVarBytes(w *bytes.Buffer, b []byte) {
	WriteVarInt(w, uint64(len(b)))
	w.Write(b)
}

// WriteVarIntList writes a var_int count followed by each value as a var_int.
func WriteVarIntList(w *bytes.Buffer, values []uint64) {
	WriteVarInt(w, uint64(len(values)))
	for _, v := range values {
		WriteVarInt(w, v)
	}
}

func writeUint16(w *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func writeUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeUint64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

// Decoder reads primitives from a byte slice. The first error is sticky: once
// a read fails every later read returns zero values and Err reports the
// failure.
type Decoder struct {
	data []byte
	pos  int
	err  error
}

// NewDecoder returns a Decoder positioned at the start of data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Err returns the first error encountered.
func (d *Decoder) Err() error {
	return d.err
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}

// Finish reports an error if bytes remain unread.
func (d *Decoder) Finish() error {
	if d.err == nil && d.Remaining() != 0 {
		d.err = fmt.Errorf("%w: %d bytes", ErrTrailingBytes, d.Remaining())
	}
	return d.err
}

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Bytes returns the next n bytes. The returned slice is a copy.
func (d *Decoder) Bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.Remaining() < n {
		d.fail(io.ErrUnexpectedEOF)
		return nil
	}
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, d.data[d.pos:d.pos+n])
	d.pos += n
	return out
}

// Rest returns a copy of all unread bytes.
func (d *Decoder) Rest() []byte {
	return d.Bytes(d.Remaining())
}

// Uint8 reads a single byte.
func (d *Decoder) Uint8() uint8 {
	if d.err != nil {
		return 0
	}
	if d.Remaining() < 1 {
		d.fail(io.ErrUnexpectedEOF)
		return 0
	}
	v := d.data[d.pos]
	d.pos++
	return v
}

// Uint16 reads a big-endian uint16.
func (d *Decoder) Uint16() uint16 {
	if d.err != nil {
		return 0
	}
	if d.Remaining() < 2 {
		d.fail(io.ErrUnexpectedEOF)
		return 0
	}
	v := binary.BigEndian.Uint16(d.data[d.pos:])
	d.pos += 2
	return v
}

// Uint32 reads a big-endian uint32.
func (d *Decoder) Uint32() uint32 {
	if d.err != nil {
		return 0
	}
	if d.Remaining() < 4 {
		d.fail(io.ErrUnexpectedEOF)
		return 0
	}
	v := binary.BigEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v
}

// Uint64 reads a big-endian uint64.
func (d *Decoder) Uint64() uint64 {
	if d.err != nil {
		return 0
	}
	if d.Remaining() < 8 {
		d.fail(io.ErrUnexpectedEOF)
		return 0
	}
	v := binary.BigEndian.Uint64(d.data[d.pos:])
	d.pos += 8
	return v
}

// Int64 reads a big-endian two's complement int64.
func (d *Decoder) Int64() int64 {
	return int64(d.Uint64())
}

// VarInt reads a tagged variable-length integer. Only the tag byte decides
// the width; non-minimal encodings are accepted.
func (d *Decoder) VarInt() uint64 {
	switch tag := d.Uint8(); tag {
	case 0xfd:
		return uint64(d.Uint16())
	case 0xfe:
		return uint64(d.Uint32())
	case 0xff:
		return d.Uint64()
	default:
		return uint64(tag)
	}
}

// VarString reads a var_int length followed by that many bytes.
func (d *Decoder) VarString() string {
	return string(d.VarBytes())
}

// VarBytes reads a var_int length followed by that many bytes.
func (d *Decoder) VarBytes() []byte {
	n := d.VarInt()
	if d.err != nil {
		return nil
	}
	if n > uint64(d.Remaining()) {
		d.fail(io.ErrUnexpectedEOF)
		return nil
	}
	return d.Bytes(int(n))
}

// ListLen reads a var_int element count and checks it against max and against
// the number of bytes left, given the minimum encoded size of one element.
func (d *Decoder) ListLen(max uint64, minElemSize int) int {
	n := d.VarInt()
	if d.err != nil {
		return 0
	}
	if n > max {
		d.fail(fmt.Errorf("%w: %d > %d", ErrListTooLong, n, max))
		return 0
	}
	if minElemSize > 0 && n > uint64(d.Remaining()/minElemSize) {
		d.fail(io.ErrUnexpectedEOF)
		return 0
	}
	return int(n)
}

// VarIntList reads a var_int count followed by that many var_ints.
func (d *Decoder) VarIntList(max uint64) []uint64 {
	n := d.ListLen(max, 1)
	if d.err != nil {
		return nil
	}
	out := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, d.VarInt())
	}
	if d.err != nil {
		return nil
	}
	return out
}
