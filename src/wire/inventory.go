package wire

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// InventoryVectorSize is the length of an inventory vector.
const InventoryVectorSize = 32

// InventoryVector identifies an object by hash.
type InventoryVector [InventoryVectorSize]byte

// NewInventoryVector copies b into an InventoryVector.
func NewInventoryVector(b []byte) (InventoryVector, error) {
	var iv InventoryVector
	if len(b) != InventoryVectorSize {
		return iv, fmt.Errorf("inventory vector must be %d bytes, got %d", InventoryVectorSize, len(b))
	}
	copy(iv[:], b)
	return iv, nil
}

// String returns the hex form of the vector.
func (iv InventoryVector) String() string {
	return hex.EncodeToString(iv[:])
}

// Inv advertises objects.
type Inv struct {
	Vectors []InventoryVector
}

// Command implements MessagePayload.
func (*Inv) Command() string { return CmdInv }

// Encode implements MessagePayload.
func (m *Inv) Encode(w *bytes.Buffer) { encodeVectors(w, m.Vectors) }

// GetData requests objects.
type GetData struct {
	Vectors []InventoryVector
}

// Command implements MessagePayload.
func (*GetData) Command() string { return CmdGetData }

// Encode implements MessagePayload.
func (m *GetData) Encode(w *bytes.Buffer) { encodeVectors(w, m.Vectors) }

func encodeVectors(w *bytes.Buffer, ivs []InventoryVector) {
	WriteVarInt(w, uint64(len(ivs)))
	for i := range ivs {
		w.Write(ivs[i][:])
	}
}

func decodeVectors(data []byte) ([]InventoryVector, error) {
	d := NewDecoder(data)
	n := d.ListLen(MaxInvEntries, InventoryVectorSize)
	ivs := make([]InventoryVector, n)
	for i := 0; i < n; i++ {
		copy(ivs[i][:], d.Bytes(InventoryVectorSize))
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return ivs, nil
}

// ChunkVectors splits ivs into slices of at most size vectors.
func ChunkVectors(ivs []InventoryVector, size int) [][]InventoryVector {
	var out [][]InventoryVector
	for len(ivs) > size {
		out = append(out, ivs[:size:size])
		ivs = ivs[size:]
	}
	if len(ivs) > 0 {
		out = append(out, ivs)
	}
	return out
}
