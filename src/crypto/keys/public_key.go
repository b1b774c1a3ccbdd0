package keys

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec"
	"github.com/mosaicnetworks/murmur/src/common"
)

// PublicKeySize is the length of a public key in wire form.
const PublicKeySize = 64

// ToPublicKey parses a public key in wire form. The 65 byte form carrying the
// 0x04 prefix and the 33 byte compressed form are accepted too.
func ToPublicKey(pub []byte) (*btcec.PublicKey, error) {
	switch len(pub) {
	case PublicKeySize:
		full := make([]byte, 0, PublicKeySize+1)
		full = append(full, 0x04)
		pub = append(full, pub...)
	case PublicKeySize + 1, btcec.PubKeyBytesLenCompressed:
	default:
		return nil, fmt.Errorf("invalid public key length %d", len(pub))
	}
	return btcec.ParsePubKey(pub, Curve())
}

// FromPublicKey returns the 64 byte wire form of pub.
func FromPublicKey(pub *btcec.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return pub.SerializeUncompressed()[1:]
}

// PublicKeyHex returns the hexadecimal reprentation of the wire form of the
// public key
func PublicKeyHex(pub *btcec.PublicKey) string {
	return common.EncodeToString(FromPublicKey(pub))
}
