package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

// PrivateKeySize is the length of a dumped private key.
const PrivateKeySize = 32

// Order of the secp256k1 group. A private scalar must be below it.
var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

//GenerateKey creates a new private key on Curve().
func GenerateKey() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey(Curve())
}

//DumpPrivateKey exports a private key as its 32 byte scalar.
func DumpPrivateKey(priv *btcec.PrivateKey) []byte {
	if priv == nil {
		return nil
	}
	return priv.Serialize()
}

//ParsePrivateKey creates a private key from its 32 byte scalar.
func ParsePrivateKey(d []byte) (*btcec.PrivateKey, error) {
	if len(d) != PrivateKeySize {
		return nil, fmt.Errorf("invalid length, need %d bytes", PrivateKeySize)
	}

	n := new(big.Int).SetBytes(d)

	// The scalar must be < N
	if n.Cmp(secp256k1N) >= 0 {
		return nil, fmt.Errorf("invalid private key, >=N")
	}

	// and must not be zero
	if n.Sign() <= 0 {
		return nil, errors.New("invalid private key, zero")
	}

	priv, _ := btcec.PrivKeyFromBytes(Curve(), d)
	return priv, nil
}

//PrivateKeyHex returns the hexadecimal representation of a raw private key as
//returned by DumpPrivateKey
func PrivateKeyHex(key *btcec.PrivateKey) string {
	return hex.EncodeToString(DumpPrivateKey(key))
}
