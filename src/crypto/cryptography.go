package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec"
	"github.com/mosaicnetworks/murmur/src/crypto/keys"
)

// ErrInvalidKey is returned when key material cannot be parsed.
var ErrInvalidKey = errors.New("invalid key")

// Cryptography is the set of primitives the node and the proof of work
// pipeline rely on. Keys are passed in their wire form: private keys as the
// 32 byte scalar, public keys as the 64 byte uncompressed point without the
// 0x04 prefix (the prefixed 65 byte form is also accepted).
type Cryptography interface {
	Sha512(data ...[]byte) []byte
	DoubleSha512(data ...[]byte) []byte

	// Sign returns a DER encoded signature of SHA256(data).
	Sign(data []byte, privateKey []byte) ([]byte, error)
	IsSignatureValid(data []byte, signature []byte, publicKey []byte) bool

	// Encrypt and Decrypt use ECIES on secp256k1.
	Encrypt(plaintext []byte, publicKey []byte) ([]byte, error)
	Decrypt(ciphertext []byte, privateKey []byte) ([]byte, error)

	// EncryptSymmetric and DecryptSymmetric use AES-256-CBC. The IV is
	// prepended to the ciphertext.
	EncryptSymmetric(key []byte, plaintext []byte) ([]byte, error)
	DecryptSymmetric(key []byte, ciphertext []byte) ([]byte, error)

	RandomBytes(n int) []byte
	RandomNonce() uint64
}

// Secp256k1 implements Cryptography with btcec.
type Secp256k1 struct{}

// NewSecp256k1 returns the default Cryptography implementation.
func NewSecp256k1() *Secp256k1 {
	return &Secp256k1{}
}

// Sha512 implements Cryptography.
func (*Secp256k1) Sha512(data ...[]byte) []byte {
	return Sha512(data...)
}

// DoubleSha512 implements Cryptography.
func (*Secp256k1) DoubleSha512(data ...[]byte) []byte {
	return DoubleSha512(data...)
}

// Sign implements Cryptography.
func (*Secp256k1) Sign(data []byte, privateKey []byte) ([]byte, error) {
	priv, err := keys.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	sig, err := priv.Sign(SHA256(data))
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

// IsSignatureValid implements Cryptography.
func (*Secp256k1) IsSignatureValid(data []byte, signature []byte, publicKey []byte) bool {
	pub, err := keys.ToPublicKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := btcec.ParseDERSignature(signature, keys.Curve())
	if err != nil {
		return false
	}
	return sig.Verify(SHA256(data), pub)
}

// Encrypt implements Cryptography.
func (*Secp256k1) Encrypt(plaintext []byte, publicKey []byte) ([]byte, error) {
	pub, err := keys.ToPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return btcec.Encrypt(pub, plaintext)
}

// Decrypt implements Cryptography.
func (*Secp256k1) Decrypt(ciphertext []byte, privateKey []byte) ([]byte, error) {
	priv, err := keys.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return btcec.Decrypt(priv, ciphertext)
}

// EncryptSymmetric implements Cryptography.
func (*Secp256k1) EncryptSymmetric(key []byte, plaintext []byte) ([]byte, error) {
	return encryptCBC(key, plaintext)
}

// DecryptSymmetric implements Cryptography.
func (*Secp256k1) DecryptSymmetric(key []byte, ciphertext []byte) ([]byte, error) {
	return decryptCBC(key, ciphertext)
}

// RandomBytes implements Cryptography.
func (*Secp256k1) RandomBytes(n int) []byte {
	return RandomBytes(n)
}

// RandomNonce implements Cryptography.
func (*Secp256k1) RandomNonce() uint64 {
	return binary.BigEndian.Uint64(RandomBytes(8))
}

// RandomBytes reads n bytes from the system's secure random source. It panics
// if the source fails, which leaves no safe way to continue.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return b
}

// TryDecrypt attempts ciphertext against each candidate private key in turn
// and returns the plaintext and the index of the first key that works.
// Failing candidates are the normal case and are not reported.
func TryDecrypt(c Cryptography, ciphertext []byte, candidates [][]byte) ([]byte, int, bool) {
	for i, key := range candidates {
		plain, err := c.Decrypt(ciphertext, key)
		if err == nil {
			return plain, i, true
		}
	}
	return nil, -1, false
}
