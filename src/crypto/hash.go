package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// Sha512 returns the SHA-512 hash of the concatenation of data.
func Sha512(data ...[]byte) []byte {
	hasher := sha512.New()
	for _, d := range data {
		hasher.Write(d)
	}
	return hasher.Sum(nil)
}

// DoubleSha512 returns SHA-512 applied twice over the concatenation of data.
func DoubleSha512(data ...[]byte) []byte {
	first := Sha512(data...)
	second := sha512.Sum512(first)
	return second[:]
}
