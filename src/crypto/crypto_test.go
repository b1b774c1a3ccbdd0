package crypto

import (
	"bytes"
	"crypto/sha512"
	"errors"
	"testing"

	"github.com/mosaicnetworks/murmur/src/crypto/keys"
)

func testKeyPair(t *testing.T) (priv []byte, pub []byte) {
	key, err := keys.GenerateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return keys.DumpPrivateKey(key), keys.FromPublicKey(key.PubKey())
}

func TestDoubleSha512(t *testing.T) {
	first := sha512.Sum512([]byte("abcdef"))
	second := sha512.Sum512(first[:])
	got := DoubleSha512([]byte("abc"), []byte("def"))
	if !bytes.Equal(got, second[:]) {
		t.Fatalf("double hash mismatch")
	}
}

func TestSignature(t *testing.T) {
	c := NewSecp256k1()
	priv, pub := testKeyPair(t)

	data := []byte("J'aime mieux forger mon ame que la meubler")
	sig, err := c.Sign(data, priv)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !c.IsSignatureValid(data, sig, pub) {
		t.Fatalf("signature should be valid")
	}
	if c.IsSignatureValid(append(data, '!'), sig, pub) {
		t.Fatalf("signature should not cover modified data")
	}

	_, other := testKeyPair(t)
	if c.IsSignatureValid(data, sig, other) {
		t.Fatalf("signature should not verify under another key")
	}

	if _, err := c.Sign(data, []byte{1, 2}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestAsymmetricEncryption(t *testing.T) {
	c := NewSecp256k1()
	priv, pub := testKeyPair(t)

	plain := []byte("meet me at the usual place")
	enc, err := c.Encrypt(plain, pub)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	dec, err := c.Decrypt(enc, priv)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !bytes.Equal(dec, plain) {
		t.Fatalf("decrypted text mismatch")
	}
}

func TestTryDecrypt(t *testing.T) {
	c := NewSecp256k1()
	priv1, _ := testKeyPair(t)
	priv2, pub2 := testKeyPair(t)
	priv3, _ := testKeyPair(t)

	plain := []byte("for the second identity")
	enc, err := c.Encrypt(plain, pub2)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	dec, idx, ok := TryDecrypt(c, enc, [][]byte{priv1, priv2, priv3})
	if !ok {
		t.Fatalf("expected a candidate to decrypt")
	}
	if idx != 1 {
		t.Fatalf("expected candidate 1, got %d", idx)
	}
	if !bytes.Equal(dec, plain) {
		t.Fatalf("decrypted text mismatch")
	}

	if _, _, ok := TryDecrypt(c, enc, [][]byte{priv1, priv3}); ok {
		t.Fatalf("no candidate should decrypt")
	}
}

func TestSymmetricEncryption(t *testing.T) {
	c := NewSecp256k1()
	key := c.RandomBytes(32)

	for _, size := range []int{0, 1, 15, 16, 17, 100} {
		plain := bytes.Repeat([]byte{'x'}, size)
		enc, err := c.EncryptSymmetric(key, plain)
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		dec, err := c.DecryptSymmetric(key, enc)
		if err != nil {
			t.Fatalf("size %d: err: %v", size, err)
		}
		if !bytes.Equal(dec, plain) {
			t.Fatalf("size %d: decrypted text mismatch", size)
		}
	}

	if _, err := c.EncryptSymmetric([]byte("short"), []byte("x")); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
