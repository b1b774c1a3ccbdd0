package pow

import (
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/mosaicnetworks/murmur/src/wire"
)

const (
	// NetworkNonceTrialsPerByte is the minimum difficulty accepted by the
	// network.
	NetworkNonceTrialsPerByte = 1000
	// NetworkExtraBytes is the minimum padding accepted by the network.
	NetworkExtraBytes = 1000
	// MinTTL is the smallest time to live, in seconds, used in target
	// computation.
	MinTTL = 300
)

// ErrInsufficientWork is returned for objects whose nonce misses the target.
var ErrInsufficientWork = errors.New("insufficient proof of work")

var (
	two16 = big.NewInt(1 << 16)
	two64 = new(big.Int).Lsh(big.NewInt(1), 64)
)

// Target returns the value a trial must stay below for an object whose
// encoding without nonce is length bytes long. Higher difficulty and longer
// lives shrink the target; extraBytes makes small objects relatively
// expensive.
func Target(length int, ttl int64, nonceTrialsPerByte, extraBytes uint64) uint64 {
	if ttl < MinTTL {
		ttl = MinTTL
	}

	l := new(big.Int).SetUint64(uint64(length) + wire.NonceSize + extraBytes)
	d := new(big.Int).Mul(l, big.NewInt(ttl))
	d.Div(d, two16)
	d.Add(d, l)
	d.Mul(d, new(big.Int).SetUint64(nonceTrialsPerByte))
	if d.Sign() == 0 {
		return math.MaxUint64
	}

	t := new(big.Int).Div(two64, d)
	if !t.IsUint64() {
		return math.MaxUint64
	}
	return t.Uint64()
}

// ObjectTarget computes the target for obj as of now.
func ObjectTarget(obj *wire.Object, nonceTrialsPerByte, extraBytes uint64, now time.Time) uint64 {
	ttl := obj.ExpiresTime - now.Unix()
	return Target(len(obj.PayloadBytesWithoutNonce()), ttl, nonceTrialsPerByte, extraBytes)
}

// TrialValue returns the value a nonce achieves against initialHash.
func TrialValue(nonce []byte, initialHash []byte) uint64 {
	buf := make([]byte, 0, wire.NonceSize+len(initialHash))
	buf = append(buf, nonce...)
	buf = append(buf, initialHash...)
	first := sha512.Sum512(buf)
	second := sha512.Sum512(first[:])
	return binary.BigEndian.Uint64(second[:8])
}

// CheckNonce reports whether nonce meets target for initialHash.
func CheckNonce(nonce []byte, initialHash []byte, target uint64) bool {
	return TrialValue(nonce, initialHash) < target
}

// Check verifies obj against the given difficulty, raised to the network
// minimum.
func Check(obj *wire.Object, nonceTrialsPerByte, extraBytes uint64, now time.Time) error {
	if !obj.HasNonce() {
		return fmt.Errorf("%w: no nonce", ErrInsufficientWork)
	}
	if nonceTrialsPerByte < NetworkNonceTrialsPerByte {
		nonceTrialsPerByte = NetworkNonceTrialsPerByte
	}
	if extraBytes < NetworkExtraBytes {
		extraBytes = NetworkExtraBytes
	}

	target := ObjectTarget(obj, nonceTrialsPerByte, extraBytes, now)
	value := TrialValue(obj.Nonce, obj.InitialHash())
	if value >= target {
		return fmt.Errorf("%w: %d >= %d", ErrInsufficientWork, value, target)
	}
	return nil
}
