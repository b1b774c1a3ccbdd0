package pow

import (
	"context"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mosaicnetworks/murmur/src/wire"
)

// MaxWorkers caps the number of partitions the nonce space is split into.
const MaxWorkers = 255

// ErrExhausted is returned when no nonce meets the target.
var ErrExhausted = errors.New("nonce space exhausted")

// cancellation is polled every checkInterval trials.
const checkInterval = 1 << 14

// Engine searches for a nonce whose trial value against initialHash is below
// target. Calculate blocks until a nonce is found or ctx is cancelled.
type Engine interface {
	Calculate(ctx context.Context, initialHash []byte, target uint64) ([]byte, error)
}

// MultiCoreEngine splits the nonce space across Workers goroutines. Worker i
// tries i, i+n, i+2n... The first worker to succeed cancels its siblings.
type MultiCoreEngine struct {
	Workers int
}

// NewMultiCoreEngine returns an engine with the given number of workers. Zero
// or less means one per CPU.
func NewMultiCoreEngine(workers int) *MultiCoreEngine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}
	return &MultiCoreEngine{Workers: workers}
}

// Calculate implements Engine.
func (e *MultiCoreEngine) Calculate(ctx context.Context, initialHash []byte, target uint64) ([]byte, error) {
	n := e.Workers
	if n < 1 {
		n = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan []byte, 1)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		start := uint64(i)
		g.Go(func() error {
			nonce, ok := search(gctx, initialHash, target, start, uint64(n))
			if !ok {
				return nil
			}
			select {
			case found <- nonce:
				cancel()
			default:
			}
			return nil
		})
	}
	g.Wait()

	select {
	case nonce := <-found:
		return nonce, nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrExhausted
}

// SimpleEngine searches on the calling goroutine.
type SimpleEngine struct{}

// Calculate implements Engine.
func (SimpleEngine) Calculate(ctx context.Context, initialHash []byte, target uint64) ([]byte, error) {
	nonce, ok := search(ctx, initialHash, target, 0, 1)
	if ok {
		return nonce, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrExhausted
}

// search walks start, start+step, ... until a trial value is below target,
// ctx is done or the partition wraps around.
func search(ctx context.Context, initialHash []byte, target uint64, start, step uint64) ([]byte, bool) {
	buf := make([]byte, wire.NonceSize+len(initialHash))
	copy(buf[wire.NonceSize:], initialHash)

	var i uint64
	for nonce := start; ; nonce += step {
		if i%checkInterval == 0 && ctx.Err() != nil {
			return nil, false
		}
		i++

		binary.BigEndian.PutUint64(buf, nonce)
		first := sha512.Sum512(buf)
		second := sha512.Sum512(first[:])
		if binary.BigEndian.Uint64(second[:8]) < target {
			return append([]byte(nil), buf[:wire.NonceSize]...), true
		}

		if nonce+step < nonce {
			return nil, false
		}
	}
}
