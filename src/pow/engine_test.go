package pow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/crypto"
)

func TestMultiCoreEngine(t *testing.T) {
	initialHash := crypto.Sha512([]byte("multi core"))
	target := uint64(1) << 52

	for _, workers := range []int{1, 2, 7, 300} {
		e := NewMultiCoreEngine(workers)
		if e.Workers > MaxWorkers {
			t.Fatalf("workers should be capped at %d, got %d", MaxWorkers, e.Workers)
		}
		nonce, err := e.Calculate(context.Background(), initialHash, target)
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if !CheckNonce(nonce, initialHash, target) {
			t.Fatalf("%d workers: nonce does not meet target", workers)
		}
	}
}

func TestEngineCancel(t *testing.T) {
	initialHash := crypto.Sha512([]byte("unreachable"))

	engines := map[string]Engine{
		"simple":     SimpleEngine{},
		"multi-core": NewMultiCoreEngine(4),
	}
	for name, e := range engines {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := e.Calculate(ctx, initialHash, 0)
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("%s: expected DeadlineExceeded, got %v", name, err)
		}
	}
}

func TestEnginePartitions(t *testing.T) {
	initialHash := crypto.Sha512([]byte("partitions"))

	// Every trial meets the maximum target, so worker i returns i.
	nonce, ok := search(context.Background(), initialHash, ^uint64(0), 5, 7)
	if !ok {
		t.Fatalf("search should succeed")
	}
	if nonce[7] != 5 {
		t.Fatalf("expected nonce 5, got %v", nonce)
	}
}
