package net

import (
	"context"
	"testing"
	"time"
)

func TestBufferPoolSizeClasses(t *testing.T) {
	p := NewBufferPool(map[int]int{16: 2, 64: 1})

	b, err := p.TryGet(10)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(b) != 16 {
		t.Fatalf("expected a 16 byte buffer, got %d", len(b))
	}

	b, err = p.TryGet(17)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(b) != 64 {
		t.Fatalf("expected a 64 byte buffer, got %d", len(b))
	}

	if _, err := p.TryGet(65); err == nil {
		t.Fatalf("no class should serve 65 bytes")
	}
}

func TestBufferPoolExhaustion(t *testing.T) {
	p := NewBufferPool(map[int]int{16: 2})

	a, _ := p.TryGet(16)
	if _, err := p.TryGet(16); err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, err := p.TryGet(16); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}

	// a blocked Get is served by Put
	done := make(chan []byte)
	go func() {
		b, err := p.Get(context.Background(), 16)
		if err != nil {
			t.Errorf("err: %v", err)
		}
		done <- b
	}()

	time.Sleep(10 * time.Millisecond)
	p.Put(a[:3])

	select {
	case b := <-done:
		if len(b) != 16 {
			t.Fatalf("expected a full length buffer, got %d", len(b))
		}
	case <-time.After(time.Second):
		t.Fatalf("Get was not woken by Put")
	}

	if stats := p.Stats(); stats[16] != 2 {
		t.Fatalf("pool should never allocate past its cap: %v", stats)
	}
}

func TestBufferPoolCancelAndClose(t *testing.T) {
	p := NewBufferPool(map[int]int{16: 1})
	p.TryGet(16)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Get(ctx, 16); err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}

	done := make(chan error)
	go func() {
		_, err := p.Get(context.Background(), 16)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-done:
		if err != ErrPoolClosed {
			t.Fatalf("expected ErrPoolClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Get was not woken by Close")
	}

	if _, err := p.TryGet(16); err != ErrPoolClosed {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}
