package net

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrPoolExhausted is returned by TryGet when every buffer of the size
	// class is in use.
	ErrPoolExhausted = errors.New("buffer pool exhausted")
	// ErrPoolClosed is returned by Get and TryGet after Close.
	ErrPoolClosed = errors.New("buffer pool closed")
)

// Standard buffer sizes.
const (
	SmallBuffer = 4 * 1024
	LargeBuffer = 64 * 1024
)

type sizeClass struct {
	size      int
	max       int
	allocated int
	free      chan []byte
}

// BufferPool hands out byte slices of a few fixed sizes. Each size class
// holds at most a fixed number of buffers; once they are all in use, Get
// blocks and TryGet fails rather than allocating more.
type BufferPool struct {
	mu      sync.Mutex
	classes []*sizeClass
	closed  chan struct{}
	once    sync.Once
}

// NewBufferPool creates a pool with one class per entry of capacity, mapping
// buffer size to the maximum number of buffers of that size.
func NewBufferPool(capacity map[int]int) *BufferPool {
	p := &BufferPool{closed: make(chan struct{})}
	for size, max := range capacity {
		p.classes = append(p.classes, &sizeClass{
			size: size,
			max:  max,
			free: make(chan []byte, max),
		})
	}
	sort.Slice(p.classes, func(i, j int) bool { return p.classes[i].size < p.classes[j].size })
	return p
}

// NewDefaultBufferPool sizes the pool for maxConns concurrent connections.
func NewDefaultBufferPool(maxConns int) *BufferPool {
	if maxConns < 1 {
		maxConns = 1
	}
	return NewBufferPool(map[int]int{
		SmallBuffer: 4 * maxConns,
		LargeBuffer: maxConns,
	})
}

func (p *BufferPool) class(size int) (*sizeClass, error) {
	for _, c := range p.classes {
		if size <= c.size {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no buffer class holds %d bytes", size)
}

// take returns a free or newly allocated buffer, or nil if the class is at
// capacity.
func (p *BufferPool) take(c *sizeClass) []byte {
	select {
	case b := <-c.free:
		return b
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c.allocated < c.max {
		c.allocated++
		return make([]byte, c.size)
	}
	return nil
}

// TryGet returns a buffer of at least size bytes without blocking.
func (p *BufferPool) TryGet(size int) ([]byte, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}

	c, err := p.class(size)
	if err != nil {
		return nil, err
	}
	if b := p.take(c); b != nil {
		return b, nil
	}
	return nil, ErrPoolExhausted
}

// Get returns a buffer of at least size bytes, waiting for one to be released
// if the class is at capacity.
func (p *BufferPool) Get(ctx context.Context, size int) ([]byte, error) {
	b, err := p.TryGet(size)
	if err != ErrPoolExhausted {
		return b, err
	}

	c, _ := p.class(size)
	select {
	case b := <-c.free:
		return b, nil
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns a buffer obtained from Get or TryGet. Buffers of a size the
// pool does not manage are dropped.
func (p *BufferPool) Put(b []byte) {
	b = b[:cap(b)]
	for _, c := range p.classes {
		if len(b) == c.size {
			select {
			case c.free <- b:
			default:
			}
			return
		}
	}
}

// Close wakes every blocked Get. Later calls fail with ErrPoolClosed.
func (p *BufferPool) Close() {
	p.once.Do(func() { close(p.closed) })
}

// Stats returns, per size class, the number of buffers allocated so far.
func (p *BufferPool) Stats() map[int]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := make(map[int]int, len(p.classes))
	for _, c := range p.classes {
		res[c.size] = c.allocated
	}
	return res
}
