package store

import (
	"sort"
	"sync"

	cm "github.com/mosaicnetworks/murmur/src/common"
)

// InmemProofOfWorkQueue implements ProofOfWorkQueue in memory.
type InmemProofOfWorkQueue struct {
	mu    sync.Mutex
	items map[string]*WorkItem
}

// NewInmemProofOfWorkQueue ...
func NewInmemProofOfWorkQueue() *InmemProofOfWorkQueue {
	return &InmemProofOfWorkQueue{
		items: make(map[string]*WorkItem),
	}
}

// Put implements ProofOfWorkQueue.
func (q *InmemProofOfWorkQueue) Put(item *WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[hashKey(item.Object.InitialHash())] = item
	return nil
}

// Get implements ProofOfWorkQueue.
func (q *InmemProofOfWorkQueue) Get(initialHash []byte) (*WorkItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := hashKey(initialHash)
	item, ok := q.items[key]
	if !ok {
		return nil, cm.NewStoreErr("ProofOfWorkQueue", cm.KeyNotFound, key)
	}
	return item, nil
}

// Remove implements ProofOfWorkQueue.
func (q *InmemProofOfWorkQueue) Remove(initialHash []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := hashKey(initialHash)
	if _, ok := q.items[key]; !ok {
		return cm.NewStoreErr("ProofOfWorkQueue", cm.KeyNotFound, key)
	}
	delete(q.items, key)
	return nil
}

// ListPending implements ProofOfWorkQueue.
func (q *InmemProofOfWorkQueue) ListPending() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	res := make([][]byte, 0, len(q.items))
	for _, item := range q.items {
		res = append(res, item.Object.InitialHash())
	}
	sort.Slice(res, func(i, j int) bool { return hashKey(res[i]) < hashKey(res[j]) })
	return res
}

// InmemMessageRepository implements MessageRepository in memory.
type InmemMessageRepository struct {
	mu       sync.Mutex
	messages map[string]*Message
}

// NewInmemMessageRepository ...
func NewInmemMessageRepository() *InmemMessageRepository {
	return &InmemMessageRepository{
		messages: make(map[string]*Message),
	}
}

// GetMessage implements MessageRepository.
func (r *InmemMessageRepository) GetMessage(initialHash []byte) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := hashKey(initialHash)
	m, ok := r.messages[key]
	if !ok {
		return nil, cm.NewStoreErr("MessageRepository", cm.KeyNotFound, key)
	}
	return m, nil
}

// SaveMessage implements MessageRepository. Messages are keyed by their
// initial hash, which must be set.
func (r *InmemMessageRepository) SaveMessage(m *Message) error {
	if len(m.InitialHash) == 0 {
		return cm.NewStoreErr("MessageRepository", cm.Empty, "initial hash")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[hashKey(m.InitialHash)] = m
	return nil
}
