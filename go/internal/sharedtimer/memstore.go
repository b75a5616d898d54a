package sharedtimer

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Like a real change feed it delivers
// every write, including the writer's own, to all subscribers of the key.
// Deliveries are serialized; subscriber callbacks must not write to the
// store synchronously.
type MemoryStore struct {
	mu        sync.Mutex
	values    map[string][]byte
	subs      map[string]map[*memorySubscription]struct{}
	available bool
	writeErr  error

	deliverMu sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:    make(map[string][]byte),
		subs:      make(map[string]map[*memorySubscription]struct{}),
		available: true,
	}
}

func (s *MemoryStore) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// SetAvailable toggles availability.
func (s *MemoryStore) SetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = available
}

// FailWrites makes every following Write return err; nil restores writes.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Get returns a copy of the stored value, nil when absent.
func (s *MemoryStore) Get(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.values[key])
}

func (s *MemoryStore) Subscribe(ctx context.Context, key string, fn func(Notification)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySubscription{store: s, key: key, fn: fn}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if s.subs[key] == nil {
		s.subs[key] = make(map[*memorySubscription]struct{})
	}
	s.subs[key][sub] = struct{}{}
	current := clone(s.values[key])
	s.mu.Unlock()

	fn(Notification{Data: current})
	return sub, nil
}

func (s *MemoryStore) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return err
	}
	s.values[key] = clone(data)
	subs := make([]*memorySubscription, 0, len(s.subs[key]))
	for sub := range s.subs[key] {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(Notification{Data: clone(data)})
	}
	return nil
}

type memorySubscription struct {
	store *MemoryStore
	key   string
	fn    func(Notification)
}

func (m *memorySubscription) Unsubscribe() error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	delete(m.store.subs[m.key], m)
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
