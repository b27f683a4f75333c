package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Storage. Every write is broadcast to all
// watchers, including the writer's own.
type MemoryStore struct {
	mutex    sync.RWMutex
	items    map[string]string
	watchers map[int]*subscriber
	nextID   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]string),
		watchers: make(map[int]*subscriber),
	}
}

func (s *MemoryStore) Connect(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

func (s *MemoryStore) Health(ctx context.Context) error { return nil }

func (s *MemoryStore) GetItem(ctx context.Context, key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *MemoryStore) SetItem(ctx context.Context, key, value string) error {
	s.mutex.Lock()
	s.items[key] = value
	s.broadcast(Event{Key: key, Value: value})
	s.mutex.Unlock()
	return nil
}

func (s *MemoryStore) RemoveItem(ctx context.Context, key string) error {
	s.mutex.Lock()
	if _, ok := s.items[key]; ok {
		delete(s.items, key)
		s.broadcast(Event{Key: key, Removed: true})
	}
	s.mutex.Unlock()
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var keys []string
	for key := range s.items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Watch(ctx context.Context) (<-chan Event, error) {
	sub := &subscriber{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
	}

	s.mutex.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = sub
	s.mutex.Unlock()

	go func() {
		sub.pump(ctx)

		s.mutex.Lock()
		delete(s.watchers, id)
		s.mutex.Unlock()
	}()

	return sub.out, nil
}

// broadcast must be called with the write lock held.
func (s *MemoryStore) broadcast(event Event) {
	for _, sub := range s.watchers {
		sub.publish(event)
	}
}

// subscriber queues events without bounds so writers never block on a slow
// or busy reader.
type subscriber struct {
	mutex  sync.Mutex
	queue  []Event
	notify chan struct{}
	out    chan Event
}

func (sub *subscriber) publish(event Event) {
	sub.mutex.Lock()
	sub.queue = append(sub.queue, event)
	sub.mutex.Unlock()

	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

func (sub *subscriber) pump(ctx context.Context) {
	defer close(sub.out)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.notify:
		}

		sub.mutex.Lock()
		pending := sub.queue
		sub.queue = nil
		sub.mutex.Unlock()

		for _, event := range pending {
			select {
			case sub.out <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
