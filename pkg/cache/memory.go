package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memItem struct {
	data    []byte
	expires time.Time // zero means no expiry
}

func (i memItem) expired(now time.Time) bool {
	return !i.expires.IsZero() && now.After(i.expires)
}

// MemoryStore is an in-process Store. Expired keys are dropped lazily on read.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memItem
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memItem), now: time.Now}
}

func (s *MemoryStore) Driver() string { return "memory" }

func (s *MemoryStore) lookup(key string) (memItem, bool) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return memItem{}, false
	}
	if it.expired(s.now()) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return memItem{}, false
	}
	return it, true
}

func (s *MemoryStore) Get(_ context.Context, key string, dest any) (bool, error) {
	it, ok := s.lookup(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(it.data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if value == nil {
		return ErrNilValue
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	it := memItem{data: data}
	if ttl > 0 {
		it.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = it
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.items, k)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.lookup(key)
	return ok, nil
}
