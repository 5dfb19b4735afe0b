package audit

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryRecorder keeps entries in process. Used in development and tests.
type MemoryRecorder struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{entries: make(map[string][]Entry)}
}

func (m *MemoryRecorder) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Listeners may run on several workers, so arrival order is not event
	// order. Keep each subject sorted by At; ties stay in arrival order.
	list := m.entries[e.Subject]
	i := sort.Search(len(list), func(i int) bool { return list[i].At.After(e.At) })
	m.entries[e.Subject] = slices.Insert(list, i, e)
	return nil
}

// History returns the oldest limit entries of subject, ordered by At.
func (m *MemoryRecorder) History(_ context.Context, subject string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.entries[subject]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return append([]Entry{}, all...), nil
}

func (m *MemoryRecorder) Close(context.Context) error { return nil }
