package cache

import (
	"container/list"
	"context"
	"sync"
)

// MemoryBackend is an LRU-bounded in-process store. Get promotes the
// entry to most-recently-used; Set evicts from the cold end until the
// size bound holds.
type MemoryBackend struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	recency *list.List // front = most recent
}

func NewMemoryBackend(maxSize int) *MemoryBackend {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryBackend{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		recency: list.New(),
	}
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Get(_ context.Context, key string) (*Entry, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	el, ok := b.items[key]
	if !ok {
		return nil, false, nil
	}
	b.recency.MoveToFront(el)
	return el.Value.(*Entry), true, nil
}

func (b *MemoryBackend) Set(_ context.Context, entry *Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if el, ok := b.items[entry.Key]; ok {
		el.Value = entry
		b.recency.MoveToFront(el)
		return nil
	}
	b.items[entry.Key] = b.recency.PushFront(entry)
	for len(b.items) > b.maxSize {
		oldest := b.recency.Back()
		if oldest == nil {
			break
		}
		b.recency.Remove(oldest)
		delete(b.items, oldest.Value.(*Entry).Key)
	}
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if el, ok := b.items[key]; ok {
		b.recency.Remove(el)
		delete(b.items, key)
	}
	return nil
}

func (b *MemoryBackend) Keys(_ context.Context, pattern string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.items))
	for key := range b.items {
		if matchPattern(pattern, key) {
			out = append(out, key)
		}
	}
	return out, nil
}

func (b *MemoryBackend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = make(map[string]*list.Element)
	b.recency.Init()
	return nil
}

func (b *MemoryBackend) Stats(_ context.Context) BackendStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var size int64
	for _, el := range b.items {
		size += int64(len(el.Value.(*Entry).Payload))
	}
	return BackendStats{Backend: "memory", Entries: len(b.items), SizeBytes: size}
}
