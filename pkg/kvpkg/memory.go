package kvpkg

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryItem struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process Store used as a test double. Production code
// must use Redis so that all worker instances observe the same counters.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem

	// Now is overridable in tests to control window expiry.
	Now func() time.Time
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryItem),
		Now:   time.Now,
	}
}

func (m *Memory) get(key string) (memoryItem, bool) {
	item, ok := m.items[key]
	if !ok {
		return memoryItem{}, false
	}

	if !item.expiresAt.IsZero() && m.Now().After(item.expiresAt) {
		delete(m.items, key)
		return memoryItem{}, false
	}

	return item, true
}

// Get returns the value stored under key.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.get(key)
	if !ok {
		return "", ErrNotFound
	}

	return item.value, nil
}

// SetEx stores value under key with the given ttl.
func (m *Memory) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = memoryItem{value: value, expiresAt: m.Now().Add(ttl)}

	return nil
}

// Incr atomically increments the counter under key and returns the new count.
func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := int64(0)

	if item, ok := m.get(key); ok {
		parsed, err := strconv.ParseInt(item.value, 10, 64)
		if err != nil {
			return 0, err
		}

		count = parsed
	}

	count++

	item := m.items[key]
	item.value = strconv.FormatInt(count, 10)
	m.items[key] = item

	return count, nil
}

// Expire sets the ttl of an existing key.
func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.get(key)
	if !ok {
		return ErrNotFound
	}

	item.expiresAt = m.Now().Add(ttl)
	m.items[key] = item

	return nil
}
