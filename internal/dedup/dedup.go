// Package dedup implements the bounded seen-set used to suppress spots that
// were already delivered.
package dedup

import (
	"container/list"
	"context"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"
)

// Store decides whether a key is seen for the first time. Implementations
// insert the key when it is new and must never report the same key as new
// twice while it is retained.
type Store interface {
	IsNew(ctx context.Context, key string) (bool, error)
}

// Key derives a dedup key from the identifying parts of an event.
func Key(parts ...string) string {
	h := xxh3.HashString128(strings.Join(parts, "|")).Bytes()
	return hex.EncodeToString(h[:])
}

// Memory is an in-process Store with a fixed capacity. When the capacity is
// exceeded the oldest inserted keys are evicted first.
type Memory struct {
	mu    sync.Mutex
	limit int
	order *list.List
	index map[string]*list.Element
}

// NewMemory creates a Memory store holding at most limit keys.
// A limit below 1 is treated as 1.
func NewMemory(limit int) *Memory {
	if limit < 1 {
		limit = 1
	}
	return &Memory{
		limit: limit,
		order: list.New(),
		index: make(map[string]*list.Element, limit),
	}
}

// IsNew reports whether key was not retained yet and records it. The error is
// always nil.
func (m *Memory) IsNew(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[key]; ok {
		return false, nil
	}
	m.index[key] = m.order.PushBack(key)

	for m.order.Len() > m.limit {
		oldest := m.order.Front()
		m.order.Remove(oldest)
		delete(m.index, oldest.Value.(string))
	}
	return true, nil
}

// Len returns the number of retained keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Keys returns the retained keys from oldest to newest.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, m.order.Len())
	for e := m.order.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(string))
	}
	return keys
}
