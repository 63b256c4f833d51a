// Package cache stores ranked recommendations so repeat searches skip the
// follower-network walk.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Its-donkey/raidfinder/internal/ui/model"
)

// Store keeps ranked results keyed by login.
type Store interface {
	// Get reports ok=false on a miss or an expired entry.
	Get(ctx context.Context, key string) (model.Ranked, bool, error)
	Set(ctx context.Context, key string, value model.Ranked, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key normalizes a login into a cache key.
func Key(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

type memoryEntry struct {
	value   model.Ranked
	expires time.Time
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get returns a copy of the cached result.
func (m *Memory) Get(_ context.Context, key string) (model.Ranked, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append(model.Ranked(nil), entry.value...), true, nil
}

// Set stores value. A ttl of zero or less never expires.
func (m *Memory) Set(_ context.Context, key string, value model.Ranked, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: append(model.Ranked(nil), value...)}
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Purge drops expired entries and returns how many remain.
func (m *Memory) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, entry := range m.entries {
		if !entry.expires.IsZero() && !now.Before(entry.expires) {
			delete(m.entries, key)
		}
	}
	return len(m.entries)
}
