package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"feedpos/backend/internal/pos"
)

var ErrCartNotFound = errors.New("cart not found")

// CartStore keeps in-progress checkout carts between requests. Get returns
// ErrCartNotFound once a cart is deleted or its TTL lapses.
type CartStore interface {
	Get(ctx context.Context, id string) (*pos.Cart, error)
	Save(ctx context.Context, cart *pos.Cart, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCartStore is the in-process CartStore used when no Redis is configured.
type MemoryCartStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

func (m *MemoryCartStore) Get(_ context.Context, id string) (*pos.Cart, error) {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if ok && !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, id)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrCartNotFound
	}
	return decodeCart(entry.payload)
}

func (m *MemoryCartStore) Save(_ context.Context, cart *pos.Cart, ttl time.Duration) error {
	payload, err := encodeCart(cart)
	if err != nil {
		return err
	}
	entry := memoryEntry{payload: payload}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	m.entries[cart.ID] = entry
	return nil
}

func (m *MemoryCartStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// sweep drops expired carts; callers hold mu.
func (m *MemoryCartStore) sweep() {
	now := m.now()
	for id, entry := range m.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(m.entries, id)
		}
	}
}
