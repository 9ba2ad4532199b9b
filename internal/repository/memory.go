package repository

import (
	"context"
	"sync"
	"time"
)

type idempotencyEntry struct {
	bookingID string
	expiresAt time.Time
}

// MemoryIdempotencyStore is the process-local fallback for idempotency keys.
type MemoryIdempotencyStore struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{ttl: ttl, now: time.Now}
}

func (r *MemoryIdempotencyStore) Get(_ context.Context, key string) (string, bool, error) {
	val, ok := r.entries.Load(key)
	if !ok {
		return "", false, nil
	}
	entry := val.(idempotencyEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.entries.CompareAndDelete(key, val)
		return "", false, nil
	}
	return entry.bookingID, true, nil
}

func (r *MemoryIdempotencyStore) Put(ctx context.Context, key, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok, _ := r.Get(ctx, key); ok {
		return nil
	}
	r.entries.Store(key, idempotencyEntry{bookingID: bookingID, expiresAt: r.now().Add(r.ttl)})
	return nil
}

// Purge drops expired keys and returns how many were removed.
func (r *MemoryIdempotencyStore) Purge() int {
	now := r.now()
	removed := 0
	r.entries.Range(func(key, val interface{}) bool {
		if r.ttl > 0 && now.After(val.(idempotencyEntry).expiresAt) {
			r.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
