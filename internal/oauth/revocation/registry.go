package revocation

import (
	"context"
	"sync"
	"time"
)

// Registry tracks unique token ids that must be treated as invalid even
// though their signature and expiry would otherwise still pass. Revocation
// and validation run concurrently, so implementations must be safe for
// concurrent use.
type Registry interface {
	// Revoke marks a token id as revoked. ttl is the token's remaining
	// lifetime; entries past it are moot and may be dropped.
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error

	// IsRevoked reports whether a token id has been revoked.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// minEntryTTL keeps already-expired tokens in the registry briefly, covering
// clock skew between the revoker and later validators.
const minEntryTTL = time.Minute

// MemoryRegistry is a process-local registry guarded by a mutex. Entries
// expire with the token they belong to and are pruned lazily.
type MemoryRegistry struct {
	mutex   sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// NewMemoryRegistryWithClock is like NewMemoryRegistry but with an
// injectable clock for tests.
func NewMemoryRegistryWithClock(now func() time.Time) *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

func (r *MemoryRegistry) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl < minEntryTTL {
		ttl = minEntryTTL
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.entries[tokenID] = r.now().Add(ttl)
	r.pruneLocked()
	return nil
}

func (r *MemoryRegistry) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mutex.RLock()
	expiresAt, ok := r.entries[tokenID]
	r.mutex.RUnlock()

	if !ok {
		return false, nil
	}

	if r.now().After(expiresAt) {
		r.mutex.Lock()
		delete(r.entries, tokenID)
		r.mutex.Unlock()
		return false, nil
	}

	return true, nil
}

// pruneLocked drops expired entries. Callers must hold the write lock.
func (r *MemoryRegistry) pruneLocked() {
	now := r.now()
	for id, expiresAt := range r.entries {
		if now.After(expiresAt) {
			delete(r.entries, id)
		}
	}
}
