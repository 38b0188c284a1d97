package revocation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked id is reported revoked", func(t *testing.T) {
		registry := NewMemoryRegistry()

		if err := registry.Revoke(ctx, "token-1", time.Hour); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		revoked, err := registry.IsRevoked(ctx, "token-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !revoked {
			t.Fatal("expected token-1 to be revoked")
		}
	})

	t.Run("unknown id is not revoked", func(t *testing.T) {
		registry := NewMemoryRegistry()

		revoked, err := registry.IsRevoked(ctx, "never-seen")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if revoked {
			t.Fatal("expected unknown id to not be revoked")
		}
	})

	t.Run("entries lapse with the token lifetime", func(t *testing.T) {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		registry := NewMemoryRegistryWithClock(func() time.Time { return now })

		if err := registry.Revoke(ctx, "token-1", 2*time.Hour); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		now = now.Add(time.Hour)
		revoked, err := registry.IsRevoked(ctx, "token-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !revoked {
			t.Fatal("entry should still be live halfway through the token lifetime")
		}

		now = now.Add(2 * time.Hour)
		revoked, err = registry.IsRevoked(ctx, "token-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if revoked {
			t.Fatal("entry should have lapsed with the token")
		}
	})

	t.Run("already expired tokens are held briefly", func(t *testing.T) {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		registry := NewMemoryRegistryWithClock(func() time.Time { return now })

		// Negative remaining lifetime; the registry floors it so a
		// just-revoked token cannot slip through on clock skew.
		if err := registry.Revoke(ctx, "token-1", -time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		revoked, err := registry.IsRevoked(ctx, "token-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !revoked {
			t.Fatal("expected entry to be held for the minimum window")
		}
	})

	t.Run("revoke prunes lapsed entries", func(t *testing.T) {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		registry := NewMemoryRegistryWithClock(func() time.Time { return now })

		if err := registry.Revoke(ctx, "old", time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		now = now.Add(time.Hour)
		if err := registry.Revoke(ctx, "new", time.Hour); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		registry.mutex.RLock()
		_, oldPresent := registry.entries["old"]
		registry.mutex.RUnlock()
		if oldPresent {
			t.Fatal("expected lapsed entry to be pruned")
		}
	})

	t.Run("safe under concurrent use", func(t *testing.T) {
		registry := NewMemoryRegistry()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			id := fmt.Sprintf("token-%d", i)
			go func() {
				defer wg.Done()
				if err := registry.Revoke(ctx, id, time.Hour); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}()
			go func() {
				defer wg.Done()
				if _, err := registry.IsRevoked(ctx, id); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		for i := 0; i < 50; i++ {
			revoked, err := registry.IsRevoked(ctx, fmt.Sprintf("token-%d", i))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !revoked {
				t.Fatalf("token-%d should be revoked", i)
			}
		}
	})
}
