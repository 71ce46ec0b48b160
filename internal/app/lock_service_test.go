package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/claytondukes/dibo-gems/internal/auth"
	"github.com/claytondukes/dibo-gems/internal/clock"
	"github.com/claytondukes/dibo-gems/internal/domain"
	"github.com/claytondukes/dibo-gems/internal/lockstore"
)

func TestLockService(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	key := mustKey(2, "Berserker's Eye")
	admin := auth.Identity{ID: "root@example.com", DisplayName: "Root"}

	makeSvc := func() (*LockService, *lockstore.Store) {
		store := lockstore.New(clock.NewFixed(now))
		return NewLockService(store, WithAdmins([]string{" Root@Example.com "})), store
	}

	t.Run("acquire uses display name", func(t *testing.T) {
		svc, _ := makeSvc()
		lock, err := svc.Acquire(context.Background(), alice, key)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if lock.HolderDisplayName != "Alice" || lock.HolderID != alice.ID {
			t.Fatalf("unexpected lock %+v", lock)
		}
	})

	t.Run("acquire falls back to id for display", func(t *testing.T) {
		svc, _ := makeSvc()
		lock, err := svc.Acquire(context.Background(), auth.Identity{ID: "carol@example.com"}, key)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if lock.HolderDisplayName != "carol@example.com" {
			t.Fatalf("expected id as display name, got %q", lock.HolderDisplayName)
		}
	})

	t.Run("anonymous acquire rejected", func(t *testing.T) {
		svc, _ := makeSvc()
		if _, err := svc.Acquire(context.Background(), auth.Identity{}, key); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("release reports whether anything was held", func(t *testing.T) {
		svc, _ := makeSvc()
		released, err := svc.Release(context.Background(), alice, key)
		if err != nil || released {
			t.Fatalf("expected no-op release, got %v %v", released, err)
		}
		if _, err := svc.Acquire(context.Background(), alice, key); err != nil {
			t.Fatalf("acquire: %v", err)
		}
		released, err = svc.Release(context.Background(), alice, key)
		if err != nil || !released {
			t.Fatalf("expected release, got %v %v", released, err)
		}
	})

	t.Run("release by other user", func(t *testing.T) {
		svc, _ := makeSvc()
		if _, err := svc.Acquire(context.Background(), alice, key); err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if _, err := svc.Release(context.Background(), bob, key); !errors.Is(err, domain.ErrNotLockOwner) {
			t.Fatalf("expected ErrNotLockOwner, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		svc, _ := makeSvc()
		if _, err := svc.Acquire(context.Background(), alice, key); err != nil {
			t.Fatalf("acquire: %v", err)
		}
		locks := svc.List(context.Background())
		if len(locks) != 1 || locks[key].HolderID != alice.ID {
			t.Fatalf("unexpected locks %v", locks)
		}
	})

	t.Run("force release requires admin", func(t *testing.T) {
		svc, store := makeSvc()
		if _, err := svc.Acquire(context.Background(), alice, key); err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if _, _, err := svc.ForceRelease(context.Background(), bob, key); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if _, ok := store.Get(key); !ok {
			t.Fatalf("expected lock untouched")
		}

		lock, released, err := svc.ForceRelease(context.Background(), admin, key)
		if err != nil || !released {
			t.Fatalf("expected forced release, got %v %v", released, err)
		}
		if lock.HolderID != alice.ID {
			t.Fatalf("expected removed lock to be alice's, got %+v", lock)
		}
		if _, ok := store.Get(key); ok {
			t.Fatalf("expected lock removed")
		}
	})

	t.Run("force release of nothing", func(t *testing.T) {
		svc, _ := makeSvc()
		_, released, err := svc.ForceRelease(context.Background(), admin, key)
		if err != nil || released {
			t.Fatalf("expected nothing released, got %v %v", released, err)
		}
	})
}
