package app

import (
	"context"
	"log/slog"
	"strings"

	"github.com/claytondukes/dibo-gems/internal/auth"
	"github.com/claytondukes/dibo-gems/internal/domain"
	"github.com/claytondukes/dibo-gems/internal/logging"
)

// LockStore is the subset of the lock registry the services depend on.
type LockStore interface {
	Acquire(key domain.ItemKey, requesterID, displayName string) (domain.Lock, error)
	Release(key domain.ItemKey, requesterID string) error
	QueryAll() map[domain.ItemKey]domain.Lock
	Get(key domain.ItemKey) (domain.Lock, bool)
	ConfirmOwner(key domain.ItemKey, requesterID string) (domain.Lock, error)
	ForceRelease(key domain.ItemKey) (domain.Lock, bool)
}

type LockService struct {
	store  LockStore
	admins map[string]struct{}
	logger *slog.Logger
}

type LockServiceOption func(*LockService)

// WithAdmins sets the identities allowed to force-release locks.
func WithAdmins(ids []string) LockServiceOption {
	return func(s *LockService) {
		for _, id := range ids {
			id = strings.ToLower(strings.TrimSpace(id))
			if id != "" {
				s.admins[id] = struct{}{}
			}
		}
	}
}

func WithLockLogger(l *slog.Logger) LockServiceOption {
	return func(s *LockService) {
		if l != nil {
			s.logger = logging.Component(l, "lock_service")
		}
	}
}

func NewLockService(store LockStore, opts ...LockServiceOption) *LockService {
	svc := &LockService{
		store:  store,
		admins: make(map[string]struct{}),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Acquire takes or refreshes the caller's lock on key.
func (s *LockService) Acquire(ctx context.Context, id auth.Identity, key domain.ItemKey) (domain.Lock, error) {
	if id.ID == "" {
		return domain.Lock{}, domain.ErrUnauthenticated
	}
	if key.IsZero() {
		return domain.Lock{}, domain.ErrInvalidItemKey
	}
	return s.store.Acquire(key, id.ID, id.Label())
}

// Release drops the caller's lock on key. It reports whether a live lock was
// removed; releasing nothing is not an error.
func (s *LockService) Release(ctx context.Context, id auth.Identity, key domain.ItemKey) (bool, error) {
	if id.ID == "" {
		return false, domain.ErrUnauthenticated
	}
	if key.IsZero() {
		return false, domain.ErrInvalidItemKey
	}
	_, held := s.store.Get(key)
	if err := s.store.Release(key, id.ID); err != nil {
		return false, err
	}
	return held, nil
}

// List returns every live lock.
func (s *LockService) List(ctx context.Context) map[domain.ItemKey]domain.Lock {
	return s.store.QueryAll()
}

// IsAdmin reports whether id may use administrative overrides.
func (s *LockService) IsAdmin(id auth.Identity) bool {
	_, ok := s.admins[strings.ToLower(id.ID)]
	return ok
}

// ForceRelease removes whatever live lock exists on key. Only admins may call it.
func (s *LockService) ForceRelease(ctx context.Context, admin auth.Identity, key domain.ItemKey) (domain.Lock, bool, error) {
	if admin.ID == "" {
		return domain.Lock{}, false, domain.ErrUnauthenticated
	}
	if !s.IsAdmin(admin) {
		s.logger.Warn("force release denied", "item_key", key.String(), "requester", admin.ID)
		return domain.Lock{}, false, domain.ErrForbidden
	}
	if key.IsZero() {
		return domain.Lock{}, false, domain.ErrInvalidItemKey
	}
	lock, released := s.store.ForceRelease(key)
	s.logger.Info("force release",
		"item_key", key.String(),
		"admin", admin.ID,
		"released", released,
		"previous_holder", lock.HolderID,
	)
	return lock, released, nil
}
