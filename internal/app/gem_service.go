package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claytondukes/dibo-gems/internal/auth"
	"github.com/claytondukes/dibo-gems/internal/clock"
	"github.com/claytondukes/dibo-gems/internal/domain"
	"github.com/claytondukes/dibo-gems/internal/logging"
)

// GemRepository stores gem documents by item key.
type GemRepository interface {
	List(ctx context.Context) ([]domain.GemSummary, error)
	Get(ctx context.Context, key domain.ItemKey) (domain.Gem, error)
	// Put replaces an existing document; it returns domain.ErrGemNotFound
	// when key has never been stored.
	Put(ctx context.Context, key domain.ItemKey, gem domain.Gem) error
	All(ctx context.Context) ([]domain.Gem, error)
}

type GemService struct {
	repo   GemRepository
	locks  LockStore
	clock  clock.Clock
	logger *slog.Logger
}

type GemServiceOption func(*GemService)

func WithGemLogger(l *slog.Logger) GemServiceOption {
	return func(s *GemService) {
		if l != nil {
			s.logger = logging.Component(l, "gem_service")
		}
	}
}

func NewGemService(repo GemRepository, locks LockStore, clk clock.Clock, opts ...GemServiceOption) *GemService {
	svc := &GemService{
		repo:   repo,
		locks:  locks,
		clock:  clk,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *GemService) ListGems(ctx context.Context) ([]domain.GemSummary, error) {
	return s.repo.List(ctx)
}

// GetGem returns the document for key and the live lock on it, if any.
func (s *GemService) GetGem(ctx context.Context, key domain.ItemKey) (domain.Gem, *domain.Lock, error) {
	if key.IsZero() {
		return domain.Gem{}, nil, domain.ErrInvalidItemKey
	}
	gem, err := s.repo.Get(ctx, key)
	if err != nil {
		return domain.Gem{}, nil, err
	}
	if l, ok := s.locks.Get(key); ok {
		return gem, &l, nil
	}
	return gem, nil, nil
}

type UpdateGemInput struct {
	Key      domain.ItemKey
	Identity auth.Identity
	Gem      domain.Gem
	KeepLock bool
}

// UpdateGem writes a new version of a gem. The caller must hold the item's
// lock at the moment of the write; unless KeepLock is set the lock is
// released once the write succeeds.
func (s *GemService) UpdateGem(ctx context.Context, in UpdateGemInput) (domain.Gem, error) {
	if in.Identity.ID == "" {
		return domain.Gem{}, domain.ErrUnauthenticated
	}
	if in.Key.IsZero() {
		return domain.Gem{}, domain.ErrInvalidItemKey
	}
	if err := in.Gem.Validate(); err != nil {
		return domain.Gem{}, err
	}
	bodyKey, err := in.Gem.Key()
	if err != nil {
		return domain.Gem{}, err
	}
	if bodyKey != in.Key {
		return domain.Gem{}, domain.ErrKeyMismatch
	}

	if _, err := s.locks.ConfirmOwner(in.Key, in.Identity.ID); err != nil {
		return domain.Gem{}, err
	}

	gem := in.Gem
	gem.Metadata.LastUpdated = s.clock.Now().UTC().Format(time.RFC3339)

	if err := s.repo.Put(ctx, in.Key, gem); err != nil {
		if errors.Is(err, domain.ErrGemNotFound) {
			return domain.Gem{}, err
		}
		return domain.Gem{}, fmt.Errorf("write gem %s: %w", in.Key, err)
	}
	s.logger.Info("gem updated", "item_key", in.Key.String(), "editor", in.Identity.ID)

	if !in.KeepLock {
		if err := s.locks.Release(in.Key, in.Identity.ID); err != nil {
			s.logger.Warn("release after update failed", "item_key", in.Key.String(), "error", err)
		}
	}
	return gem, nil
}

// Export returns every gem grouped by tier and then by display name.
func (s *GemService) Export(ctx context.Context) (map[domain.Tier]map[string]domain.Gem, error) {
	gems, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Tier]map[string]domain.Gem, len(domain.Tiers))
	for _, g := range gems {
		byName, ok := out[g.Stars]
		if !ok {
			byName = make(map[string]domain.Gem)
			out[g.Stars] = byName
		}
		byName[g.Name] = g
	}
	return out, nil
}
