package lockstore

import (
	"log/slog"
	"sync"
	"time"

	"github.com/claytondukes/dibo-gems/internal/clock"
	"github.com/claytondukes/dibo-gems/internal/domain"
	"github.com/claytondukes/dibo-gems/internal/logging"
	"github.com/claytondukes/dibo-gems/internal/observability"
)

const (
	// DefaultDuration is how long a lock lives after acquisition or refresh.
	DefaultDuration = 30 * time.Minute
	// DefaultWriteGrace is the minimum lifetime a lock must have left for a write to be confirmed.
	DefaultWriteGrace = 5 * time.Second
)

// Store is the in-memory lock registry. The zero value is not usable; use New.
type Store struct {
	mu    sync.Mutex
	locks map[domain.ItemKey]domain.Lock

	clock    clock.Clock
	duration time.Duration
	grace    time.Duration
	metrics  observability.MetricsCollector
	logger   *slog.Logger
}

type Option func(*Store)

// WithDuration overrides the lock lifetime.
func WithDuration(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.duration = d
		}
	}
}

// WithWriteGrace overrides the minimum remaining lifetime ConfirmOwner requires.
func WithWriteGrace(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.grace = d
		}
	}
}

func WithMetrics(m observability.MetricsCollector) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = logging.Component(l, "lockstore")
		}
	}
}

// New returns an empty store driven by clk.
func New(clk clock.Clock, opts ...Option) *Store {
	s := &Store{
		locks:    make(map[domain.ItemKey]domain.Lock),
		clock:    clk,
		duration: DefaultDuration,
		grace:    DefaultWriteGrace,
		metrics:  observability.NopCollector{},
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Duration is the configured lock lifetime.
func (s *Store) Duration() time.Duration {
	return s.duration
}

// Now reads the store clock.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

// Acquire grants requesterID the lock on key. A live lock already held by
// requesterID is refreshed to a full duration; a live lock held by anyone else
// yields a *domain.LockConflictError describing it.
func (s *Store) Acquire(key domain.ItemKey, requesterID, displayName string) (domain.Lock, error) {
	s.mu.Lock()
	now := s.clock.Now()
	existing, found := s.locks[key]
	expired := found && existing.Expired(now)

	var (
		result  domain.Lock
		outcome string
	)
	switch {
	case !found || expired:
		result = domain.Lock{
			Key:               key,
			HolderID:          requesterID,
			HolderDisplayName: displayName,
			AcquiredAt:        now,
			ExpiresAt:         now.Add(s.duration),
		}
		s.locks[key] = result
		outcome = "acquired"
	case existing.HeldBy(requesterID):
		result = existing
		result.ExpiresAt = now.Add(s.duration)
		if displayName != "" {
			result.HolderDisplayName = displayName
		}
		s.locks[key] = result
		outcome = "refreshed"
	default:
		s.mu.Unlock()
		s.record("lock_acquire_total", "Lock acquisition attempts by outcome", "conflict")
		s.logger.Info("lock conflict",
			"item_key", key.String(),
			"requester", requesterID,
			"holder", existing.HolderID,
			"expires_at", existing.ExpiresAt,
		)
		return domain.Lock{}, &domain.LockConflictError{Lock: existing}
	}
	s.mu.Unlock()

	if expired {
		s.recordExpired(1)
	}
	s.record("lock_acquire_total", "Lock acquisition attempts by outcome", outcome)
	s.logger.Info("lock "+outcome,
		"item_key", key.String(),
		"holder", requesterID,
		"expires_at", result.ExpiresAt,
	)
	return result, nil
}

// Release drops requesterID's lock on key. Releasing an absent or expired
// lock succeeds; releasing someone else's live lock returns domain.ErrNotLockOwner
// and leaves it in place.
func (s *Store) Release(key domain.ItemKey, requesterID string) error {
	s.mu.Lock()
	now := s.clock.Now()
	existing, found := s.locks[key]

	var outcome string
	switch {
	case !found:
		outcome = "absent"
	case existing.Expired(now):
		delete(s.locks, key)
		outcome = "absent"
	case !existing.HeldBy(requesterID):
		s.mu.Unlock()
		s.record("lock_release_total", "Lock release attempts by outcome", "not_owner")
		s.logger.Warn("release by non-owner rejected",
			"item_key", key.String(),
			"requester", requesterID,
			"holder", existing.HolderID,
		)
		return domain.ErrNotLockOwner
	default:
		delete(s.locks, key)
		outcome = "released"
	}
	s.mu.Unlock()

	if found && outcome == "absent" {
		s.recordExpired(1)
	}
	s.record("lock_release_total", "Lock release attempts by outcome", outcome)
	if outcome == "released" {
		s.logger.Info("lock released", "item_key", key.String(), "holder", requesterID)
	}
	return nil
}

// QueryAll returns a snapshot of every live lock. Expired records found
// along the way are removed.
func (s *Store) QueryAll() map[domain.ItemKey]domain.Lock {
	s.mu.Lock()
	now := s.clock.Now()
	out := make(map[domain.ItemKey]domain.Lock, len(s.locks))
	removed := 0
	for key, l := range s.locks {
		if l.Expired(now) {
			delete(s.locks, key)
			removed++
			continue
		}
		out[key] = l
	}
	s.mu.Unlock()

	s.recordExpired(removed)
	return out
}

// Get returns the live lock on key, if any.
func (s *Store) Get(key domain.ItemKey) (domain.Lock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok || l.Expired(s.clock.Now()) {
		return domain.Lock{}, false
	}
	return l, true
}

// IsLockedByOther reports whether a live lock on key is held by someone other than requesterID.
func (s *Store) IsLockedByOther(key domain.ItemKey, requesterID string) bool {
	l, ok := s.Get(key)
	return ok && !l.HeldBy(requesterID)
}

// ConfirmOwner re-validates, at write time, that requesterID still holds key.
// A lock with no more than the write grace left is reported as not held, so a
// write never starts against a lock that may lapse before it completes.
func (s *Store) ConfirmOwner(key domain.ItemKey, requesterID string) (domain.Lock, error) {
	s.mu.Lock()
	now := s.clock.Now()
	l, ok := s.locks[key]
	s.mu.Unlock()

	switch {
	case !ok || l.Expired(now):
		s.record("lock_write_check_total", "Write-time ownership checks by outcome", "not_held")
		return domain.Lock{}, domain.ErrLockNotHeld
	case !l.HeldBy(requesterID):
		s.record("lock_write_check_total", "Write-time ownership checks by outcome", "conflict")
		return domain.Lock{}, &domain.LockConflictError{Lock: l}
	case l.Remaining(now) <= s.grace:
		s.record("lock_write_check_total", "Write-time ownership checks by outcome", "expiring")
		return domain.Lock{}, domain.ErrLockNotHeld
	}
	s.record("lock_write_check_total", "Write-time ownership checks by outcome", "confirmed")
	return l, nil
}

// ForceRelease removes the live lock on key regardless of holder and returns
// it. Callers are responsible for checking the caller may do this.
func (s *Store) ForceRelease(key domain.ItemKey) (domain.Lock, bool) {
	s.mu.Lock()
	l, ok := s.locks[key]
	if ok {
		delete(s.locks, key)
	}
	live := ok && !l.Expired(s.clock.Now())
	s.mu.Unlock()

	if !live {
		if ok {
			s.recordExpired(1)
		}
		return domain.Lock{}, false
	}
	s.record("lock_release_total", "Lock release attempts by outcome", "forced")
	s.logger.Warn("lock force-released", "item_key", key.String(), "holder", l.HolderID)
	return l, true
}

// Sweep removes expired records and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	now := s.clock.Now()
	removed := 0
	for key, l := range s.locks {
		if l.Expired(now) {
			delete(s.locks, key)
			removed++
		}
	}
	s.mu.Unlock()

	s.recordExpired(removed)
	return removed
}

func (s *Store) record(name, help, outcome string) {
	s.metrics.Collect(observability.Metric{
		Name:        name,
		Type:        observability.MetricCounter,
		Value:       1,
		Labels:      map[string]string{"outcome": outcome},
		Description: help,
	})
}

func (s *Store) recordExpired(n int) {
	if n <= 0 {
		return
	}
	s.metrics.Collect(observability.Metric{
		Name:        "lock_expired_total",
		Type:        observability.MetricCounter,
		Value:       float64(n),
		Description: "Expired lock records removed from the registry",
	})
}
