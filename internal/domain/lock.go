package domain

import "time"

// Lock grants one identity exclusive edit rights on an item until ExpiresAt.
type Lock struct {
	Key               ItemKey
	HolderID          string
	HolderDisplayName string
	AcquiredAt        time.Time
	ExpiresAt         time.Time
}

// Expired reports whether the lock no longer counts at now.
// A lock expiring exactly at now is expired.
func (l Lock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// Remaining is the time left before expiry, never negative.
func (l Lock) Remaining(now time.Time) time.Duration {
	if l.Expired(now) {
		return 0
	}
	return l.ExpiresAt.Sub(now)
}

// HeldBy reports whether id owns the lock. Expiry is not considered.
func (l Lock) HeldBy(id string) bool {
	return l.HolderID == id
}
