package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrLockConflict    = errors.New("item is locked by another user")
	ErrNotLockOwner    = errors.New("lock is held by another user")
	ErrLockNotHeld     = errors.New("lock not held")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidItemKey  = errors.New("invalid item key")
	ErrInvalidTier     = errors.New("invalid tier")
	ErrGemNotFound     = errors.New("gem not found")
	ErrInvalidGem      = errors.New("invalid gem")
	ErrCorruptGem      = errors.New("corrupt gem document")
	ErrKeyMismatch     = errors.New("gem name or stars do not match the item key")
)

// LockConflictError reports the live lock that blocked an acquisition or write.
type LockConflictError struct {
	Lock Lock
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("%s: %s is locked by %s until %s",
		ErrLockConflict, e.Lock.Key, e.Lock.HolderDisplayName, e.Lock.ExpiresAt.Format(time.RFC3339))
}

func (e *LockConflictError) Is(target error) bool {
	return target == ErrLockConflict
}

// ValidationError lists every problem found in a gem document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidGem, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidGem
}
