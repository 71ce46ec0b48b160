// Package lockstore keeps the registry of per-item edit locks.
//
// A lock gives one identity exclusive permission to modify an item until
// its expiry. Expiry is passive: a record whose ExpiresAt is not after the
// store clock's current time is treated as absent by every operation, whether
// or not it has been removed yet. Sweep and RunSweeper only reclaim memory.
//
// All operations are serialized by a single mutex over the whole registry,
// so for any key the sequence of accepted lock states follows the order in
// which callers entered the store. Nothing under the mutex performs I/O;
// metrics and log events are emitted after it is released.
//
// Outcomes are reported as typed errors:
//
//   - *domain.LockConflictError (errors.Is(err, domain.ErrLockConflict)) when
//     another identity holds a live lock; it carries that lock so callers can
//     show who holds it and until when.
//   - domain.ErrNotLockOwner when releasing a lock held by someone else.
//   - domain.ErrLockNotHeld when a write is attempted without a live lock.
package lockstore
