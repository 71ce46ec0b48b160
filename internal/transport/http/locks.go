package http

import (
	"context"
	"net/http"
	"time"

	"github.com/claytondukes/dibo-gems/internal/auth"
	"github.com/claytondukes/dibo-gems/internal/clock"
	"github.com/claytondukes/dibo-gems/internal/domain"
)

// LockManager is the minimal interface needed by the lock endpoints.
type LockManager interface {
	Acquire(ctx context.Context, id auth.Identity, key domain.ItemKey) (domain.Lock, error)
	Release(ctx context.Context, id auth.Identity, key domain.ItemKey) (bool, error)
	List(ctx context.Context) map[domain.ItemKey]domain.Lock
}

// HandleItemLock returns an HTTP handler for POST and DELETE on
// /items/{item_key}/lock.
func HandleItemLock(svc LockManager, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			methodNotAllowed(w, http.MethodPost, http.MethodDelete)
			return
		}

		key, err := domain.ParseItemKey(r.PathValue("item_key"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidItemKey, err.Error())
			return
		}
		id, ok := auth.IdentityFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, domain.ErrUnauthenticated.Error())
			return
		}

		if r.Method == http.MethodDelete {
			released, err := svc.Release(r.Context(), id, key)
			if err != nil {
				writeServiceError(w, r, err, clk.Now())
				return
			}
			writeJSON(w, http.StatusOK, releaseResponse{Released: released})
			return
		}

		lock, err := svc.Acquire(r.Context(), id, key)
		if err != nil {
			writeServiceError(w, r, err, clk.Now())
			return
		}
		writeJSON(w, http.StatusOK, toLockResponse(lock, clk.Now()))
	}
}

// HandleListLocks returns an HTTP handler for GET /items/locks.
func HandleListLocks(svc LockManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		locks := svc.List(r.Context())
		resp := make(map[string]lockSummary, len(locks))
		for key, l := range locks {
			resp[key.String()] = lockSummary{
				HolderID:          l.HolderID,
				HolderDisplayName: l.HolderDisplayName,
				AcquiredAt:        l.AcquiredAt.UTC(),
				ExpiresAt:         l.ExpiresAt.UTC(),
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type lockSummary struct {
	HolderID          string    `json:"holder_id"`
	HolderDisplayName string    `json:"holder_display_name"`
	AcquiredAt        time.Time `json:"acquired_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

type lockResponse struct {
	ItemKey           string    `json:"item_key"`
	HolderID          string    `json:"holder_id"`
	HolderDisplayName string    `json:"holder_display_name"`
	AcquiredAt        time.Time `json:"acquired_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	ExpiresInSeconds  int64     `json:"expires_in_seconds"`
}

type releaseResponse struct {
	Released bool `json:"released"`
}

func toLockResponse(l domain.Lock, now time.Time) lockResponse {
	return lockResponse{
		ItemKey:           l.Key.String(),
		HolderID:          l.HolderID,
		HolderDisplayName: l.HolderDisplayName,
		AcquiredAt:        l.AcquiredAt.UTC(),
		ExpiresAt:         l.ExpiresAt.UTC(),
		ExpiresInSeconds:  int64(l.Remaining(now) / time.Second),
	}
}
