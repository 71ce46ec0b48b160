package http

import (
	"context"
	"net/http"

	"github.com/claytondukes/dibo-gems/internal/auth"
	"github.com/claytondukes/dibo-gems/internal/clock"
	"github.com/claytondukes/dibo-gems/internal/domain"
)

// LockOverrider is the minimal interface needed for the admin lock endpoint.
type LockOverrider interface {
	ForceRelease(ctx context.Context, admin auth.Identity, key domain.ItemKey) (domain.Lock, bool, error)
}

// HandleAdminReleaseLock returns an HTTP handler for DELETE /admin/locks/{item_key}.
func HandleAdminReleaseLock(svc LockOverrider, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, http.MethodDelete)
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

		lock, released, err := svc.ForceRelease(r.Context(), id, key)
		if err != nil {
			writeServiceError(w, r, err, clk.Now())
			return
		}

		resp := adminReleaseResponse{Released: released}
		if released {
			l := toLockResponse(lock, clk.Now())
			resp.Lock = &l
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type adminReleaseResponse struct {
	Released bool          `json:"released"`
	Lock     *lockResponse `json:"lock"`
}
