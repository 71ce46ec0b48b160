package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/claytondukes/dibo-gems/internal/domain"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeInvalidItemKey     = "invalid_item_key"
	codeInvalidGem         = "invalid_gem"
	codeKeyMismatch        = "key_mismatch"
	codeInvalidFormat      = "invalid_format"
	codeGemNotFound        = "gem_not_found"
	codeLockConflict       = "lock_conflict"
	codeNotLockOwner       = "not_lock_owner"
	codeLockNotHeld        = "lock_not_held"
	codeUnauthenticated    = "unauthenticated"
	codeForbidden          = "forbidden"
	codeRateLimited        = "rate_limited"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string        `json:"error"`
	Code  string        `json:"code"`
	Lock  *lockResponse `json:"lock,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}

// writeServiceError maps domain errors to responses. Unrecognised errors are
// logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, now time.Time) {
	var conflict *domain.LockConflictError
	switch {
	case errors.As(err, &conflict):
		lock := toLockResponse(conflict.Lock, now)
		writeJSON(w, http.StatusLocked, errorResponse{
			Error: fmt.Sprintf("item is being edited by %s until %s",
				conflict.Lock.HolderDisplayName, lock.ExpiresAt.Format(time.RFC3339)),
			Code: codeLockConflict,
			Lock: &lock,
		})
	case errors.Is(err, domain.ErrLockConflict):
		writeError(w, http.StatusLocked, codeLockConflict, domain.ErrLockConflict.Error())
	case errors.Is(err, domain.ErrNotLockOwner):
		writeError(w, http.StatusForbidden, codeNotLockOwner, domain.ErrNotLockOwner.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, codeUnauthenticated, domain.ErrUnauthenticated.Error())
	case errors.Is(err, domain.ErrLockNotHeld):
		writeError(w, http.StatusConflict, codeLockNotHeld, "acquire the edit lock before saving")
	case errors.Is(err, domain.ErrGemNotFound):
		writeError(w, http.StatusNotFound, codeGemNotFound, domain.ErrGemNotFound.Error())
	case errors.Is(err, domain.ErrInvalidGem):
		writeError(w, http.StatusBadRequest, codeInvalidGem, err.Error())
	case errors.Is(err, domain.ErrKeyMismatch):
		writeError(w, http.StatusBadRequest, codeKeyMismatch, domain.ErrKeyMismatch.Error())
	case errors.Is(err, domain.ErrInvalidItemKey), errors.Is(err, domain.ErrInvalidTier):
		writeError(w, http.StatusBadRequest, codeInvalidItemKey, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, domain.ErrForbidden.Error())
	default:
		loggerFrom(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
