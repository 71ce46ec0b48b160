package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/claytondukes/dibo-gems/internal/app"
	"github.com/claytondukes/dibo-gems/internal/auth"
	"github.com/claytondukes/dibo-gems/internal/clock"
	"github.com/claytondukes/dibo-gems/internal/domain"
)

// GemCatalog is the minimal interface needed by the gem endpoints.
type GemCatalog interface {
	ListGems(ctx context.Context) ([]domain.GemSummary, error)
	GetGem(ctx context.Context, key domain.ItemKey) (domain.Gem, *domain.Lock, error)
	UpdateGem(ctx context.Context, in app.UpdateGemInput) (domain.Gem, error)
}

// HandleListGems returns an HTTP handler for GET /gems.
func HandleListGems(svc GemCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		gems, err := svc.ListGems(r.Context())
		if err != nil {
			writeServiceError(w, r, err, time.Now())
			return
		}
		resp := make([]gemListItem, 0, len(gems))
		for _, g := range gems {
			resp = append(resp, gemListItem{
				ItemKey:     g.Key.String(),
				Name:        g.Name,
				Stars:       int(g.Stars),
				Description: g.Description,
				Effects:     g.Effects,
				FilePath:    g.FilePath,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleGem returns an HTTP handler for GET and PUT on /gems/{stars}/{name}.
// Writes read the caller from the request context; see RequireSession.
func HandleGem(svc GemCatalog, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPut {
			methodNotAllowed(w, http.MethodGet, http.MethodPut)
			return
		}

		key, ok := parseGemPath(r)
		if !ok {
			writeError(w, http.StatusBadRequest, codeInvalidItemKey, domain.ErrInvalidItemKey.Error())
			return
		}

		if r.Method == http.MethodGet {
			gem, lock, err := svc.GetGem(r.Context(), key)
			if err != nil {
				writeServiceError(w, r, err, clk.Now())
				return
			}
			resp := gemResponse{Gem: gem}
			if lock != nil {
				l := toLockResponse(*lock, clk.Now())
				resp.Lock = &l
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}

		id, ok := auth.IdentityFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, domain.ErrUnauthenticated.Error())
			return
		}

		var gem domain.Gem
		if err := json.NewDecoder(r.Body).Decode(&gem); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		keepLock, _ := strconv.ParseBool(r.URL.Query().Get("keep_lock"))

		updated, err := svc.UpdateGem(r.Context(), app.UpdateGemInput{
			Key:      key,
			Identity: id,
			Gem:      gem,
			KeepLock: keepLock,
		})
		if err != nil {
			writeServiceError(w, r, err, clk.Now())
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func parseGemPath(r *http.Request) (domain.ItemKey, bool) {
	tier, err := domain.ParseTier(r.PathValue("stars"))
	if err != nil {
		return domain.ItemKey{}, false
	}
	key, err := domain.NewItemKey(tier, r.PathValue("name"))
	if err != nil {
		return domain.ItemKey{}, false
	}
	return key, true
}

type gemListItem struct {
	ItemKey     string   `json:"item_key"`
	Name        string   `json:"name"`
	Stars       int      `json:"stars"`
	Description string   `json:"description"`
	Effects     []string `json:"effects"`
	FilePath    string   `json:"file_path"`
}

type gemResponse struct {
	Gem  domain.Gem    `json:"gem"`
	Lock *lockResponse `json:"lock"`
}
