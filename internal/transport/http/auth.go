package http

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/claytondukes/dibo-gems/internal/auth"
	"github.com/claytondukes/dibo-gems/internal/domain"
)

// SessionParser validates a bearer session token.
type SessionParser interface {
	Parse(token string) (auth.Identity, error)
}

// LoginService exchanges a third-party credential for a session.
type LoginService interface {
	Login(ctx context.Context, credential string) (auth.Session, error)
}

// RequireSession rejects requests without a valid bearer session and stores
// the caller's identity in the request context. When methods are given, only
// requests using one of them are checked.
func RequireSession(parser SessionParser, next http.Handler, methods ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || (len(methods) > 0 && !slices.Contains(methods, r.Method)) {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, "missing bearer token")
			return
		}
		id, err := parser.Parse(token)
		if err != nil {
			loggerFrom(r.Context()).Debug("session rejected", "error", err)
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, domain.ErrUnauthenticated.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// HandleGoogleLogin returns an HTTP handler that signs a user in with a Google ID token.
func HandleGoogleLogin(svc LoginService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}

		var req googleLoginRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		session, err := svc.Login(r.Context(), req.Credential)
		if err != nil {
			writeServiceError(w, r, err, time.Now())
			return
		}

		writeJSON(w, http.StatusOK, loginResponse{
			AccessToken: session.Token,
			TokenType:   "bearer",
			ExpiresAt:   session.ExpiresAt.UTC(),
			User:        toUserResponse(session.Identity),
		})
	}
}

// HandleMe returns the identity of the signed-in caller.
func HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		id, ok := auth.IdentityFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, domain.ErrUnauthenticated.Error())
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(id))
	}
}

type googleLoginRequest struct {
	Credential string `json:"credential"`
}

type userResponse struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

func toUserResponse(id auth.Identity) userResponse {
	return userResponse{Email: id.ID, Name: id.DisplayName, Picture: id.Picture}
}
