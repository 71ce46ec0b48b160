package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/claytondukes/dibo-gems/internal/auth"
	"github.com/claytondukes/dibo-gems/internal/domain"
	"github.com/claytondukes/dibo-gems/internal/logging"
)

type SessionIssuer interface {
	Issue(id auth.Identity) (auth.Session, error)
}

// AuthService exchanges a Google credential for a service session.
type AuthService struct {
	verifier auth.Verifier
	issuer   SessionIssuer
	logger   *slog.Logger
}

func NewAuthService(verifier auth.Verifier, issuer SessionIssuer, logger *slog.Logger) *AuthService {
	return &AuthService{
		verifier: verifier,
		issuer:   issuer,
		logger:   logging.Component(logger, "auth_service"),
	}
}

func (s *AuthService) Login(ctx context.Context, credential string) (auth.Session, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return auth.Session{}, fmt.Errorf("%w: credential is required", domain.ErrUnauthenticated)
	}
	id, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		s.logger.Warn("credential rejected", "error", err)
		return auth.Session{}, err
	}
	session, err := s.issuer.Issue(id)
	if err != nil {
		return auth.Session{}, fmt.Errorf("issue session: %w", err)
	}
	s.logger.Info("session issued", "user", id.ID, "expires_at", session.ExpiresAt)
	return session, nil
}
