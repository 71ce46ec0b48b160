package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/claytondukes/dibo-gems/internal/clock"
	"github.com/claytondukes/dibo-gems/internal/domain"
)

const (
	DefaultSessionTTL = 60 * time.Minute
	sessionIssuer     = "dibo-gems"
)

var ErrMissingSecret = errors.New("session secret is required")

type sessionClaims struct {
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Session is a signed credential handed to the client after sign-in.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
}

// SessionIssuer signs and validates HS256 session tokens.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewSessionIssuer(secret string, ttl time.Duration, clk clock.Clock) (*SessionIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionIssuer{secret: []byte(secret), ttl: ttl, clock: clk}, nil
}

// Issue creates a session for id valid for the configured TTL.
func (s *SessionIssuer) Issue(id Identity) (Session, error) {
	if id.ID == "" {
		return Session{}, fmt.Errorf("issue session: %w", domain.ErrUnauthenticated)
	}
	now := s.clock.Now()
	expires := now.Add(s.ttl).Truncate(time.Second)

	claims := sessionClaims{
		Name:    id.DisplayName,
		Picture: id.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	return Session{Token: signed, ExpiresAt: expires, Identity: id}, nil
}

// Parse validates a session token and returns its identity. Every failure
// is reported as domain.ErrUnauthenticated.
func (s *SessionIssuer) Parse(token string) (Identity, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", domain.ErrUnauthenticated)
	}
	return Identity{ID: claims.Subject, DisplayName: claims.Name, Picture: claims.Picture}, nil
}
