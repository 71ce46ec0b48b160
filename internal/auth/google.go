package auth

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"

	"github.com/claytondukes/dibo-gems/internal/domain"
)

var googleIssuers = map[string]struct{}{
	"accounts.google.com":         {},
	"https://accounts.google.com": {},
}

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleVerifier validates Google Sign-In ID tokens issued for clientID.
type GoogleVerifier struct {
	clientID string
	validate validateFunc
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, validate: idtoken.Validate}
}

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, fmt.Errorf("%w: empty credential", domain.ErrUnauthenticated)
	}
	if v.clientID == "" {
		return Identity{}, fmt.Errorf("%w: google client id not configured", domain.ErrUnauthenticated)
	}
	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if _, ok := googleIssuers[payload.Issuer]; !ok {
		return Identity{}, fmt.Errorf("%w: invalid issuer %q", domain.ErrUnauthenticated, payload.Issuer)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return Identity{}, fmt.Errorf("%w: token has no email", domain.ErrUnauthenticated)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return Identity{}, fmt.Errorf("%w: email not verified", domain.ErrUnauthenticated)
	}
	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)

	return Identity{ID: strings.ToLower(email), DisplayName: name, Picture: picture}, nil
}

var _ Verifier = (*GoogleVerifier)(nil)
