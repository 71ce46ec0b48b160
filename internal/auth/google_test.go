package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"

	"github.com/claytondukes/dibo-gems/internal/domain"
)

func stubVerifier(payload *idtoken.Payload, err error) *GoogleVerifier {
	return &GoogleVerifier{
		clientID: "client-123",
		validate: func(_ context.Context, _, audience string) (*idtoken.Payload, error) {
			if audience != "client-123" {
				return nil, errors.New("wrong audience")
			}
			return payload, err
		},
	}
}

func TestGoogleVerifier_Verify(t *testing.T) {
	ok := &idtoken.Payload{
		Issuer: "https://accounts.google.com",
		Claims: map[string]interface{}{
			"email":          "Alice@X.com",
			"email_verified": true,
			"name":           "Alice",
			"picture":        "https://img/alice.png",
		},
	}

	id, err := stubVerifier(ok, nil).Verify(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "alice@x.com", DisplayName: "Alice", Picture: "https://img/alice.png"}, id)
}

func TestGoogleVerifier_Failures(t *testing.T) {
	tests := []struct {
		name    string
		payload *idtoken.Payload
		err     error
		token   string
	}{
		{name: "empty token", token: ""},
		{name: "validation error", token: "t", err: errors.New("bad signature")},
		{name: "wrong issuer", token: "t", payload: &idtoken.Payload{
			Issuer: "evil.example.com",
			Claims: map[string]interface{}{"email": "a@x.com"},
		}},
		{name: "missing email", token: "t", payload: &idtoken.Payload{
			Issuer: "accounts.google.com",
			Claims: map[string]interface{}{},
		}},
		{name: "unverified email", token: "t", payload: &idtoken.Payload{
			Issuer: "accounts.google.com",
			Claims: map[string]interface{}{"email": "a@x.com", "email_verified": false},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := stubVerifier(tt.payload, tt.err).Verify(context.Background(), tt.token)
			require.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestGoogleVerifier_RequiresClientID(t *testing.T) {
	_, err := NewGoogleVerifier("").Verify(context.Background(), "token")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}
