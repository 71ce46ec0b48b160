package auth

import (
	"context"
	"strings"
)

// Identity is an authenticated user. ID is the stable identifier (email)
// used for lock ownership; DisplayName is what other users see.
type Identity struct {
	ID          string
	DisplayName string
	Picture     string
}

// Label is the name to show for the identity, falling back to its ID.
func (i Identity) Label() string {
	if strings.TrimSpace(i.DisplayName) != "" {
		return i.DisplayName
	}
	return i.ID
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.ID != ""
}

// Verifier turns a third-party identity token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
