package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firesense/fire-alert-service/internal/db"
	"github.com/firesense/fire-alert-service/internal/repository"
)

// ErrUnauthorized is returned when a caller token is missing or does not
// resolve to a known identity
var ErrUnauthorized = errors.New("unauthorized")

// SessionStore resolves opaque session tokens to profiles
type SessionStore interface {
	ResolveSession(ctx context.Context, token string) (*db.Profile, error)
}

// Authenticator resolves caller identity from bearer tokens
type Authenticator struct {
	sessions SessionStore
}

// NewAuthenticator creates a new authenticator backed by a session store
func NewAuthenticator(sessions SessionStore) *Authenticator {
	return &Authenticator{sessions: sessions}
}

// Authenticate resolves a session token to the caller's profile. Any
// authenticated identity is accepted; there is no level check here.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*db.Profile, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	profile, err := a.sessions.ResolveSession(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	return profile, nil
}

// BearerToken extracts the token from an Authorization header value.
// Returns "" if the header is absent or not in Bearer form.
func BearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
