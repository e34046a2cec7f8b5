// Package session implements the session gateway: it is the only component
// allowed to create, resolve or invalidate sessions. Tokens are opaque
// bearer values; expiry is checked lazily at resolution time.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/arena-leaderboard/internal/domain"
)

// Gateway creates and resolves sessions. Multiple concurrent sessions per
// user are permitted (multi-device).
type Gateway interface {
	// Create opens a new session for the user and returns it with a fresh
	// token.
	Create(ctx context.Context, userID string) (domain.Session, error)

	// Resolve returns the user id bound to the token. Fails with
	// domain.ErrSessionNotFound or domain.ErrSessionExpired.
	Resolve(ctx context.Context, token string) (string, error)

	// Invalidate destroys the session. Invalidating an unknown or already
	// expired token is not an error.
	Invalidate(ctx context.Context, token string) error
}

// newToken returns a fresh opaque bearer token.
func newToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
