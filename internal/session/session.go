package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

const CookieName = "tripdesk_session"

type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// Store keeps server-side sessions. Get extends the session's lifetime.
type Store interface {
	Create(ctx context.Context, userID string) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
}

// newID returns 32 random bytes, base64url encoded.
func newID() (string, error) {
	b := make([]byte, 32)

	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
