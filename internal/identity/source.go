package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/tripdesk/internal/auth"
	"github.com/geocoder89/tripdesk/internal/domain/user"
	"github.com/geocoder89/tripdesk/internal/session"
)

type UserReader interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// Credentials are what a request presented. Either may be empty.
type Credentials struct {
	SessionID   string
	BearerToken string
}

func (c Credentials) Empty() bool {
	return c.SessionID == "" && c.BearerToken == ""
}

// Source answers "who is calling" from storage, every time. It never caches a user,
// so a role switch is visible to the very next request.
type Source struct {
	sessions session.Store
	users    UserReader
	tokens   TokenVerifier
	timeout  time.Duration
}

func NewSource(sessions session.Store, users UserReader, tokens TokenVerifier, timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &Source{
		sessions: sessions,
		users:    users,
		tokens:   tokens,
		timeout:  timeout,
	}
}

// CurrentUser returns (nil, nil) when the credentials do not identify anyone.
// An error means the lookup itself failed; callers must treat that as anonymous.
func (s *Source) CurrentUser(ctx context.Context, cred Credentials) (*user.User, error) {
	if cred.Empty() {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userID, err := s.userID(ctx, cred)
	if err != nil || userID == "" {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	return &u, nil
}

func (s *Source) userID(ctx context.Context, cred Credentials) (string, error) {
	if cred.SessionID != "" {
		sess, err := s.sessions.Get(ctx, cred.SessionID)

		if err == nil {
			return sess.UserID, nil
		}

		if !errors.Is(err, session.ErrNotFound) {
			return "", fmt.Errorf("load session: %w", err)
		}
	}

	if cred.BearerToken != "" && s.tokens != nil {
		claims, err := s.tokens.VerifyAccessToken(cred.BearerToken)
		if err != nil {
			return "", nil
		}

		// a token lives only as long as the session it was issued under
		sess, err := s.sessions.Get(ctx, claims.SessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return "", nil
			}
			return "", fmt.Errorf("load token session: %w", err)
		}

		if sess.UserID != claims.UserID {
			return "", nil
		}
		return claims.UserID, nil
	}

	return "", nil
}
