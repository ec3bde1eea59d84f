package middlewares

import (
	"context"
	"log/slog"
	"strings"

	"github.com/geocoder89/tripdesk/internal/access"
	"github.com/geocoder89/tripdesk/internal/domain/user"
	"github.com/geocoder89/tripdesk/internal/identity"
	"github.com/geocoder89/tripdesk/internal/session"
	"github.com/gin-gonic/gin"
)

// CurrentUserSource is implemented by identity.Source.
type CurrentUserSource interface {
	CurrentUser(ctx context.Context, cred identity.Credentials) (*user.User, error)
}

// LoadIdentity resolves the caller once per request and stores the user and
// subject on the context. Lookup failures and timeouts leave the caller anonymous.
func LoadIdentity(src CurrentUserSource, resolver access.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred := CredentialsFrom(c)

		var u *user.User

		if !cred.Empty() {
			found, err := src.CurrentUser(c.Request.Context(), cred)

			if err != nil {
				slog.Default().WarnContext(c.Request.Context(), "identity lookup failed, treating caller as anonymous", "err", err)
			} else {
				u = found
			}
		}

		SetIdentity(c, u, resolver.Subject(u))

		c.Next()
	}
}

func CredentialsFrom(c *gin.Context) identity.Credentials {
	var cred identity.Credentials

	if v, err := c.Cookie(session.CookieName); err == nil {
		cred.SessionID = v
	}

	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		cred.BearerToken = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	}

	return cred
}

// Helpers so handlers don't need to know the magic keys.

func SetIdentity(c *gin.Context, u *user.User, subj access.Subject) {
	if u != nil {
		c.Set(ctxUserKey, u)
	}
	c.Set(ctxSubject, subj)
}

func UserFromContext(c *gin.Context) (*user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*user.User)
	return u, ok && u != nil
}

func SubjectFromContext(c *gin.Context) access.Subject {
	v, ok := c.Get(ctxSubject)
	if !ok {
		return access.Subject{}
	}
	s, _ := v.(access.Subject)
	return s
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	u, ok := UserFromContext(c)
	if !ok {
		return "", false
	}
	return u.ID, true
}
