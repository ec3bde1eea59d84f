package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/tripdesk/internal/access"
	"github.com/geocoder89/tripdesk/internal/auth"
	"github.com/geocoder89/tripdesk/internal/config"
	"github.com/geocoder89/tripdesk/internal/domain/user"
	"github.com/geocoder89/tripdesk/internal/http/middlewares"
	"github.com/geocoder89/tripdesk/internal/security"
	"github.com/geocoder89/tripdesk/internal/session"
	"github.com/gin-gonic/gin"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type AuthHandler struct {
	users    UserReader
	sessions session.Store
	jwt      *auth.Manager
	resolver access.Resolver
	cfg      config.Config
}

func NewAuthHandler(users UserReader, sessions session.Store, jwtManager *auth.Manager, resolver access.Resolver, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		jwt:      jwtManager,
		resolver: resolver,
		cfg:      cfg,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			slog.Default().ErrorContext(ctx.Request.Context(), "login lookup failed", "err", err)
			RespondInternal(ctx, "Could not sign in")
			return
		}

		_ = security.BurnCheck(req.Password)
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	// any previous session on this browser is dropped
	if old, err := ctx.Cookie(session.CookieName); err == nil && old != "" {
		_ = h.sessions.Delete(cctx, old)
	}

	sess, err := h.sessions.Create(cctx, foundUser.ID)

	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "create session failed", "err", err, "user_id", foundUser.ID)
		RespondInternal(ctx, "Could not create session")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(foundUser.ID, foundUser.Email, sess.ID)

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setSessionCookie(ctx, sess)

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
		"user":        newIdentityView(h.resolver, &foundUser),
	})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, err := ctx.Cookie(session.CookieName)

	if err == nil && raw != "" {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()

		// best effort, the cookie is cleared either way
		if err := h.sessions.Delete(cctx, raw); err != nil {
			slog.Default().WarnContext(ctx.Request.Context(), "delete session failed", "err", err)
		}
	}

	h.clearSessionCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// LogoutEverywhere ends every session of the caller. Access tokens are bound to
// a session, so the tokens issued under them stop working too.
func (h *AuthHandler) LogoutEverywhere(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthenticated", "Sign in to continue")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.sessions.DeleteAllForUser(cctx, userID); err != nil {
		RespondInternal(ctx, "Could not end sessions")
		return
	}

	h.clearSessionCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, sess session.Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteLaxMode)

	ctx.SetCookie(
		session.CookieName,
		sess.ID,
		maxAge,
		"/",
		"",
		h.cfg.SecureCookies(),
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(
		session.CookieName,
		"",
		-1,
		"/",
		"",
		h.cfg.SecureCookies(),
		true,
	)
}
