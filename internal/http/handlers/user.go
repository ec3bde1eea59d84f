package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/tripdesk/internal/access"
	"github.com/geocoder89/tripdesk/internal/domain/role"
	"github.com/geocoder89/tripdesk/internal/domain/user"
	"github.com/geocoder89/tripdesk/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type RoleSwitcher interface {
	SwitchRole(ctx context.Context, requester *user.User, target string) (user.User, error)
}

type UserHandler struct {
	resolver access.Resolver
	switcher RoleSwitcher
}

func NewUserHandler(resolver access.Resolver, switcher RoleSwitcher) *UserHandler {
	return &UserHandler{resolver: resolver, switcher: switcher}
}

type identityView struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          role.Base  `json:"role"`
	ActiveRole    *role.Role `json:"activeRole"`
	EffectiveRole role.Role  `json:"effectiveRole"`
	Home          string     `json:"home"`
}

func newIdentityView(resolver access.Resolver, u *user.User) identityView {
	eff, _ := resolver.Resolve(u)

	return identityView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		ActiveRole:    u.ActiveRole,
		EffectiveRole: eff,
		Home:          eff.Home(),
	}
}

// Me returns the caller as stored right now.
func (h *UserHandler) Me(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "unauthenticated", "Sign in to continue", gin.H{"redirectTo": access.LoginPath})
		return
	}

	ctx.JSON(http.StatusOK, newIdentityView(h.resolver, u))
}

type SwitchRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// SwitchRole answers only after the new active role is committed. The body is
// empty on purpose: the client refetches /api/user in full.
func (h *UserHandler) SwitchRole(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "unauthenticated", "Sign in to continue", gin.H{"redirectTo": access.LoginPath})
		return
	}

	var req SwitchRoleRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	_, err := h.switcher.SwitchRole(cctx, u, req.Role)

	if err != nil {
		switch {
		case errors.Is(err, access.ErrForbidden):
			eff, _ := h.resolver.Resolve(u)
			RespondForbidden(ctx, "Only administrators can switch roles", eff.Home())
		case errors.Is(err, role.ErrInvalidRole):
			RespondError(ctx, http.StatusBadRequest, "invalid_role", "Unknown role", gin.H{
				"fields": []FieldError{{
					Field:   "role",
					Rule:    "oneof",
					Param:   role.Names(role.All()),
					Message: validationMessage("oneof", role.Names(role.All())),
				}},
			})
		case errors.Is(err, access.ErrUnauthenticated):
			RespondUnAuthorized(ctx, "unauthenticated", "Sign in to continue")
		default:
			slog.Default().ErrorContext(ctx.Request.Context(), "role switch failed", "err", err, "user_id", u.ID)
			RespondInternal(ctx, "Could not switch role")
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}
