package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/tripdesk/internal/domain/role"
	"github.com/geocoder89/tripdesk/internal/domain/user"
	"github.com/geocoder89/tripdesk/internal/security"
	"github.com/geocoder89/tripdesk/internal/utils"
	"github.com/gin-gonic/gin"
)

type AdminUsersRepo interface {
	List(ctx context.Context, limit, offset int) ([]user.User, error)
	Create(ctx context.Context, email, passwordHash, name string, base role.Base) (user.User, error)
	ListRoleSwitches(ctx context.Context, limit int, afterCreatedAt time.Time, afterID string) ([]user.RoleSwitch, *string, bool, error)
}

type AdminUsersHandler struct {
	repo AdminUsersRepo
}

func NewAdminUsersHandler(repo AdminUsersRepo) *AdminUsersHandler {
	return &AdminUsersHandler{repo: repo}
}

// GET /api/admin/users?limit=50&offset=0
func (h *AdminUsersHandler) List(ctx *gin.Context) {
	limit := parseIntDefault(ctx.Query("limit"), 50)
	if limit < 1 || limit > 200 {
		RespondBadRequest(ctx, "limit must be between 1 and 200", nil)
		return
	}

	offset := parseIntDefault(ctx.Query("offset"), 0)
	if offset < 0 {
		RespondBadRequest(ctx, "offset must not be negative", nil)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	items, err := h.repo.List(cctx, limit, offset)
	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":  items,
		"count":  len(items),
		"limit":  limit,
		"offset": offset,
	})
}

// Create opens an account. The base role is fixed from here on.
func (h *AdminUsersHandler) Create(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	base, err := role.ParseBase(req.Role)
	if err != nil {
		RespondError(ctx, http.StatusBadRequest, "invalid_role", "Unknown role", gin.H{
			"fields": []FieldError{{Field: "role", Rule: "oneof", Message: "must be a known base role"}},
		})
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.repo.Create(cctx, req.Email, hash, req.Name, base)

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

// GET /api/admin/role-switches?limit=50&cursor=...
func (h *AdminUsersHandler) RoleSwitches(ctx *gin.Context) {
	limit := parseIntDefault(ctx.Query("limit"), 50)
	if limit < 1 || limit > 200 {
		RespondBadRequest(ctx, "limit must be between 1 and 200", nil)
		return
	}

	afterCreatedAt := utils.FirstPageCreatedAt
	afterID := utils.FirstPageID

	if cursor := ctx.Query("cursor"); cursor != "" {
		cur, err := utils.DecodeSwitchCursor(cursor)
		if err != nil {
			RespondBadRequest(ctx, "cursor is invalid", nil)
			return
		}
		afterCreatedAt = cur.CreatedAt
		afterID = cur.ID
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	items, next, hasMore, err := h.repo.ListRoleSwitches(cctx, limit, afterCreatedAt, afterID)
	if err != nil {
		RespondInternal(ctx, "Could not list role switches")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"limit":      limit,
		"count":      len(items),
		"items":      items,
		"hasMore":    hasMore,
		"nextCursor": next,
	})
}

func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}

	n, err := strconv.Atoi(s)

	if err != nil {
		return fallback
	}

	return n
}
