package handlers

import (
	"net/http"

	"github.com/geocoder89/tripdesk/internal/access"
	"github.com/geocoder89/tripdesk/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type AccessHandler struct {
	guard      *middlewares.Guard
	controller *access.Controller
}

func NewAccessHandler(guard *middlewares.Guard, controller *access.Controller) *AccessHandler {
	return &AccessHandler{guard: guard, controller: controller}
}

type decisionView struct {
	Decision   string `json:"decision"`
	Section    string `json:"section,omitempty"`
	Reason     string `json:"reason,omitempty"`
	RedirectTo string `json:"redirectTo,omitempty"`
	Notify     bool   `json:"notify,omitempty"`
}

// Check answers the client router for one navigation:
// GET /api/access?path=/operations/bookings
func (h *AccessHandler) Check(ctx *gin.Context) {
	path := ctx.Query("path")
	if path == "" {
		RespondBadRequest(ctx, "path is required", gin.H{"fields": []FieldError{{Field: "path", Rule: "required", Message: "is required"}}})
		return
	}

	d := h.guard.Decide(ctx, path)

	view := decisionView{
		Decision:   d.Outcome.String(),
		Section:    d.Section,
		RedirectTo: d.RedirectTo,
		Notify:     d.Notify,
	}

	if d.Reason != nil {
		view.Reason = d.Reason.Error()
	}

	ctx.JSON(http.StatusOK, view)
}

// Sections lists what the caller may open, for building navigation.
func (h *AccessHandler) Sections(ctx *gin.Context) {
	subj := middlewares.SubjectFromContext(ctx)
	items := h.controller.Visible(subj)

	ctx.JSON(http.StatusOK, gin.H{
		"items":         items,
		"count":         len(items),
		"effectiveRole": subj.Role,
		"home":          subj.Role.Home(),
	})
}
