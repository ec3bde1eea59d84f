package handlers

import (
	"net/http"

	"github.com/geocoder89/tripdesk/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// Dashboard is the landing payload of a guarded section.
func Dashboard(ctx *gin.Context) {
	subj := middlewares.SubjectFromContext(ctx)

	ctx.JSON(http.StatusOK, gin.H{
		"section":       middlewares.SectionFromContext(ctx),
		"effectiveRole": subj.Role,
		"region":        subj.Role.Region(),
		"home":          subj.Role.Home(),
		"adminBase":     subj.AdminBase,
	})
}
