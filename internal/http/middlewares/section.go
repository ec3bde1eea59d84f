package middlewares

import (
	"errors"
	"net/http"

	"github.com/geocoder89/tripdesk/internal/access"
	"github.com/gin-gonic/gin"
)

// DecisionRecorder counts decisions. observability.Prom implements it.
type DecisionRecorder interface {
	AccessDecision(section, outcome string)
}

type Guard struct {
	controller *access.Controller
	metrics    DecisionRecorder
}

func NewGuard(controller *access.Controller, metrics DecisionRecorder) *Guard {
	return &Guard{controller: controller, metrics: metrics}
}

func (g *Guard) Decide(c *gin.Context, path string) access.Decision {
	d := g.controller.Authorize(SubjectFromContext(c), path)

	if g.metrics != nil {
		g.metrics.AccessDecision(d.Section, d.Outcome.String())
	}

	return d
}

// RequireSection lets the request through only on an Allow decision for path.
// Every other outcome aborts.
func (g *Guard) RequireSection(path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := g.Decide(c, path)

		if d.Allowed() {
			c.Set(ctxSection, d.Section)
			c.Next()
			return
		}

		AbortWithDecision(c, d)
	}
}

// RequireAuth only checks that someone is signed in.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !SubjectFromContext(c).Authenticated() {
			AbortWithDecision(c, access.Decision{
				Outcome:    access.Deny,
				Reason:     access.ErrUnauthenticated,
				RedirectTo: access.LoginPath,
			})
			return
		}
		c.Next()
	}
}

func AbortWithDecision(c *gin.Context, d access.Decision) {
	if errors.Is(d.Reason, access.ErrUnauthenticated) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": gin.H{
				"code":      "unauthenticated",
				"message":   "Sign in to continue",
				"requestId": c.GetString(CtxRequestID),
				"details":   gin.H{"redirectTo": d.RedirectTo},
			},
		})
		return
	}

	// anything that is not an explicit Allow ends here
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error": gin.H{
			"code":      "forbidden",
			"message":   "Access denied",
			"requestId": c.GetString(CtxRequestID),
			"details": gin.H{
				"redirectTo": d.RedirectTo,
				"notify":     d.Notify,
			},
		},
	})
}

func SectionFromContext(c *gin.Context) string {
	return c.GetString(ctxSection)
}
