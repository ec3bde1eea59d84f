package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	corsMethods        = strings.Join([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}, ",")
	corsAllowHeaders   = strings.Join([]string{"Authorization", "Content-Type", requestIDHeader}, ",")
	corsExposedHeaders = requestIDHeader
)

// CORSMiddleware echoes allowed origins only. Sessions ride on a cookie, so a
// wildcard origin is never sent together with credentials.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))

	for _, origin := range allowedOrigins {
		if origin == "" || origin == "*" {
			continue
		}
		allowed[origin] = struct{}{}
	}

	return func(ctx *gin.Context) {
		origin := ctx.GetHeader("Origin")
		ctx.Header("Vary", "Origin")

		_, ok := allowed[origin]

		if origin != "" && ok {
			ctx.Header("Access-Control-Allow-Origin", origin)
			ctx.Header("Access-Control-Allow-Credentials", "true")
			ctx.Header("Access-Control-Expose-Headers", corsExposedHeaders)
		}

		if ctx.Request.Method == http.MethodOptions {
			if origin != "" && !ok {
				ctx.AbortWithStatus(http.StatusForbidden)
				return
			}

			ctx.Header("Access-Control-Allow-Methods", corsMethods)
			ctx.Header("Access-Control-Allow-Headers", corsAllowHeaders)
			ctx.Header("Access-Control-Max-Age", "600")
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		ctx.Next()
	}
}
