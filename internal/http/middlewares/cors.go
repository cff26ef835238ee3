package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET,POST,OPTIONS"
	corsHeaders = "Authorization,Content-Type,If-None-Match"
	// the portal reads these off PDF downloads and cached client lists
	corsExpose = "ETag,Content-Disposition,X-Request-Id,X-Cache"
	corsMaxAge = "600"
)

// CORSMiddleware lets the portal frontend call the API with a bearer token.
// Origins are matched exactly after trimming a trailing slash. Preflights end
// here with 204; a preflight from an unknown origin gets no CORS headers and
// the browser blocks the real request.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(ctx *gin.Context) {
		origin := ctx.GetHeader("Origin")
		if origin == "" {
			ctx.Next()
			return
		}

		h := ctx.Writer.Header()
		h.Add("Vary", "Origin")

		if _, ok := allowed[strings.TrimRight(origin, "/")]; ok {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", corsExpose)
		}

		preflight := ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != ""
		if !preflight {
			ctx.Next()
			return
		}

		if h.Get("Access-Control-Allow-Origin") != "" {
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
		}
		ctx.AbortWithStatus(http.StatusNoContent)
	}
}
