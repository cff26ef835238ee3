package middlewares

import (
	"net/http"

	"github.com/geocoder89/shiftreports/internal/access"
	"github.com/gin-gonic/gin"
)

func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := UserFromContext(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}

		if err := access.RequireAdmin(u); err != nil {
			abortWithError(c, http.StatusForbidden, "forbidden", "Admin role required")
			return
		}
		c.Next()
	}
}
