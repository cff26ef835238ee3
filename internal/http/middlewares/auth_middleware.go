package middlewares

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/shiftreports/internal/access"
	"github.com/geocoder89/shiftreports/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type Resolver interface {
	Resolve(ctx context.Context, rawToken string) (user.User, error)
}

type AuthMiddleware struct {
	gate Resolver
}

func NewAuthMiddleware(gate Resolver) *AuthMiddleware {
	return &AuthMiddleware{gate: gate}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := access.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
			return
		}

		u, err := m.gate.Resolve(c.Request.Context(), raw)
		if err != nil {
			switch {
			case errors.Is(err, user.ErrInactive):
				abortWithError(c, http.StatusForbidden, "account_inactive", "Account is inactive")
			case errors.Is(err, access.ErrUnauthenticated):
				abortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired access token")
			default:
				abortWithError(c, http.StatusInternalServerError, "internal_error", "Could not resolve identity")
			}
			return
		}

		c.Set(CtxUser, u)

		c.Next()
	}
}

// Optional helpers so handlers don't need to know the magic keys.

func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	u, ok := UserFromContext(c)
	if !ok || u.ID == "" {
		return "", false
	}
	return u.ID, true
}
