// Package access decides who a bearer token belongs to and what they may touch.
package access

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/shiftreports/internal/auth"
	"github.com/geocoder89/shiftreports/internal/domain/user"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (user.User, error)
}

// Gate resolves the caller on every request from the store, so a role change
// or deactivation takes effect on the next call rather than at token expiry.
type Gate struct {
	tokens TokenVerifier
	users  UserLoader
}

func NewGate(tokens TokenVerifier, users UserLoader) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// BearerToken pulls the token out of an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	return raw, raw != ""
}

func (g *Gate) Resolve(ctx context.Context, rawToken string) (user.User, error) {
	if rawToken == "" {
		return user.User{}, ErrUnauthenticated
	}

	claims, err := g.tokens.VerifyAccessToken(rawToken)
	if err != nil {
		return user.User{}, ErrUnauthenticated
	}

	u, err := g.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrUnauthenticated
		}
		return user.User{}, err
	}

	if !u.IsActive {
		return user.User{}, user.ErrInactive
	}

	return u, nil
}

func RequireAdmin(u user.User) error {
	if !u.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// CanReadReportsOf allows owners to read their own reports and admins to read anyone's.
func CanReadReportsOf(u user.User, ownerID string) error {
	if u.ID == ownerID || u.IsAdmin() {
		return nil
	}
	return ErrForbidden
}
