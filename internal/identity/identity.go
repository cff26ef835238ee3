// Package identity owns credential checks and user provisioning.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/geocoder89/shiftreports/internal/domain/user"
	"github.com/google/uuid"
)

type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUserByID(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	UserStats(ctx context.Context) ([]user.Stats, error)
}

type Hasher interface {
	Hash(raw string) (string, error)
	Verify(raw, hash string) bool
}

type Service struct {
	users  UserStore
	hasher Hasher

	decoyOnce sync.Once
	decoy     string
}

func NewService(users UserStore, hasher Hasher) *Service {
	return &Service{users: users, hasher: hasher}
}

// Authenticate returns the user whose credentials match. An unknown email and
// a wrong password fail the same way so callers cannot probe for accounts.
func (s *Service) Authenticate(ctx context.Context, email, password string) (user.User, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// spend the same hashing time as a real mismatch
			s.hasher.Verify(password, s.decoyHash())
			return user.User{}, user.ErrInvalidCredentials
		}
		return user.User{}, err
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		return user.User{}, user.ErrInvalidCredentials
	}

	if !u.IsActive {
		return user.User{}, user.ErrInactive
	}

	return u, nil
}

// decoyHash is a hash no password matches, built once with the real hasher
// so its cost is the same as a stored credential.
func (s *Service) decoyHash() string {
	s.decoyOnce.Do(func() {
		s.decoy, _ = s.hasher.Hash(uuid.NewString())
	})
	return s.decoy
}

func (s *Service) CreateUser(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
	role := req.Role
	if role == "" {
		role = user.RoleUser
	}
	if !role.IsValid() {
		return user.User{}, user.ErrInvalidRole
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	fullName := req.FullName
	if fullName != nil {
		trimmed := strings.TrimSpace(*fullName)
		if trimmed == "" {
			fullName = nil
		} else {
			fullName = &trimmed
		}
	}

	return s.users.CreateUser(ctx, user.New(req.Email, fullName, hash, role))
}

func (s *Service) GetByID(ctx context.Context, id string) (user.User, error) {
	return s.users.GetUserByID(ctx, id)
}

func (s *Service) ListAll(ctx context.Context) ([]user.User, error) {
	return s.users.ListUsers(ctx)
}

func (s *Service) Stats(ctx context.Context) ([]user.Stats, error) {
	return s.users.UserStats(ctx)
}
