package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FullName         *string   `json:"fullName"`
	PasswordHash     string    `json:"-"` // never expose hash in JSON
	Role             Role      `json:"role"`
	IsActive         bool      `json:"isActive"`
	SubmissionsCount int       `json:"submissionsCount"`
	BatchesSent      int       `json:"batchesSent"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// DisplayName is the full name when set, the email otherwise.
func (u User) DisplayName() string {
	if u.FullName != nil && strings.TrimSpace(*u.FullName) != "" {
		return *u.FullName
	}
	return u.Email
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("account is inactive")
	ErrInvalidRole        = errors.New("invalid role")
)

type CreateUserRequest struct {
	Email    string  `json:"email" binding:"required,email,max=254"`
	FullName *string `json:"fullName" binding:"omitempty,max=120"`
	Password string  `json:"password" binding:"required,min=6,max=72"`
	Role     Role    `json:"role" binding:"omitempty,oneof=admin user"`
}

// Stats is one row of the admin roll-up.
type Stats struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	FullName         *string `json:"fullName"`
	SubmissionsCount int     `json:"submissionsCount"`
	BatchesSent      int     `json:"batchesSent"`
}

// New builds an active user with zeroed counters. The hash must already be computed.
func New(email string, fullName *string, passwordHash string, role Role) User {
	if role == "" {
		role = RoleUser
	}
	now := time.Now().UTC()

	return User{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(email),
		FullName:     fullName,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (u User) Stats() Stats {
	return Stats{
		ID:               u.ID,
		Email:            u.Email,
		FullName:         u.FullName,
		SubmissionsCount: u.SubmissionsCount,
		BatchesSent:      u.BatchesSent,
	}
}
