package client

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a directory entry that reports point at. It is never updated or
// deleted once created.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

var (
	ErrNotFound  = errors.New("client not found")
	ErrNameTaken = errors.New("client with this name already exists")
)

type CreateClientRequest struct {
	Name    string `json:"name" binding:"required,notblank,max=120"`
	Phone   string `json:"phone" binding:"required,notblank,min=3,max=40"`
	Address string `json:"address" binding:"required,notblank,max=255"`
}

func NewFromCreateRequest(req CreateClientRequest) Client {
	return Client{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		CreatedAt: time.Now().UTC(),
	}
}
