package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/shiftreports/internal/domain/client"
	"github.com/geocoder89/shiftreports/internal/domain/user"
)

type SeedUsers interface {
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	CreateUser(ctx context.Context, u user.User) (user.User, error)
}

type SeedClients interface {
	CountClients(ctx context.Context) (int, error)
	CreateClient(ctx context.Context, req client.CreateClientRequest) (client.Client, error)
}

type PasswordHasher interface {
	Hash(raw string) (string, error)
}

type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
	DemoClients   bool
}

var demoClients = []client.CreateClientRequest{
	{Name: "Client A", Phone: "123-456-7890", Address: "123 Main St"},
	{Name: "Client B", Phone: "555-111-2222", Address: "456 Oak Ave"},
	{Name: "Client C", Phone: "999-888-7777", Address: "789 Pine Rd"},
}

// EnsureAdminUser creates the bootstrap admin once. It is a no-op when the
// email or password is not configured or the account already exists.
func EnsureAdminUser(ctx context.Context, users SeedUsers, hasher PasswordHasher, cfg SeedConfig) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists

	_, err := users.GetUserByEmail(ctx, cfg.AdminEmail)

	if err == nil {
		return nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	hash, err := hasher.Hash(cfg.AdminPassword)

	if err != nil {
		return err
	}

	var name *string
	if cfg.AdminName != "" {
		n := cfg.AdminName
		name = &n
	}

	_, err = users.CreateUser(ctx, user.New(cfg.AdminEmail, name, hash, user.RoleAdmin))

	// lost a race with another instance seeding the same admin
	if errors.Is(err, user.ErrEmailTaken) {
		return nil
	}

	return err
}

// EnsureDemoClients fills an empty directory with a few sample clients.
func EnsureDemoClients(ctx context.Context, clients SeedClients) error {
	n, err := clients.CountClients(ctx)
	if err != nil {
		return err
	}

	if n > 0 {
		return nil
	}

	for _, req := range demoClients {
		_, err := clients.CreateClient(ctx, req)
		if err != nil && !errors.Is(err, client.ErrNameTaken) {
			return err
		}
	}

	return nil
}

// Seed runs both seed steps and logs what it did.
func Seed(ctx context.Context, log *slog.Logger, users SeedUsers, clients SeedClients, hasher PasswordHasher, cfg SeedConfig) error {
	err := EnsureAdminUser(ctx, users, hasher, cfg)
	if err != nil {
		return err
	}

	if cfg.DemoClients {
		err = EnsureDemoClients(ctx, clients)
		if err != nil {
			return err
		}
	}

	log.Info("seed complete", "admin_email", cfg.AdminEmail, "demo_clients", cfg.DemoClients)
	return nil
}
