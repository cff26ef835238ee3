package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/shiftreports/internal/auth"
	"github.com/geocoder89/shiftreports/internal/domain/user"
	"github.com/geocoder89/shiftreports/internal/repo/memory"
)

func setup(t *testing.T) (*Gate, *auth.Manager, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	jwt := auth.NewManager("test-secret", time.Hour)
	return NewGate(jwt, store), jwt, store
}

func addUser(t *testing.T, store *memory.Store, email string, role user.Role) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.New(email, nil, "hash", role))
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestResolve_ValidToken(t *testing.T) {
	gate, jwt, store := setup(t)
	u := addUser(t, store, "a@example.com", user.RoleUser)

	tok, err := jwt.GenerateAccessToken(u.ID, string(u.Role))
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	got, err := gate.Resolve(context.Background(), tok)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("resolved wrong user")
	}
}

func TestResolve_Rejections(t *testing.T) {
	gate, jwt, store := setup(t)
	ctx := context.Background()

	if _, err := gate.Resolve(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("empty token: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := gate.Resolve(ctx, "not-a-jwt"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("garbage token: expected ErrUnauthenticated, got %v", err)
	}

	ghost, _ := jwt.GenerateAccessToken("00000000-0000-0000-0000-000000000000", "user")
	if _, err := gate.Resolve(ctx, ghost); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("unknown subject: expected ErrUnauthenticated, got %v", err)
	}

	u := addUser(t, store, "b@example.com", user.RoleUser)
	tok, _ := jwt.GenerateAccessToken(u.ID, string(u.Role))
	if err := store.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := gate.Resolve(ctx, tok); !errors.Is(err, user.ErrInactive) {
		t.Fatalf("inactive user: expected ErrInactive, got %v", err)
	}
}

func TestResolve_RoleComesFromStoreNotToken(t *testing.T) {
	gate, jwt, store := setup(t)
	u := addUser(t, store, "c@example.com", user.RoleUser)

	// claims say admin, the stored record says user
	tok, _ := jwt.GenerateAccessToken(u.ID, "admin")

	got, err := gate.Resolve(context.Background(), tok)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !errors.Is(RequireAdmin(got), ErrForbidden) {
		t.Fatalf("expected stored role to win")
	}
}

func TestCanReadReportsOf(t *testing.T) {
	admin := user.User{ID: "a", Role: user.RoleAdmin}
	alice := user.User{ID: "u1", Role: user.RoleUser}

	if err := CanReadReportsOf(alice, "u1"); err != nil {
		t.Fatalf("owner must read own reports: %v", err)
	}
	if err := CanReadReportsOf(alice, "u2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := CanReadReportsOf(admin, "u2"); err != nil {
		t.Fatalf("admin must read anyone: %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		want   string
		ok     bool
	}{
		"valid":      {"Bearer abc.def", "abc.def", true},
		"lowercase":  {"bearer abc", "abc", true},
		"missing":    {"", "", false},
		"basic":      {"Basic xyz", "", false},
		"only_space": {"Bearer   ", "", false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := BearerToken(tc.header)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("BearerToken(%q) = %q,%v want %q,%v", tc.header, got, ok, tc.want, tc.ok)
			}
		})
	}
}
