package auth

import (
	"testing"
	"time"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	raw, err := m.GenerateAccessToken("user-1", "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	claims, err := m.VerifyAccessToken(raw)
	if err != nil {
		t.Fatalf("VerifyAccessToken error: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestManager_RejectsExpired(t *testing.T) {
	m := NewManager("test-secret", time.Minute)
	m.now = func() time.Time { return time.Now().UTC().Add(-2 * time.Hour) }

	raw, err := m.GenerateAccessToken("user-1", "user")
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	if _, err := m.VerifyAccessToken(raw); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestManager_RejectsForeignSecret(t *testing.T) {
	issuer := NewManager("secret-a", time.Hour)
	verifier := NewManager("secret-b", time.Hour)

	raw, err := issuer.GenerateAccessToken("user-1", "user")
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	if _, err := verifier.VerifyAccessToken(raw); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestManager_RejectsGarbage(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	if _, err := m.VerifyAccessToken("not.a.jwt"); err == nil {
		t.Fatalf("expected garbage token to be rejected")
	}
}
