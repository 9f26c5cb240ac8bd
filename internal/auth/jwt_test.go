package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateValidateRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	tok, err := svc.Generate(42, "s@example.com", "student")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := svc.Validate(tok)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != 42 || claims.Role != "student" || claims.ID == "" {
		t.Fatalf("claims: got=%+v", claims)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	tok, err := NewJWTService("one", 1).Generate(1, "", "tutor")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := NewJWTService("two", 1).Validate(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService("secret", 1)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := svc.Generate(1, "", "tutor")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	svc.now = time.Now
	_, err = svc.Validate(tok)
	if !errors.Is(err, ErrExpiredToken) || !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestValidateRejectsMissingIdentity(t *testing.T) {
	svc := NewJWTService("secret", 1)
	for _, tc := range []struct {
		id   int64
		role string
	}{{0, "tutor"}, {5, ""}} {
		tok, err := svc.Generate(tc.id, "", tc.role)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if _, err := svc.Validate(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("id=%d role=%q: expected ErrInvalidToken, got %v", tc.id, tc.role, err)
		}
	}
}

func TestClaimsCaller(t *testing.T) {
	c := (&Claims{UserID: 3, Role: "tutor"}).Caller()
	if c.UserID != 3 || !c.IsTutor() {
		t.Fatalf("caller: got=%+v", c)
	}
}
