package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	t.Setenv("CHAINLOG_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("GADDR_A", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	subject, err := ParseAndValidate(token)
	if err != nil {
		t.Fatal(err)
	}
	if subject != "GADDR_A" {
		t.Fatalf("expected subject GADDR_A, got %s", subject)
	}
}

func TestRejectsGarbageAndEmptyTokens(t *testing.T) {
	t.Setenv("CHAINLOG_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	for _, token := range []string{"", "   ", "not.a.jwt"} {
		if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestRejectsExpiredToken(t *testing.T) {
	t.Setenv("CHAINLOG_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("GADDR_A", time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestRejectsTokenSignedWithOtherSecret(t *testing.T) {
	t.Setenv("CHAINLOG_AUTH_SECRET", "secret-one")
	ResetSecretForTests()
	token, err := GenerateToken("GADDR_A", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("CHAINLOG_AUTH_SECRET", "secret-two")
	ResetSecretForTests()
	defer ResetSecretForTests()
	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestMissingSecret(t *testing.T) {
	t.Setenv("CHAINLOG_AUTH_SECRET", "")
	ResetSecretForTests()
	defer ResetSecretForTests()

	if _, err := GenerateToken("GADDR_A", time.Minute); err == nil {
		t.Fatal("expected error without configured secret")
	}
}

func TestVerifierFromContext(t *testing.T) {
	v := Verifier{}
	ctx := context.Background()

	if err := v.Verify(ctx, "GADDR_A"); !errors.Is(err, ErrUnproven) {
		t.Fatalf("expected ErrUnproven on empty context, got %v", err)
	}

	ctx = ContextWithActor(ctx, "GADDR_A")
	if err := v.Verify(ctx, "GADDR_A"); err != nil {
		t.Fatalf("actor should be proven: %v", err)
	}
	if err := v.Verify(ctx, "GADDR_B"); !errors.Is(err, ErrUnproven) {
		t.Fatalf("expected ErrUnproven for other identity, got %v", err)
	}

	ctx = ContextWithConsent(ctx, "GADDR_B")
	if err := v.Verify(ctx, "GADDR_B"); err != nil {
		t.Fatalf("consented identity should be proven: %v", err)
	}
	if err := v.Verify(ctx, "GADDR_C"); !errors.Is(err, ErrUnproven) {
		t.Fatalf("expected ErrUnproven for stranger, got %v", err)
	}
}
