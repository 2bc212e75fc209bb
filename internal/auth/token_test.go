package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	issuer, err := NewTokenIssuer([]byte("super-secret"), 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer error: %v", err)
	}
	want := Identity{ID: "u-1", Username: "alice", Email: "alice@x.com"}

	tok, err := issuer.Issue(want)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	got, err := issuer.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if got != want {
		t.Fatalf("identity mismatch: got %+v want %+v", got, want)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issuer, _ := NewTokenIssuer([]byte("secret"), 24*time.Hour)
	issuedAt := time.Now()
	issuer.now = func() time.Time { return issuedAt }

	tok, err := issuer.Issue(Identity{ID: "u1"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	issuer.now = func() time.Time { return issuedAt.Add(24*time.Hour - time.Second) }
	if _, err := issuer.Verify(tok); err != nil {
		t.Fatalf("token should still be valid just before expiry: %v", err)
	}

	issuer.now = func() time.Time { return issuedAt.Add(24*time.Hour + time.Second) }
	_, err = issuer.Verify(tok)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected jwt.ErrTokenExpired, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	right, _ := NewTokenIssuer([]byte("right-secret"), time.Hour)
	wrong, _ := NewTokenIssuer([]byte("wrong-secret"), time.Hour)

	tok, err := right.Issue(Identity{ID: "u2"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := wrong.Verify(tok); err == nil {
		t.Fatal("expected error for invalid signature, got nil")
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	issuer, _ := NewTokenIssuer([]byte("k"), time.Hour)
	for _, raw := range []string{"", "not.a.jwt", "abc"} {
		if _, err := issuer.Verify(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()

	issuer, _ := NewTokenIssuer([]byte("k"), time.Hour)
	claims := Claims{
		ID: "u3",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}
	if _, err := issuer.Verify(tok); err == nil {
		t.Fatal("expected unsigned token to be rejected")
	}
}

func TestVerify_RequiresExpiry(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	issuer, _ := NewTokenIssuer(secret, time.Hour)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{ID: "u4"}).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString error: %v", err)
	}
	if _, err := issuer.Verify(tok); err == nil {
		t.Fatal("expected token without exp to be rejected")
	}
}

func TestNewTokenIssuer_EmptySecret(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenIssuer(nil, time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
