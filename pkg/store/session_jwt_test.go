package store

import (
	"strings"
	"testing"
	"time"
)

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Minute, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}

	token, err := s.NewSession("alice")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	username, ok, err := s.UsernameFromToken(token)
	if err != nil {
		t.Fatalf("lookup token: %v", err)
	}
	if !ok || username != "alice" {
		t.Fatalf("expected alice, got %q ok=%v", username, ok)
	}
}

func TestJWTSessionStoreRejectsWrongSecret(t *testing.T) {
	issuer, err := NewJWTSessionStore("secret-a", time.Minute, nil)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	verifier, err := NewJWTSessionStore("secret-b", time.Minute, nil)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token, err := issuer.NewSession("alice")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, err := verifier.UsernameFromToken(token); err == nil || ok {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestJWTSessionStoreRejectsExpired(t *testing.T) {
	s, err := NewJWTSessionStoreWithOptions("test-secret", time.Millisecond, nil, JWTOptions{Leeway: time.Millisecond})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	token, err := s.NewSession("alice")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, err := s.UsernameFromToken(token); err == nil || ok {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestJWTSessionStoreDeleteRevokes(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Minute, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	token, err := s.NewSession("alice")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	_, ok, err := s.UsernameFromToken(token)
	if err == nil || ok {
		t.Fatal("expected revoked token to be rejected")
	}
	if !strings.Contains(err.Error(), "revoked") {
		t.Fatalf("expected revocation error, got %v", err)
	}
}

func TestJWTSessionStoreRejectsGarbage(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Minute, nil)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	for _, token := range []string{"", "   ", "not.a.jwt", "a.b"} {
		if _, ok, err := s.UsernameFromToken(token); err == nil || ok {
			t.Fatalf("expected rejection for %q", token)
		}
	}
}

func TestJWTSessionStoreRequiresConfig(t *testing.T) {
	if _, err := NewJWTSessionStore("", time.Minute, nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewJWTSessionStore("secret", 0, nil); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
