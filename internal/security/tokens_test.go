package security

import (
	"crypto"
	"testing"
	"time"
)

func newTestKeyPair(t *testing.T) (crypto.Signer, crypto.PublicKey) {
	t.Helper()
	signer, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return signer, pub
}

func TestTokenProvider_IssueAndValidate(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	userID, sessionID := "u1", "s1"

	token, exp, err := p.Issue(userID, sessionID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("token empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	uid, sid, err := p.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if uid != userID || sid != sessionID {
		t.Errorf("Validate: got userID=%q sessionID=%q, want %q %q", uid, sid, userID, sessionID)
	}
}

func TestTokenProvider_ValidateInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	_, _, err = p.Validate("invalid-token")
	if err != ErrInvalidToken {
		t.Errorf("Validate invalid token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ValidateExpired(t *testing.T) {
	signer, pub := newTestKeyPair(t)
	p := NewTokenProvider(signer, pub, "test-issuer", "test-audience", -1*time.Minute)
	token, _, err := p.Issue("u1", "s1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, _, err = p.Validate(token)
	if err != ErrInvalidToken {
		t.Errorf("Validate expired token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_RejectsWrongIssuer(t *testing.T) {
	// Same keypair on both sides so only the issuer claim differs.
	signer, pub := newTestKeyPair(t)
	a := NewTokenProvider(signer, pub, "issuer-a", "test-audience", 15*time.Minute)
	b := NewTokenProvider(signer, pub, "issuer-b", "test-audience", 15*time.Minute)

	token, _, err := a.Issue("u1", "s1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, _, err = b.Validate(token)
	if err != ErrInvalidToken {
		t.Errorf("Validate wrong issuer: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_RejectsWrongAudience(t *testing.T) {
	signer, pub := newTestKeyPair(t)
	a := NewTokenProvider(signer, pub, "test-issuer", "audience-a", 15*time.Minute)
	b := NewTokenProvider(signer, pub, "test-issuer", "audience-b", 15*time.Minute)

	token, _, err := a.Issue("u1", "s1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, _, err = b.Validate(token)
	if err != ErrInvalidToken {
		t.Errorf("Validate wrong audience: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_GeneratedECDSAKeyPair(t *testing.T) {
	signer, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if alg := KeyAlg(pub); alg != "ES256" {
		t.Fatalf("KeyAlg = %q, want ES256", alg)
	}
	p := NewTokenProvider(signer, pub, "test-issuer", "test-audience", 15*time.Minute)

	token, _, err := p.Issue("u1", "s1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	uid, sid, err := p.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if uid != "u1" || sid != "s1" {
		t.Errorf("Validate: got userID=%q sessionID=%q, want u1 s1", uid, sid)
	}
}
