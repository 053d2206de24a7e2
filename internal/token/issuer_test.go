package token_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/bricks/internal/token"
)

func TestIssuerRejectsGarbage(t *testing.T) {
	iss, err := token.NewIssuer("http://test.local", "", time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := iss.VerifyAccess(tok); !errors.Is(err, token.ErrInvalidToken) {
			t.Errorf("VerifyAccess(%q) = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestIssuerRejectsExpired(t *testing.T) {
	iss, err := token.NewIssuer("http://test.local", "", time.Millisecond)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	signed, _, err := iss.IssueAccess("user-1", "fam-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := iss.VerifyAccess(signed); !errors.Is(err, token.ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestIssuerRejectsForeignIssuer(t *testing.T) {
	a, _ := token.NewIssuer("http://a.local", "", time.Minute)
	b, _ := token.NewIssuer("http://b.local", "", time.Minute)

	signed, _, err := a.IssueAccess("user-1", "fam-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := b.VerifyAccess(signed); !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestIssuerSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		t.Fatal(err)
	}
	seedB64 := base64.StdEncoding.EncodeToString(seed)

	a, err := token.NewIssuer("http://test.local", seedB64, time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer a: %v", err)
	}
	b, err := token.NewIssuer("http://test.local", seedB64, time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer b: %v", err)
	}

	signed, _, err := a.IssueAccess("user-1", "fam-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	// Same seed, same key: a restarted process keeps verifying old tokens.
	if _, err := b.VerifyAccess(signed); err != nil {
		t.Fatalf("VerifyAccess across instances: %v", err)
	}
}

func TestIssuerRejectsBadSeed(t *testing.T) {
	if _, err := token.NewIssuer("http://test.local", "too-short", time.Minute); err == nil {
		t.Fatal("want error for malformed seed")
	}
	if _, err := token.NewIssuer("http://test.local", base64.StdEncoding.EncodeToString([]byte("short")), time.Minute); err == nil {
		t.Fatal("want error for wrong-size seed")
	}
}
