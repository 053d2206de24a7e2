package authflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/bricks/internal/authflow"
	"github.com/dropDatabas3/bricks/internal/store/core"
)

func TestCompleteOAuthCreatesVerifiedUser(t *testing.T) {
	flows, _, store, _ := newFlows(t)
	ctx := context.Background()

	acct := authflow.ExternalAccount{
		Provider:       "google",
		ProviderUserID: "g-123",
		Email:          "Ivy@Example.com",
		EmailVerified:  true,
	}
	u, pair, err := flows.CompleteOAuth(ctx, acct)
	if err != nil {
		t.Fatalf("CompleteOAuth: %v", err)
	}
	if u.Email != "ivy@example.com" {
		t.Errorf("email not normalized: %q", u.Email)
	}
	if !u.EmailVerified {
		t.Error("provider-created account should be born verified")
	}
	if pair.AccessToken == "" {
		t.Error("completion should issue tokens")
	}

	got, err := store.FindByProviderID(ctx, "google", "g-123")
	if err != nil {
		t.Fatalf("FindByProviderID: %v", err)
	}
	if got.ID != u.ID {
		t.Error("link does not resolve to the created user")
	}
}

func TestCompleteOAuthIsIdempotent(t *testing.T) {
	flows, _, _, _ := newFlows(t)
	ctx := context.Background()

	acct := authflow.ExternalAccount{Provider: "github", ProviderUserID: "gh-7", Email: "jan@example.com", EmailVerified: true}
	a, _, err := flows.CompleteOAuth(ctx, acct)
	if err != nil {
		t.Fatalf("first completion: %v", err)
	}
	b, _, err := flows.CompleteOAuth(ctx, acct)
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if a.ID != b.ID {
		t.Fatalf("completions resolved different users: %q vs %q", a.ID, b.ID)
	}
}

func TestCompleteOAuthLinksToExistingEmailAccount(t *testing.T) {
	flows, _, store, _ := newFlows(t)
	ctx := context.Background()

	u, _, err := flows.SignUp(ctx, "kim@example.com", "long enough pw")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	linked, _, err := flows.CompleteOAuth(ctx, authflow.ExternalAccount{
		Provider:       "google",
		ProviderUserID: "g-kim",
		Email:          "kim@example.com",
		EmailVerified:  true,
	})
	if err != nil {
		t.Fatalf("CompleteOAuth: %v", err)
	}
	if linked.ID != u.ID {
		t.Fatal("provider identity should attach to the existing account")
	}

	got, err := store.FindByProviderID(ctx, "google", "g-kim")
	if err != nil {
		t.Fatalf("FindByProviderID: %v", err)
	}
	if got.ID != u.ID {
		t.Error("link resolves to the wrong user")
	}
}

func TestCompleteOAuthRejectsDisabledUser(t *testing.T) {
	flows, _, store, _ := newFlows(t)
	ctx := context.Background()

	u, _, err := flows.CompleteOAuth(ctx, authflow.ExternalAccount{
		Provider: "google", ProviderUserID: "g-dis", Email: "leo@example.com", EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("CompleteOAuth: %v", err)
	}
	if err := store.DisableUser(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	_, _, err = flows.CompleteOAuth(ctx, authflow.ExternalAccount{
		Provider: "google", ProviderUserID: "g-dis", Email: "leo@example.com", EmailVerified: true,
	})
	if err == nil {
		t.Fatal("disabled account should not complete OAuth")
	}
}

func TestCompleteOAuthUnverifiedEmailCannotLink(t *testing.T) {
	flows, _, store, _ := newFlows(t)
	ctx := context.Background()

	victim, _, err := flows.SignUp(ctx, "vera@example.com", "long enough pw")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	// A provider account merely claiming the address must not attach to it.
	_, _, err = flows.CompleteOAuth(ctx, authflow.ExternalAccount{
		Provider:       "github",
		ProviderUserID: "gh-claim",
		Email:          "vera@example.com",
		EmailVerified:  false,
	})
	if !errors.Is(err, authflow.ErrProviderEmailUnverified) {
		t.Fatalf("err = %v, want ErrProviderEmailUnverified", err)
	}
	if _, err := store.FindByProviderID(ctx, "github", "gh-claim"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("link must not be created, lookup err = %v", err)
	}

	// The real owner signs in untouched.
	got, _, err := flows.SignIn(ctx, "vera@example.com", "long enough pw")
	if err != nil {
		t.Fatalf("SignIn after rejected link: %v", err)
	}
	if got.ID != victim.ID {
		t.Error("existing account changed identity")
	}
}

func TestCompleteOAuthUnverifiedEmailCreatesUnverifiedUser(t *testing.T) {
	flows, _, _, _ := newFlows(t)
	ctx := context.Background()

	u, _, err := flows.CompleteOAuth(ctx, authflow.ExternalAccount{
		Provider:       "github",
		ProviderUserID: "gh-fresh",
		Email:          "nia@example.com",
		EmailVerified:  false,
	})
	if err != nil {
		t.Fatalf("CompleteOAuth: %v", err)
	}
	if u.EmailVerified {
		t.Error("account from an unverified provider email must start unverified")
	}
}
