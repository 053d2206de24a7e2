package authflow

import (
	"context"
	"errors"

	"github.com/dropDatabas3/bricks/internal/observability/logger"
	"github.com/dropDatabas3/bricks/internal/store/core"
	"github.com/dropDatabas3/bricks/internal/token"
)

// ErrProviderEmailUnverified rejects attaching a provider identity to an
// existing account when the provider did not verify the address.
var ErrProviderEmailUnverified = errors.New("authflow: provider email not verified")

// ExternalAccount is the result of a completed provider handshake (id_token
// verified or user endpoint fetched by the oauth client, not here).
// EmailVerified is the provider's attestation for Email.
type ExternalAccount struct {
	Provider       string
	ProviderUserID string
	Email          string
	EmailVerified  bool
}

// CompleteOAuth signs in via a linked external identity, creating or linking
// the account on first contact:
//
//  1. link exists                                 -> sign in
//  2. verified email matches a local account,
//     no conflicting link                         -> link, sign in
//  3. otherwise                                   -> create user, sign in
//
// An unverified provider email never attaches to an existing account
// (ErrProviderEmailUnverified); a user created from one starts unverified.
// The unique (provider, provider_user_id) key makes concurrent first logins
// idempotent: the loser's insert fails with ErrConflict and is retried as a
// lookup.
func (s *Service) CompleteOAuth(ctx context.Context, acct ExternalAccount) (*core.User, *token.Pair, error) {
	u, err := s.resolveExternal(ctx, acct)
	if err != nil {
		return nil, nil, err
	}
	if u.DisabledAt != nil {
		return nil, nil, ErrInvalidCredentials
	}
	pair, err := s.tokens.Issue(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

func (s *Service) resolveExternal(ctx context.Context, acct ExternalAccount) (*core.User, error) {
	u, err := s.store.FindByProviderID(ctx, acct.Provider, acct.ProviderUserID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	// No link yet. Attach to an existing account with the same email when
	// one exists.
	existing, _, err := s.store.GetUserByEmail(ctx, normalizeEmail(acct.Email))
	switch {
	case err == nil:
		if !acct.EmailVerified {
			// Anyone can claim an address at the provider; without the
			// provider's verification the claim must not take over the
			// local account holding it.
			return nil, ErrProviderEmailUnverified
		}
		err = s.store.LinkProvider(ctx, existing.ID, acct.Provider, acct.ProviderUserID, acct.Email)
		if errors.Is(err, core.ErrConflict) {
			// Concurrent completion linked it first; the link now resolves.
			return s.store.FindByProviderID(ctx, acct.Provider, acct.ProviderUserID)
		}
		if err != nil {
			return nil, err
		}
		logger.Named("authflow").Info("external identity linked",
			logger.UserID(existing.ID), logger.Provider(acct.Provider))
		return existing, nil

	case errors.Is(err, core.ErrNotFound):
		// First contact: the account is born with the provider's verification
		// state for the address.
		u, err := s.store.CreateUserFromProvider(ctx, acct.Provider, acct.ProviderUserID, acct.Email, acct.EmailVerified)
		if errors.Is(err, core.ErrConflict) {
			return s.store.FindByProviderID(ctx, acct.Provider, acct.ProviderUserID)
		}
		if err != nil {
			return nil, err
		}
		logger.Named("authflow").Info("user created from provider",
			logger.UserID(u.ID), logger.Provider(acct.Provider))
		return u, nil

	default:
		return nil, err
	}
}
