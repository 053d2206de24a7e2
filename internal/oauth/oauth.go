// Package oauth holds the provider-facing clients for social sign-in. Each
// provider implements Client; the HTTP layer only sees AuthURL + Exchange.
package oauth

import (
	"context"
	"errors"
)

var (
	ErrExchangeFailed = errors.New("oauth: code exchange failed")
	ErrBadIDToken     = errors.New("oauth: id token rejected")
	ErrNoEmail        = errors.New("oauth: provider returned no usable email")
)

// Account is the provider's verified view of the user.
type Account struct {
	Provider       string
	ProviderUserID string
	Email          string
	EmailVerified  bool
}

// Client is one configured provider.
type Client interface {
	Name() string

	// AuthURL builds the redirect to the provider's consent screen. nonce is
	// empty for plain OAuth providers. OIDC providers hit their discovery
	// document here, hence the ctx and error.
	AuthURL(ctx context.Context, state, nonce string) (string, error)

	// Exchange trades the callback code for a verified Account. nonce must
	// match the one bound to state at start (OIDC providers enforce it).
	Exchange(ctx context.Context, code, nonce string) (*Account, error)
}

// Config is the per-provider secret material.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}
